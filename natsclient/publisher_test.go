package natsclient

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/cvsync/cv"
	"github.com/c360/cvsync/errors"
	"github.com/c360/cvsync/events"
)

type published struct {
	subject string
	data    []byte
	durable bool
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, subject string, data []byte) error {
	return f.record(subject, data, false)
}

func (f *fakePublisher) PublishToStream(_ context.Context, subject string, data []byte) error {
	return f.record(subject, data, true)
}

func (f *fakePublisher) record(subject string, data []byte, durable bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{subject: subject, data: data, durable: durable})
	return nil
}

func TestEventPublisher_PublishesEnvelopes(t *testing.T) {
	fake := &fakePublisher{}
	p := NewEventPublisher(fake, "", false, nil)

	p.Emit(context.Background(), events.TermUpdated{Ontology: "psi-mi", Accession: "MI:0001", TermID: cv.TermID(4), Updated: true})
	p.Emit(context.Background(), events.DuplicateTerms{Ontology: "psi-mi", Accession: "MI:0002"})

	require.Len(t, fake.msgs, 2)
	assert.Equal(t, "cv.events.term_updated", fake.msgs[0].subject)
	assert.Equal(t, "cv.events.duplicate_terms", fake.msgs[1].subject)
	assert.False(t, fake.msgs[0].durable)

	decoded, err := events.Decode(fake.msgs[0].data)
	require.NoError(t, err)
	updated, ok := decoded.(events.TermUpdated)
	require.True(t, ok)
	assert.Equal(t, "MI:0001", updated.Accession)
	assert.Equal(t, cv.TermID(4), updated.TermID)

	assert.Equal(t, int64(2), p.Published())
	assert.Zero(t, p.Failures())
}

func TestEventPublisher_DurableUsesStream(t *testing.T) {
	fake := &fakePublisher{}
	p := NewEventPublisher(fake, "audit.cv", true, nil)

	p.Emit(context.Background(), events.RunStarted{RunID: "r1", Ontology: "go"})

	require.Len(t, fake.msgs, 1)
	assert.True(t, fake.msgs[0].durable)
	assert.Equal(t, "audit.cv.run_started", fake.msgs[0].subject)
}

func TestEventPublisher_FailuresAreCounted(t *testing.T) {
	fake := &fakePublisher{err: errors.WrapTransient(stderrors.New("nats: timeout"), "Client", "Publish", "publish")}
	p := NewEventPublisher(fake, "", false, nil)

	assert.NotPanics(t, func() {
		p.Emit(context.Background(), events.RunStarted{RunID: "r1"})
	})
	assert.Equal(t, int64(1), p.Failures())
	assert.Zero(t, p.Published())
}

func TestEventStreamConfig(t *testing.T) {
	cfg := EventStreamConfig("CV_EVENTS", "", 24*time.Hour)
	assert.Equal(t, "CV_EVENTS", cfg.Name)
	assert.Equal(t, []string{"cv.events.>"}, cfg.Subjects)
	assert.Equal(t, jetstream.FileStorage, cfg.Storage)
	assert.Equal(t, 24*time.Hour, cfg.MaxAge)
}
