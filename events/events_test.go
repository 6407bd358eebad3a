package events

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/cvsync/cv"
	"github.com/c360/cvsync/errors"
)

func TestBuffer_FlushAndDiscard(t *testing.T) {
	ctx := context.Background()
	rec := NewRecorder()

	var buf Buffer
	buf.Emit(ctx, TermUpdated{Accession: "MI:0001", Updated: true})
	buf.Emit(ctx, ObsoleteRemapped{FromAccession: "MI:0002", ToAccession: "MI:0003"})
	assert.Equal(t, 2, buf.Len())
	assert.Empty(t, rec.Events(), "nothing delivered before flush")

	buf.Flush(ctx, rec)
	assert.Len(t, rec.Events(), 2)
	assert.Zero(t, buf.Len())

	buf.Emit(ctx, TermUpdated{Accession: "MI:0004"})
	buf.Discard()
	buf.Flush(ctx, rec)
	assert.Len(t, rec.Events(), 2, "discarded events are never delivered")
}

func TestMultiSink_FansOut(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	sink := MultiSink{a, nil, b}

	sink.Emit(context.Background(), DuplicateTerms{Accession: "MI:0001", TermIDs: []cv.TermID{1, 2}})

	assert.Len(t, a.Events(), 1)
	assert.Len(t, b.Events(), 1)
}

func TestFilter(t *testing.T) {
	in := []Event{
		TermUpdated{Accession: "a"},
		UpdateError{Accession: "b"},
		TermUpdated{Accession: "c"},
	}

	updates := Filter[TermUpdated](in)
	require.Len(t, updates, 2)
	assert.Equal(t, "c", updates[1].Accession)
	assert.Len(t, Filter[UpdateError](in), 1)
	assert.Empty(t, Filter[DuplicateTerms](in))
}

func TestTermUpdated_HasChanges(t *testing.T) {
	assert.False(t, TermUpdated{}.HasChanges())
	assert.True(t, TermUpdated{Created: true}.HasChanges())
	assert.True(t, TermUpdated{DeletedParents: []string{"MI:0001"}}.HasChanges())
	assert.Equal(t, 3, TermUpdated{
		CreatedXrefs:       []cv.Xref{{Database: "go"}},
		UpdatedAnnotations: []cv.Annotation{{Topic: cv.TopicURL}},
		CreatedParents:     []string{"MI:0001"},
	}.ChangeCount())
}

func TestFromError(t *testing.T) {
	ue := errors.NewUpdateError(errors.KindOntologyDatabaseNotFound, "MI:0004", "no database for namespace XX")
	ev := FromError("psi-mi", ue, "ignored", 7)

	assert.Equal(t, errors.KindOntologyDatabaseNotFound, ev.Kind)
	assert.Equal(t, "MI:0004", ev.Accession)
	assert.Equal(t, cv.TermID(7), ev.TermID)

	ev = FromError("psi-mi", assert.AnError, "MI:0005", 9)
	assert.Equal(t, errors.KindFatal, ev.Kind)
	assert.Equal(t, "MI:0005", ev.Accession)
}

func TestEncodeDecode(t *testing.T) {
	in := ObsoleteRemapped{
		Ontology:      "psi-mi",
		FromAccession: "MI:0002",
		ToAccession:   "MI:0003",
		Merged:        true,
		Affected:      5,
	}

	data, err := Encode(in)
	require.NoError(t, err)

	out, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = Decode([]byte(`{"type":"nope","payload":{}}`))
	assert.True(t, errors.IsInvalid(err))
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	sink := NewLogSink(logger)

	sink.Emit(context.Background(), ObsoleteRemapped{FromAccession: "MI:0002", ToAccession: "MI:0003", Affected: 5})
	sink.Emit(context.Background(), UpdateError{Kind: errors.KindImpossibleMerge, Accession: "MI:0009"})

	out := buf.String()
	assert.Contains(t, out, "affected=5")
	assert.Contains(t, out, "kind=cv_impossible_merge")
}
