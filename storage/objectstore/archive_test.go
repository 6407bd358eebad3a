package objectstore

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/cvsync/errors"
	"github.com/c360/cvsync/events"
	"github.com/c360/cvsync/metric"
	"github.com/c360/cvsync/report"
	"github.com/c360/cvsync/storage"
)

func sampleReport() *report.Report {
	return report.Build([]events.Event{
		events.RunStarted{RunID: "r1", Ontology: "psi-mi"},
		events.UpdateError{Ontology: "psi-mi", Kind: errors.KindNonExistingTerm, Accession: "MI:9999", Message: "gone"},
		events.RunFinished{RunID: "r1", Ontology: "psi-mi", Processed: 3},
	})
}

func TestReportArchive_SaveLoadList(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	archive, err := NewReportArchive(store, "reports/", nil)
	require.NoError(t, err)

	rep := sampleReport()
	key, err := archive.Save(ctx, rep)
	require.NoError(t, err)
	assert.Equal(t, "reports/"+rep.ID+".json", key)

	require.NoError(t, store.Put(ctx, "reports/notes.txt", []byte("ignored")))

	ids, err := archive.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{rep.ID}, ids)

	loaded, err := archive.Load(ctx, rep.ID)
	require.NoError(t, err)
	assert.Equal(t, rep.ID, loaded.ID)
	assert.Equal(t, 1, loaded.ErrorCount())
	assert.Equal(t, 3, loaded.Ontology("psi-mi").Processed)

	require.NoError(t, archive.Delete(ctx, rep.ID))
	_, err = archive.Load(ctx, rep.ID)
	assert.ErrorIs(t, err, storage.ErrKeyNotFound)
}

func TestReportArchive_Validation(t *testing.T) {
	_, err := NewReportArchive(nil, "", nil)
	assert.True(t, errors.IsInvalid(err))

	archive, err := NewReportArchive(storage.NewMemoryStore(), "", nil)
	require.NoError(t, err)
	_, err = archive.Save(context.Background(), &report.Report{})
	assert.True(t, errors.IsInvalid(err))
}

type failingStore struct{ storage.Store }

func (failingStore) Put(context.Context, string, []byte) error {
	return errors.WrapTransient(errors.ErrNoConnection, "objectstore", "Put", "put")
}

func TestReportArchive_SaveFailureIsTransient(t *testing.T) {
	archive, err := NewReportArchive(failingStore{storage.NewMemoryStore()}, "", nil)
	require.NoError(t, err)

	_, err = archive.Save(context.Background(), sampleReport())
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.True(t, stderrors.Is(err, errors.ErrNoConnection))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default", DefaultConfig(), false},
		{"empty bucket", Config{}, true},
		{"dotted bucket", Config{Bucket: "cv.reports"}, true},
		{"negative age", Config{Bucket: "R", MaxAge: -time.Second}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.True(t, errors.IsInvalid(err))
				return
			}
			assert.NoError(t, err)
		})
	}

	bc := Config{Bucket: "R", MaxAge: time.Hour}.bucketConfig()
	assert.Equal(t, int64(-1), bc.MaxBytes)
	assert.Equal(t, time.Hour, bc.TTL)
}

func TestStoreMetrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	m, err := newStoreMetrics(registry, "R")
	require.NoError(t, err)

	m.observe("put", time.Now(), nil)
	m.observe("put", time.Now(), stderrors.New("x"))
	m.recordBytes("write", 10)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ops.WithLabelValues("put")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("put")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.bytes.WithLabelValues("write")))

	_, err = newStoreMetrics(registry, "R")
	assert.Error(t, err, "a bucket registers its metrics once")

	var disabled *storeMetrics
	assert.NotPanics(t, func() { disabled.observe("get", time.Now(), nil) })
}
