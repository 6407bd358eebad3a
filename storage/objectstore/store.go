package objectstore

import (
	"context"
	stderrors "errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/cvsync/errors"
	"github.com/c360/cvsync/metric"
	"github.com/c360/cvsync/natsclient"
	"github.com/c360/cvsync/storage"
)

// Store is a storage.Store backed by a JetStream object store bucket.
type Store struct {
	bucket  jetstream.ObjectStore
	name    string
	metrics *storeMetrics
}

var _ storage.Store = (*Store)(nil)

// NewStore opens (or creates) the bucket of cfg on a connected client.
func NewStore(ctx context.Context, client *natsclient.Client, cfg Config, registry *metric.MetricsRegistry) (*Store, error) {
	if client == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "objectstore", "NewStore", "nats client is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	bucket, err := client.ObjectStore(ctx, cfg.bucketConfig())
	if err != nil {
		return nil, err
	}
	metrics, err := newStoreMetrics(registry, cfg.Bucket)
	if err != nil {
		return nil, err
	}
	return &Store{bucket: bucket, name: cfg.Bucket, metrics: metrics}, nil
}

// Put implements storage.Store.
func (s *Store) Put(ctx context.Context, key string, data []byte) (err error) {
	defer func(start time.Time) { s.metrics.observe("put", start, err) }(time.Now())
	if _, err = s.bucket.PutBytes(ctx, key, data); err != nil {
		return errors.WrapTransient(err, "objectstore", "Put", fmt.Sprintf("put %s/%s", s.name, key))
	}
	s.metrics.recordBytes("write", len(data))
	return nil
}

// Get implements storage.Store.
func (s *Store) Get(ctx context.Context, key string) (data []byte, err error) {
	defer func(start time.Time) { s.metrics.observe("get", start, err) }(time.Now())
	data, err = s.bucket.GetBytes(ctx, key)
	if stderrors.Is(err, jetstream.ErrObjectNotFound) {
		return nil, fmt.Errorf("%s/%s: %w", s.name, key, storage.ErrKeyNotFound)
	}
	if err != nil {
		return nil, errors.WrapTransient(err, "objectstore", "Get", fmt.Sprintf("get %s/%s", s.name, key))
	}
	s.metrics.recordBytes("read", len(data))
	return data, nil
}

// List implements storage.Store.
func (s *Store) List(ctx context.Context, prefix string) (keys []string, err error) {
	defer func(start time.Time) { s.metrics.observe("list", start, err) }(time.Now())
	infos, err := s.bucket.List(ctx)
	if stderrors.Is(err, jetstream.ErrNoObjectsFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, errors.WrapTransient(err, "objectstore", "List", "list "+s.name)
	}
	keys = []string{}
	for _, info := range infos {
		if !info.Deleted && strings.HasPrefix(info.Name, prefix) {
			keys = append(keys, info.Name)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// Delete implements storage.Store.
func (s *Store) Delete(ctx context.Context, key string) (err error) {
	defer func(start time.Time) { s.metrics.observe("delete", start, err) }(time.Now())
	err = s.bucket.Delete(ctx, key)
	if err == nil || stderrors.Is(err, jetstream.ErrObjectNotFound) {
		return nil
	}
	return errors.WrapTransient(err, "objectstore", "Delete", fmt.Sprintf("delete %s/%s", s.name, key))
}
