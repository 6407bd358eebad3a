package objectstore

import (
	"context"
	"log/slog"
	"strings"

	"github.com/c360/cvsync/errors"
	"github.com/c360/cvsync/report"
	"github.com/c360/cvsync/storage"
)

const reportSuffix = ".json"

// ReportArchive keeps run reports as JSON objects keyed by report id.
type ReportArchive struct {
	store  storage.Store
	prefix string
	logger *slog.Logger
}

// NewReportArchive archives into store under prefix.
func NewReportArchive(store storage.Store, prefix string, logger *slog.Logger) (*ReportArchive, error) {
	if store == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "ReportArchive", "NewReportArchive", "store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportArchive{store: store, prefix: prefix, logger: logger.With("component", "report-archive")}, nil
}

// Key returns the object key of a report id.
func (a *ReportArchive) Key(id string) string {
	return a.prefix + id + reportSuffix
}

// Save stores the report and returns its key. An existing report with the
// same id is replaced.
func (a *ReportArchive) Save(ctx context.Context, r *report.Report) (string, error) {
	if r == nil || r.ID == "" {
		return "", errors.WrapInvalid(errors.ErrInvalidData, "ReportArchive", "Save", "report id is required")
	}
	data, err := r.JSON()
	if err != nil {
		return "", err
	}
	key := a.Key(r.ID)
	if err := a.store.Put(ctx, key, data); err != nil {
		return "", errors.Wrap(err, "ReportArchive", "Save", "store report "+r.ID)
	}
	a.logger.Info("Archived run report", "key", key, "errors", r.ErrorCount(), "aborted", r.Aborted())
	return key, nil
}

// Load returns the archived report of id. A missing report yields an error
// wrapping storage.ErrKeyNotFound.
func (a *ReportArchive) Load(ctx context.Context, id string) (*report.Report, error) {
	data, err := a.store.Get(ctx, a.Key(id))
	if err != nil {
		return nil, errors.Wrap(err, "ReportArchive", "Load", "load report "+id)
	}
	return report.Parse(data)
}

// IDs lists the archived report ids in key order.
func (a *ReportArchive) IDs(ctx context.Context) ([]string, error) {
	keys, err := a.store.List(ctx, a.prefix)
	if err != nil {
		return nil, errors.Wrap(err, "ReportArchive", "IDs", "list reports")
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		if !strings.HasSuffix(k, reportSuffix) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(strings.TrimPrefix(k, a.prefix), reportSuffix))
	}
	return ids, nil
}

// Delete removes the report of id.
func (a *ReportArchive) Delete(ctx context.Context, id string) error {
	if err := a.store.Delete(ctx, a.Key(id)); err != nil {
		return errors.Wrap(err, "ReportArchive", "Delete", "delete report "+id)
	}
	return nil
}
