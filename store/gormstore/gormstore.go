// Package gormstore implements store.TermStore on a relational database
// through gorm. sqlite and postgres dialects are supported.
package gormstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	stderrors "errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/c360/cvsync/cv"
	"github.com/c360/cvsync/errors"
	"github.com/c360/cvsync/store"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store is a gorm backed TermStore. A Store returned by Atomic is bound to
// the open transaction.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

var _ store.TermStore = (*Store)(nil)

// Open connects with the given driver and DSN and migrates the schema.
func Open(ctx context.Context, driverName, dsn string, logger *slog.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch driverName {
	case DriverSQLite, "":
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "gormstore", "Open",
			fmt.Sprintf("unsupported driver %q", driverName))
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.WrapTransient(fmt.Errorf("%w: %w", errors.ErrStorageUnavailable, err),
			"gormstore", "Open", "connect to database")
	}
	return New(ctx, db, logger)
}

// New wraps an open gorm connection and migrates the schema.
func New(ctx context.Context, db *gorm.DB, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := db.WithContext(ctx).AutoMigrate(allModels()...); err != nil {
		return nil, errors.WrapFatal(err, "gormstore", "New", "migrate schema")
	}
	logger.Debug("Term store schema migrated", "dialect", db.Dialector.Name())
	return &Store{db: db, logger: logger}, nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return s.fail("Ping", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return s.fail("Ping", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Atomic implements store.TermStore.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	var inner error
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inner = fn(ctx, &Store{db: tx, logger: s.logger})
		return inner
	})
	if inner != nil {
		return inner
	}
	if err != nil {
		return s.fail("Atomic", err)
	}
	return nil
}

// fail maps driver errors onto the store error contract.
func (s *Store) fail(op string, err error) error {
	switch {
	case stderrors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("gormstore.%s: %w", op, store.ErrTermNotFound)
	case stderrors.Is(err, driver.ErrBadConn),
		stderrors.Is(err, sql.ErrConnDone),
		stderrors.Is(err, context.Canceled),
		stderrors.Is(err, context.DeadlineExceeded),
		strings.Contains(err.Error(), "database is closed"):
		return errors.WrapTransient(fmt.Errorf("%w: %w", errors.ErrStorageUnavailable, err),
			"gormstore", op, "database unreachable")
	default:
		return errors.Wrap(err, "gormstore", op, "query")
	}
}

func (s *Store) with(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func byID(db *gorm.DB) *gorm.DB { return db.Order("id") }

func (s *Store) loaded(ctx context.Context) *gorm.DB {
	return s.with(ctx).
		Preload("Xrefs", byID).
		Preload("Aliases", byID).
		Preload("Annotations", byID).
		Preload("ParentEdges", func(db *gorm.DB) *gorm.DB { return db.Order("parent_id") })
}

func toTerms(models []termModel) []*cv.Term {
	out := make([]*cv.Term, len(models))
	for i := range models {
		out[i] = models[i].toTerm()
	}
	return out
}

func (s *Store) exists(ctx context.Context, op string, id cv.TermID) error {
	var n int64
	if err := s.with(ctx).Model(&termModel{}).Where("id = ?", int64(id)).Count(&n).Error; err != nil {
		return s.fail(op, err)
	}
	if n == 0 {
		return fmt.Errorf("gormstore.%s: term %d: %w", op, id, store.ErrTermNotFound)
	}
	return nil
}

// TermByID implements store.Tx.
func (s *Store) TermByID(ctx context.Context, id cv.TermID) (*cv.Term, error) {
	var m termModel
	if err := s.loaded(ctx).First(&m, int64(id)).Error; err != nil {
		return nil, s.fail("TermByID", err)
	}
	return m.toTerm(), nil
}

func (s *Store) identityXrefs(ctx context.Context, database string) *gorm.DB {
	return s.with(ctx).Model(&xrefModel{}).Select("term_id").
		Where("db_name = ? AND qualifier = ?", database, cv.QualifierIdentity)
}

// TermsByIdentity implements store.Tx.
func (s *Store) TermsByIdentity(ctx context.Context, database, accession string) ([]*cv.Term, error) {
	var models []termModel
	sub := s.identityXrefs(ctx, database).Where("primary_id = ?", accession)
	if err := s.loaded(ctx).Where("id IN (?)", sub).Order("id").Find(&models).Error; err != nil {
		return nil, s.fail("TermsByIdentity", err)
	}
	return toTerms(models), nil
}

// TermByShortLabel implements store.Tx.
func (s *Store) TermByShortLabel(ctx context.Context, label string) (*cv.Term, error) {
	var m termModel
	if err := s.loaded(ctx).Where("short_label = ?", label).Order("id").First(&m).Error; err != nil {
		return nil, s.fail("TermByShortLabel", err)
	}
	return m.toTerm(), nil
}

// TermsForDatabase implements store.Tx.
func (s *Store) TermsForDatabase(ctx context.Context, database string) ([]*cv.Term, error) {
	var models []termModel
	if err := s.loaded(ctx).Where("id IN (?)", s.identityXrefs(ctx, database)).Order("id").Find(&models).Error; err != nil {
		return nil, s.fail("TermsForDatabase", err)
	}
	return toTerms(models), nil
}

// CreateTerm implements store.Tx.
func (s *Store) CreateTerm(ctx context.Context, term *cv.Term) (cv.TermID, error) {
	if term.ShortLabel == "" {
		return 0, errors.WrapInvalid(errors.ErrInvalidData, "gormstore", "CreateTerm", "short label is required")
	}
	for _, p := range term.Parents {
		if err := s.exists(ctx, "CreateTerm", p); err != nil {
			return 0, err
		}
	}

	m := fromTerm(term)
	m.ID = 0
	var id cv.TermID
	err := s.with(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		for _, p := range term.Parents {
			edge := edgeModel{ChildID: m.ID, ParentID: int64(p)}
			if err := tx.Where(&edge).FirstOrCreate(&edge).Error; err != nil {
				return err
			}
		}
		id = cv.TermID(m.ID)
		return nil
	})
	if err != nil {
		return 0, s.fail("CreateTerm", err)
	}
	return id, nil
}

// UpdateTerm implements store.Tx.
func (s *Store) UpdateTerm(ctx context.Context, term *cv.Term) error {
	if err := s.exists(ctx, "UpdateTerm", term.ID); err != nil {
		return err
	}
	err := s.with(ctx).Model(&termModel{ID: int64(term.ID)}).
		Select("Kind", "Identifier", "ShortLabel", "FullName", "Hidden").
		Updates(&termModel{
			Kind:       term.Kind,
			Identifier: term.Identifier,
			ShortLabel: term.ShortLabel,
			FullName:   term.FullName,
			Hidden:     term.Hidden,
		}).Error
	if err != nil {
		return s.fail("UpdateTerm", err)
	}
	return nil
}

// DeleteTerm implements store.Tx.
func (s *Store) DeleteTerm(ctx context.Context, id cv.TermID) error {
	if err := s.exists(ctx, "DeleteTerm", id); err != nil {
		return err
	}
	tid := int64(id)
	err := s.with(ctx).Transaction(func(tx *gorm.DB) error {
		steps := []func() error{
			func() error { return tx.Where("term_id = ?", tid).Delete(&xrefModel{}).Error },
			func() error { return tx.Where("term_id = ?", tid).Delete(&aliasModel{}).Error },
			func() error { return tx.Where("term_id = ?", tid).Delete(&annotationModel{}).Error },
			func() error { return tx.Where("term_id = ?", tid).Delete(&referenceModel{}).Error },
			func() error { return tx.Where("child_id = ? OR parent_id = ?", tid, tid).Delete(&edgeModel{}).Error },
			func() error { return tx.Delete(&termModel{}, tid).Error },
		}
		for _, step := range steps {
			if err := step(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return s.fail("DeleteTerm", err)
	}
	return nil
}

// AddXref implements store.Tx.
func (s *Store) AddXref(ctx context.Context, id cv.TermID, x cv.Xref) error {
	if err := s.exists(ctx, "AddXref", id); err != nil {
		return err
	}
	row := xrefModel{TermID: int64(id), Database: x.Database, Qualifier: x.Qualifier,
		PrimaryID: x.PrimaryID, SecondaryID: x.SecondaryID}
	if err := s.with(ctx).Create(&row).Error; err != nil {
		return s.fail("AddXref", err)
	}
	return nil
}

// UpdateXref implements store.Tx.
func (s *Store) UpdateXref(ctx context.Context, id cv.TermID, old, updated cv.Xref) error {
	var row xrefModel
	err := s.with(ctx).Where(xrefMatch(id, old)).Order("id").First(&row).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return errors.WrapInvalid(errors.ErrInvalidData, "gormstore", "UpdateXref",
			fmt.Sprintf("term %d has no xref %s:%s", id, old.Database, old.PrimaryID))
	}
	if err != nil {
		return s.fail("UpdateXref", err)
	}
	err = s.with(ctx).Model(&row).Select("Database", "Qualifier", "PrimaryID", "SecondaryID").
		Updates(&xrefModel{Database: updated.Database, Qualifier: updated.Qualifier,
			PrimaryID: updated.PrimaryID, SecondaryID: updated.SecondaryID}).Error
	if err != nil {
		return s.fail("UpdateXref", err)
	}
	return nil
}

// removeFirst deletes the first row of model matching cond.
func (s *Store) removeFirst(ctx context.Context, op string, id cv.TermID, model any, cond map[string]any) error {
	if err := s.exists(ctx, op, id); err != nil {
		return err
	}
	var rowIDs []int64
	if err := s.with(ctx).Model(model).Where(cond).Order("id").Limit(1).Pluck("id", &rowIDs).Error; err != nil {
		return s.fail(op, err)
	}
	if len(rowIDs) == 0 {
		return nil
	}
	if err := s.with(ctx).Where("id = ?", rowIDs[0]).Delete(model).Error; err != nil {
		return s.fail(op, err)
	}
	return nil
}

// RemoveXref implements store.Tx.
func (s *Store) RemoveXref(ctx context.Context, id cv.TermID, x cv.Xref) error {
	return s.removeFirst(ctx, "RemoveXref", id, &xrefModel{}, xrefMatch(id, x))
}

// AddAlias implements store.Tx.
func (s *Store) AddAlias(ctx context.Context, id cv.TermID, a cv.Alias) error {
	if err := s.exists(ctx, "AddAlias", id); err != nil {
		return err
	}
	if err := s.with(ctx).Create(&aliasModel{TermID: int64(id), Type: a.Type, Name: a.Name}).Error; err != nil {
		return s.fail("AddAlias", err)
	}
	return nil
}

// RemoveAlias implements store.Tx.
func (s *Store) RemoveAlias(ctx context.Context, id cv.TermID, a cv.Alias) error {
	return s.removeFirst(ctx, "RemoveAlias", id, &aliasModel{}, aliasMatch(id, a))
}

// AddAnnotation implements store.Tx.
func (s *Store) AddAnnotation(ctx context.Context, id cv.TermID, a cv.Annotation) error {
	if err := s.exists(ctx, "AddAnnotation", id); err != nil {
		return err
	}
	if err := s.with(ctx).Create(&annotationModel{TermID: int64(id), Topic: a.Topic, Text: a.Text}).Error; err != nil {
		return s.fail("AddAnnotation", err)
	}
	return nil
}

// UpdateAnnotation implements store.Tx.
func (s *Store) UpdateAnnotation(ctx context.Context, id cv.TermID, old, updated cv.Annotation) error {
	var row annotationModel
	err := s.with(ctx).Where(annotationMatch(id, old)).Order("id").First(&row).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return errors.WrapInvalid(errors.ErrInvalidData, "gormstore", "UpdateAnnotation",
			fmt.Sprintf("term %d has no %s annotation %q", id, old.Topic, old.Text))
	}
	if err != nil {
		return s.fail("UpdateAnnotation", err)
	}
	err = s.with(ctx).Model(&row).Select("Topic", "Text").
		Updates(&annotationModel{Topic: updated.Topic, Text: updated.Text}).Error
	if err != nil {
		return s.fail("UpdateAnnotation", err)
	}
	return nil
}

// RemoveAnnotation implements store.Tx.
func (s *Store) RemoveAnnotation(ctx context.Context, id cv.TermID, a cv.Annotation) error {
	return s.removeFirst(ctx, "RemoveAnnotation", id, &annotationModel{}, annotationMatch(id, a))
}

// AddParent implements store.Tx.
func (s *Store) AddParent(ctx context.Context, child, parent cv.TermID) error {
	if err := s.exists(ctx, "AddParent", child); err != nil {
		return err
	}
	if err := s.exists(ctx, "AddParent", parent); err != nil {
		return err
	}
	if child == parent {
		return errors.WrapInvalid(errors.ErrInvalidData, "gormstore", "AddParent",
			fmt.Sprintf("term %d cannot be its own parent", child))
	}
	edge := edgeModel{ChildID: int64(child), ParentID: int64(parent)}
	if err := s.with(ctx).Where(&edge).FirstOrCreate(&edge).Error; err != nil {
		return s.fail("AddParent", err)
	}
	return nil
}

// RemoveParent implements store.Tx.
func (s *Store) RemoveParent(ctx context.Context, child, parent cv.TermID) error {
	if err := s.exists(ctx, "RemoveParent", child); err != nil {
		return err
	}
	err := s.with(ctx).Where("child_id = ? AND parent_id = ?", int64(child), int64(parent)).
		Delete(&edgeModel{}).Error
	if err != nil {
		return s.fail("RemoveParent", err)
	}
	return nil
}

// Children implements store.Tx.
func (s *Store) Children(ctx context.Context, id cv.TermID) ([]cv.TermID, error) {
	if err := s.exists(ctx, "Children", id); err != nil {
		return nil, err
	}
	var ids []int64
	err := s.with(ctx).Model(&edgeModel{}).Where("parent_id = ?", int64(id)).
		Order("child_id").Pluck("child_id", &ids).Error
	if err != nil {
		return nil, s.fail("Children", err)
	}
	return toTermIDs(ids), nil
}

// Ancestors implements store.Tx.
func (s *Store) Ancestors(ctx context.Context, id cv.TermID) ([]cv.TermID, error) {
	if err := s.exists(ctx, "Ancestors", id); err != nil {
		return nil, err
	}
	seen := make(map[int64]bool)
	frontier := []int64{int64(id)}
	for len(frontier) > 0 {
		var parents []int64
		err := s.with(ctx).Model(&edgeModel{}).Where("child_id IN ?", frontier).
			Pluck("parent_id", &parents).Error
		if err != nil {
			return nil, s.fail("Ancestors", err)
		}
		frontier = frontier[:0]
		for _, p := range parents {
			if !seen[p] {
				seen[p] = true
				frontier = append(frontier, p)
			}
		}
	}
	out := make([]int64, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	slices.Sort(out)
	return toTermIDs(out), nil
}

// AddReference implements store.Tx.
func (s *Store) AddReference(ctx context.Context, ref cv.Reference) error {
	if err := s.exists(ctx, "AddReference", ref.TermID); err != nil {
		return err
	}
	row := referenceModel{Kind: string(ref.Kind), Owner: ref.Owner, TermID: int64(ref.TermID)}
	if err := s.with(ctx).Create(&row).Error; err != nil {
		return s.fail("AddReference", err)
	}
	return nil
}

// ReferencingKinds implements store.Tx.
func (s *Store) ReferencingKinds(ctx context.Context, id cv.TermID) ([]cv.RefKind, error) {
	var kinds []string
	err := s.with(ctx).Model(&referenceModel{}).Distinct("kind").
		Where("term_id = ?", int64(id)).Order("kind").Pluck("kind", &kinds).Error
	if err != nil {
		return nil, s.fail("ReferencingKinds", err)
	}
	out := make([]cv.RefKind, len(kinds))
	for i, k := range kinds {
		out[i] = cv.RefKind(k)
	}
	return out, nil
}

// RepointReferences implements store.Tx.
func (s *Store) RepointReferences(ctx context.Context, kind cv.RefKind, from, to cv.TermID) (int64, error) {
	if err := s.exists(ctx, "RepointReferences", to); err != nil {
		return 0, err
	}
	res := s.with(ctx).Model(&referenceModel{}).
		Where("kind = ? AND term_id = ?", string(kind), int64(from)).
		Update("term_id", int64(to))
	if res.Error != nil {
		return 0, s.fail("RepointReferences", res.Error)
	}
	return res.RowsAffected, nil
}

// CountReferences implements store.Tx.
func (s *Store) CountReferences(ctx context.Context, id cv.TermID) (int64, error) {
	var n int64
	if err := s.with(ctx).Model(&referenceModel{}).Where("term_id = ?", int64(id)).Count(&n).Error; err != nil {
		return 0, s.fail("CountReferences", err)
	}
	return n, nil
}

// DuplicateIdentities implements store.Tx.
func (s *Store) DuplicateIdentities(ctx context.Context, database string) (map[string][]cv.TermID, error) {
	var rows []xrefModel
	err := s.with(ctx).Select("primary_id", "term_id").
		Where("db_name = ? AND qualifier = ?", database, cv.QualifierIdentity).
		Order("primary_id").Order("term_id").Find(&rows).Error
	if err != nil {
		return nil, s.fail("DuplicateIdentities", err)
	}

	byAcc := make(map[string][]cv.TermID)
	for _, r := range rows {
		ids := byAcc[r.PrimaryID]
		if !slices.Contains(ids, cv.TermID(r.TermID)) {
			byAcc[r.PrimaryID] = append(ids, cv.TermID(r.TermID))
		}
	}
	for acc, ids := range byAcc {
		if len(ids) < 2 {
			delete(byAcc, acc)
		}
	}
	return byAcc, nil
}

func toTermIDs(ids []int64) []cv.TermID {
	out := make([]cv.TermID, len(ids))
	for i, id := range ids {
		out[i] = cv.TermID(id)
	}
	return out
}
