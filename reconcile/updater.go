package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/c360/cvsync/cv"
	"github.com/c360/cvsync/errors"
	"github.com/c360/cvsync/events"
	"github.com/c360/cvsync/ontology"
	"github.com/c360/cvsync/store"
	"github.com/c360/cvsync/vocabulary"
)

// Options tunes a reconciliation run.
type Options struct {
	// ImportNewTerms creates ontology terms that have no stored counterpart.
	ImportNewTerms bool
	// IncludeObsoleteOnImport also creates obsolete terms during import.
	IncludeObsoleteOnImport bool
}

// Dependencies holds the collaborators of an Updater.
type Dependencies struct {
	Store      store.TermStore
	Sources    *ontology.Registry
	Vocabulary *vocabulary.Registry
	Repoint    *RepointRegistry
	Sink       events.Sink
	Logger     *slog.Logger
}

// Updater reconciles the term store against its ontology sources.
//
// A run walks ontologies one at a time and terms one at a time. Each term is
// reconciled in its own transactional unit: a failing term is reported as an
// UpdateError event and the run moves on. Only store connectivity failures end
// a run early.
type Updater struct {
	store   store.TermStore
	sources *ontology.Registry
	vocab   *vocabulary.Registry
	sink    events.Sink
	logger  *slog.Logger
	opts    Options

	xrefs       XrefSync
	aliases     AliasSync
	annotations AnnotationSync
	parents     ParentSync
	remapper    ObsoleteRemapper
}

// NewUpdater creates an Updater. Vocabulary defaults to vocabulary.Default,
// Repoint to DefaultRepointRegistry and Sink to events.Discard.
func NewUpdater(deps Dependencies, opts Options) (*Updater, error) {
	if deps.Store == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Updater", "NewUpdater", "term store required")
	}
	if deps.Sources == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Updater", "NewUpdater", "ontology sources required")
	}
	if deps.Vocabulary == nil {
		deps.Vocabulary = vocabulary.Default()
	}
	if deps.Repoint == nil {
		deps.Repoint = DefaultRepointRegistry()
	}
	if deps.Sink == nil {
		deps.Sink = events.Discard
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	logger := deps.Logger.With("component", "cv-updater")
	return &Updater{
		store:       deps.Store,
		sources:     deps.Sources,
		vocab:       deps.Vocabulary,
		sink:        events.MultiSink{deps.Sink, auditSink(logger)},
		logger:      logger,
		opts:        opts,
		xrefs:       XrefSync{Vocabulary: deps.Vocabulary},
		annotations: AnnotationSync{Vocabulary: deps.Vocabulary},
		remapper:    ObsoleteRemapper{Vocabulary: deps.Vocabulary, Repoint: deps.Repoint},
	}, nil
}

// auditSink logs every merge with its repointed row count.
func auditSink(logger *slog.Logger) events.Sink {
	return events.SinkFunc(func(ctx context.Context, e events.Event) {
		if m, ok := e.(events.ObsoleteRemapped); ok && m.Merged {
			logger.InfoContext(ctx, "Merged obsolete term",
				"ontology", m.Ontology,
				"from", m.FromAccession,
				"to", m.ToAccession,
				"affected", m.Affected,
				"deleted", m.Deleted)
		}
	})
}

// run is the state of one ontology inside one Run call.
type run struct {
	id        string
	src       ontology.Source
	db        vocabulary.Database
	processed map[string]bool
	deferred  []deferredRemap
	missing   *MissingParentResolver
	count     int
}

type deferredRemap struct {
	termID    cv.TermID
	accession string
}

// Run reconciles the given ontologies in order, or every registered one when
// ids is empty. The processed set is shared across ontologies so no accession
// is handled twice in one call.
func (u *Updater) Run(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		ids = u.sources.IDs()
	}
	processed := make(map[string]bool)
	for _, id := range ids {
		src, ok := u.sources.Get(id)
		if !ok {
			return errors.WrapInvalid(fmt.Errorf("unknown ontology %q", id), "Updater", "Run", "resolve ontology")
		}
		if err := u.runOntology(ctx, u.newRun(src, processed)); err != nil {
			return err
		}
	}
	return nil
}

func (u *Updater) newRun(src ontology.Source, processed map[string]bool) *run {
	return &run{
		id:        uuid.NewString(),
		src:       src,
		db:        u.databaseFor(src),
		processed: processed,
		missing:   NewMissingParentResolver(),
	}
}

// databaseFor returns the registered database of a source, or one derived from
// the source itself.
func (u *Updater) databaseFor(src ontology.Source) vocabulary.Database {
	if db, ok := u.vocab.DatabaseByName(src.DatabaseIdentifier()); ok {
		return db
	}
	return vocabulary.Database{
		Name:       src.DatabaseIdentifier(),
		OntologyID: src.OntologyID(),
		Pattern:    src.DatabaseRegexp(),
	}
}

func (u *Updater) runOntology(ctx context.Context, r *run) error {
	start := time.Now()
	ontologyID := r.src.OntologyID()
	u.sink.Emit(ctx, events.RunStarted{RunID: r.id, Ontology: ontologyID, At: start})
	u.logger.Info("Starting ontology update", "ontology", ontologyID, "run_id", r.id)

	err := u.steps(ctx, r)

	u.sink.Emit(ctx, events.RunFinished{
		RunID:     r.id,
		Ontology:  ontologyID,
		At:        time.Now(),
		Duration:  time.Since(start),
		Processed: r.count,
		Aborted:   err != nil,
	})
	if err != nil {
		u.logger.Error("Ontology update aborted", "ontology", ontologyID, "processed", r.count, "error", err)
		return errors.WrapTransient(err, "Updater", "Run", "update ontology "+ontologyID)
	}
	u.logger.Info("Ontology update finished", "ontology", ontologyID, "processed", r.count,
		"duration", time.Since(start))
	return nil
}

func (u *Updater) steps(ctx context.Context, r *run) error {
	if err := u.updateExisting(ctx, r); err != nil {
		return err
	}
	if err := u.resolveDeferred(ctx, r); err != nil {
		return err
	}
	if err := u.resolveMissing(ctx, r); err != nil {
		return err
	}
	if u.opts.ImportNewTerms {
		if err := u.importNewTerms(ctx, r); err != nil {
			return err
		}
		if err := u.resolveMissing(ctx, r); err != nil {
			return err
		}
	}
	return u.reportDuplicates(ctx, r)
}

// unitFunc is the body of one transactional unit.
type unitFunc func(ctx context.Context, tx store.Tx, st *unitState) error

// atomic runs fn in one transactional unit, recovering panics, and delivers
// the unit's events and missing parents according to its outcome.
func (u *Updater) atomic(ctx context.Context, r *run, accession string, fn unitFunc) error {
	st := &unitState{}
	err := u.store.Atomic(ctx, func(ctx context.Context, tx store.Tx) (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = errors.WrapFatal(fmt.Errorf("panic: %v", p), "Updater", "unit", "update "+accession)
			}
		}()
		return fn(ctx, tx, st)
	})

	st.flush(ctx, u.sink, err == nil)
	if err != nil {
		return err
	}
	for _, m := range st.missing {
		if m.database != r.db.Name {
			u.logger.Debug("Missing parent belongs to another ontology",
				"accession", m.accession, "database", m.database)
			continue
		}
		r.missing.Record(m.accession, m.dependent)
	}
	return nil
}

// unit runs fn and turns any failure other than a connectivity loss into an
// UpdateError event.
func (u *Updater) unit(ctx context.Context, r *run, accession string, termID cv.TermID, fn unitFunc) error {
	err := u.atomic(ctx, r, accession, fn)
	if err == nil || store.IsConnectivity(err) {
		return err
	}
	u.fail(ctx, r, err, accession, termID)
	return nil
}

func (u *Updater) fail(ctx context.Context, r *run, err error, accession string, termID cv.TermID) {
	ev := events.FromError(r.src.OntologyID(), err, accession, termID)
	u.sink.Emit(ctx, ev)
	u.logger.Warn("Term update failed",
		"ontology", ev.Ontology,
		"accession", accession,
		"term_id", termID,
		"kind", ev.Kind,
		"error", err)
}

// updateExisting reconciles every stored term of the ontology.
func (u *Updater) updateExisting(ctx context.Context, r *run) error {
	terms, err := u.store.TermsForDatabase(ctx, r.db.Name)
	if err != nil {
		return err
	}
	for _, t := range terms {
		if err := ctx.Err(); err != nil {
			return err
		}
		acc, ok := identityAccession(t, r.db)
		if !ok || r.processed[acc] {
			continue
		}
		r.processed[acc] = true
		r.count++
		if err := u.unit(ctx, r, acc, t.ID, func(ctx context.Context, tx store.Tx, st *unitState) error {
			return u.updateTerm(ctx, r, tx, st, t.ID, acc)
		}); err != nil {
			return err
		}
	}
	return nil
}

func (u *Updater) updateTerm(ctx context.Context, r *run, tx store.Tx, st *unitState, id cv.TermID, acc string) error {
	term, err := tx.TermByID(ctx, id)
	if store.IsNotFound(err) {
		// merged away earlier in this run
		return nil
	}
	if err != nil {
		return err
	}
	snap, err := r.src.TermForAccession(ctx, acc)
	if err != nil {
		return sourceError(err, acc)
	}
	if snap == nil {
		return errors.NewUpdateError(errors.KindNonExistingTerm, acc,
			fmt.Sprintf("accession is absent from %s", r.src.OntologyID()))
	}

	tu := newTermUpdate(tx, r.src, r.db, term, snap, st)
	if r.src.IsObsolete(snap) {
		outcome, err := u.remapper.remap(ctx, tu)
		if err != nil {
			return err
		}
		switch outcome {
		case OutcomeDeferred:
			r.deferred = append(r.deferred, deferredRemap{termID: id, accession: acc})
			return nil
		case OutcomeMerged:
			return nil
		case OutcomeRemapped:
			r.processed[tu.snap.Accession] = true
		}
	}
	return u.syncAttributes(ctx, tu)
}

// syncAttributes runs every attribute synchronizer against the unit's snapshot.
func (u *Updater) syncAttributes(ctx context.Context, tu *termUpdate) error {
	if err := tu.updateLabels(ctx); err != nil {
		return err
	}
	if err := u.xrefs.sync(ctx, tu); err != nil {
		return err
	}
	if err := u.aliases.sync(ctx, tu); err != nil {
		return err
	}
	if err := u.annotations.sync(ctx, tu); err != nil {
		return err
	}
	if err := u.parents.sync(ctx, tu); err != nil {
		return err
	}
	tu.finish(ctx)
	return nil
}

// resolveDeferred retries remaps that point into another ontology.
func (u *Updater) resolveDeferred(ctx context.Context, r *run) error {
	deferred := r.deferred
	r.deferred = nil
	for _, d := range deferred {
		if err := u.unit(ctx, r, d.accession, d.termID, func(ctx context.Context, tx store.Tx, st *unitState) error {
			term, err := tx.TermByID(ctx, d.termID)
			if store.IsNotFound(err) {
				return nil
			}
			if err != nil {
				return err
			}
			snap, err := r.src.TermForAccession(ctx, d.accession)
			if err != nil {
				return sourceError(err, d.accession)
			}
			if snap == nil {
				return errors.NewUpdateError(errors.KindNonExistingTerm, d.accession,
					fmt.Sprintf("accession is absent from %s", r.src.OntologyID()))
			}

			tu := newTermUpdate(tx, r.src, r.db, term, snap, st)
			outcome, err := u.remapper.remapAcross(ctx, tu, u.sources)
			if err != nil {
				return err
			}
			switch outcome {
			case OutcomeMerged:
				return nil
			case OutcomeRemapped:
				r.processed[tu.snap.Accession] = true
			}
			return u.syncAttributes(ctx, tu)
		}); err != nil {
			return err
		}
	}
	return nil
}

// resolveMissing creates every recorded missing parent and attaches its
// dependents. Parents created here may record further missing parents, which
// are drained in the same loop.
func (u *Updater) resolveMissing(ctx context.Context, r *run) error {
	for {
		acc, deps, ok := r.missing.Next()
		if !ok {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		r.processed[acc] = true
		if err := u.unit(ctx, r, acc, 0, func(ctx context.Context, tx store.Tx, st *unitState) error {
			return u.createMissingParent(ctx, r, tx, st, acc, deps)
		}); err != nil {
			return err
		}
	}
}

func (u *Updater) createMissingParent(ctx context.Context, r *run, tx store.Tx, st *unitState,
	acc string, deps []Dependent) error {
	var parentID cv.TermID
	stored, err := tx.TermsByIdentity(ctx, r.db.Name, acc)
	if err != nil {
		return err
	}
	if len(stored) > 0 {
		parentID = stored[0].ID
	} else {
		snap, err := r.src.TermForAccession(ctx, acc)
		if err != nil {
			return sourceError(err, acc)
		}
		if snap == nil {
			return errors.NewUpdateError(errors.KindNonExistingTerm, acc,
				fmt.Sprintf("missing parent is absent from %s", r.src.OntologyID()))
		}
		tu, err := u.createTerm(ctx, tx, r.src, r.db, snap, st)
		if err != nil {
			return err
		}
		r.count++
		parentID = tu.term.ID
	}

	for _, d := range deps {
		if _, err := tx.TermByID(ctx, d.TermID); store.IsNotFound(err) {
			continue
		} else if err != nil {
			return err
		}
		linked, err := linkParent(ctx, tx, d.TermID, parentID)
		if err != nil {
			return err
		}
		if !linked {
			st.Emit(ctx, events.FromError(r.src.OntologyID(), cycleError(d.Accession, acc), d.Accession, d.TermID))
			continue
		}
		st.Emit(ctx, events.TermUpdated{
			Ontology:       r.src.OntologyID(),
			Accession:      d.Accession,
			TermID:         d.TermID,
			Updated:        true,
			CreatedParents: []string{acc},
		})
	}
	return nil
}

// createTerm persists a new term for snap and reconciles it like any stored
// term, which links its stored parents and records the missing ones.
func (u *Updater) createTerm(ctx context.Context, tx store.Tx, src ontology.Source, db vocabulary.Database,
	snap *ontology.TermSnapshot, st *unitState) (*termUpdate, error) {
	label := snap.ShortLabel
	if label == "" {
		label = snap.Accession
	}
	term := &cv.Term{
		Identifier: snap.Accession,
		ShortLabel: label,
		FullName:   snap.FullName,
		Xrefs: []cv.Xref{
			{Database: db.Name, Qualifier: cv.QualifierIdentity, PrimaryID: snap.Accession},
		},
	}
	id, err := tx.CreateTerm(ctx, term)
	if err != nil {
		return nil, err
	}
	term.ID = id

	tu := newTermUpdate(tx, src, db, term, snap, st)
	tu.change.Created = true
	if err := u.syncAttributes(ctx, tu); err != nil {
		return nil, err
	}
	return tu, nil
}

// importNewTerms walks the ontology from its roots and creates every term
// without a stored counterpart. Parents are visited before their children.
func (u *Updater) importNewTerms(ctx context.Context, r *run) error {
	roots, err := r.src.RootTerms(ctx)
	if err != nil {
		u.fail(ctx, r, sourceError(err, ""), "", 0)
		return nil
	}

	queue := slices.Clone(roots)
	seen := make(map[string]bool)
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		snap := queue[0]
		queue = queue[1:]
		if seen[snap.Accession] {
			continue
		}
		seen[snap.Accession] = true
		if r.src.IsObsolete(snap) && !u.opts.IncludeObsoleteOnImport {
			continue
		}

		if !r.processed[snap.Accession] {
			r.processed[snap.Accession] = true
			if err := u.unit(ctx, r, snap.Accession, 0, func(ctx context.Context, tx store.Tx, st *unitState) error {
				stored, err := tx.TermsByIdentity(ctx, r.db.Name, snap.Accession)
				if err != nil || len(stored) > 0 {
					return err
				}
				r.count++
				_, err = u.createTerm(ctx, tx, r.src, r.db, snap, st)
				return err
			}); err != nil {
				return err
			}
		}

		children, err := r.src.Children(ctx, snap)
		if err != nil {
			u.fail(ctx, r, sourceError(err, snap.Accession), snap.Accession, 0)
			continue
		}
		queue = append(queue, children...)
	}
	return nil
}

// reportDuplicates emits one DuplicateTerms event and one duplicated_term
// error per accession bound to several stored terms.
func (u *Updater) reportDuplicates(ctx context.Context, r *run) error {
	dups, err := u.store.DuplicateIdentities(ctx, r.db.Name)
	if err != nil {
		return err
	}
	accs := make([]string, 0, len(dups))
	for acc := range dups {
		accs = append(accs, acc)
	}
	slices.Sort(accs)
	for _, acc := range accs {
		ids := dups[acc]
		u.sink.Emit(ctx, events.DuplicateTerms{Ontology: r.src.OntologyID(), Accession: acc, TermIDs: ids})
		u.fail(ctx, r, errors.NewUpdateError(errors.KindDuplicatedTerm, acc,
			fmt.Sprintf("%d terms share the accession", len(ids))), acc, ids[0])
	}
	return nil
}

// CreateTerm imports one ontology term outside a full run, together with any
// ancestors that are not stored yet. An existing term is returned unchanged.
func (u *Updater) CreateTerm(ctx context.Context, ontologyID, accession string) (cv.TermID, error) {
	src, ok := u.sources.Get(ontologyID)
	if !ok {
		return 0, errors.WrapInvalid(fmt.Errorf("unknown ontology %q", ontologyID), "Updater", "CreateTerm",
			"resolve ontology")
	}
	r := u.newRun(src, make(map[string]bool))
	r.processed[accession] = true

	var id cv.TermID
	err := u.atomic(ctx, r, accession, func(ctx context.Context, tx store.Tx, st *unitState) error {
		stored, err := tx.TermsByIdentity(ctx, r.db.Name, accession)
		if err != nil {
			return err
		}
		if len(stored) > 0 {
			id = stored[0].ID
			return nil
		}
		snap, err := src.TermForAccession(ctx, accession)
		if err != nil {
			return sourceError(err, accession)
		}
		if snap == nil {
			return errors.NewUpdateError(errors.KindNonExistingTerm, accession,
				fmt.Sprintf("accession is absent from %s", ontologyID))
		}
		tu, err := u.createTerm(ctx, tx, src, r.db, snap, st)
		if err != nil {
			return err
		}
		id = tu.term.ID
		return nil
	})
	if err != nil {
		if !store.IsConnectivity(err) {
			u.fail(ctx, r, err, accession, 0)
		}
		return 0, err
	}
	if err := u.resolveMissing(ctx, r); err != nil {
		return id, err
	}
	return id, nil
}
