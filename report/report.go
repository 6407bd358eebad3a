package report

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/c360/cvsync/cv"
	"github.com/c360/cvsync/errors"
	"github.com/c360/cvsync/events"
)

// Report summarises one reconciliation invocation over one or more ontologies.
type Report struct {
	ID         string      `json:"id" yaml:"id"`
	StartedAt  time.Time   `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time   `json:"finished_at" yaml:"finished_at"`
	Ontologies []*Ontology `json:"ontologies" yaml:"ontologies"`
}

// Ontology is the part of a report covering one ontology run.
type Ontology struct {
	Ontology  string `json:"ontology" yaml:"ontology"`
	RunID     string `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Processed int    `json:"processed" yaml:"processed"`
	Duration  string `json:"duration,omitempty" yaml:"duration,omitempty"`
	Aborted   bool   `json:"aborted,omitempty" yaml:"aborted,omitempty"`

	TermsCreated int                  `json:"terms_created" yaml:"terms_created"`
	TermsUpdated int                  `json:"terms_updated" yaml:"terms_updated"`
	Changes      map[string]*OpCounts `json:"changes,omitempty" yaml:"changes,omitempty"`

	Remaps     []Remap      `json:"remaps,omitempty" yaml:"remaps,omitempty"`
	Impossible []Impossible `json:"impossible_to_remap,omitempty" yaml:"impossible_to_remap,omitempty"`
	Duplicates []Duplicate  `json:"duplicates,omitempty" yaml:"duplicates,omitempty"`
	Errors     []Error      `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// OpCounts counts the rows of one attribute written by a run.
type OpCounts struct {
	Created int `json:"created,omitempty" yaml:"created,omitempty"`
	Updated int `json:"updated,omitempty" yaml:"updated,omitempty"`
	Deleted int `json:"deleted,omitempty" yaml:"deleted,omitempty"`
}

// Remap is an obsolete term moved onto its replacement.
type Remap struct {
	From       string    `json:"from" yaml:"from"`
	To         string    `json:"to" yaml:"to"`
	FromTermID cv.TermID `json:"from_term_id" yaml:"from_term_id"`
	ToTermID   cv.TermID `json:"to_term_id" yaml:"to_term_id"`
	Merged     bool      `json:"merged" yaml:"merged"`
	Deleted    bool      `json:"deleted,omitempty" yaml:"deleted,omitempty"`
	Affected   int64     `json:"affected,omitempty" yaml:"affected,omitempty"`
}

// Impossible is an obsolete term left for curators.
type Impossible struct {
	Accession  string    `json:"accession" yaml:"accession"`
	TermID     cv.TermID `json:"term_id" yaml:"term_id"`
	Candidates []string  `json:"candidates,omitempty" yaml:"candidates,omitempty"`
	Reason     string    `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Duplicate is an accession bound to several stored terms.
type Duplicate struct {
	Accession string      `json:"accession" yaml:"accession"`
	TermIDs   []cv.TermID `json:"term_ids" yaml:"term_ids"`
}

// Error is one per-term failure.
type Error struct {
	Kind      errors.UpdateErrorKind `json:"kind" yaml:"kind"`
	Accession string                 `json:"accession,omitempty" yaml:"accession,omitempty"`
	TermID    cv.TermID              `json:"term_id,omitempty" yaml:"term_id,omitempty"`
	Message   string                 `json:"message" yaml:"message"`
}

// ErrorCount returns the number of per-term failures over all ontologies.
func (r *Report) ErrorCount() int {
	n := 0
	for _, o := range r.Ontologies {
		n += len(o.Errors)
	}
	return n
}

// Aborted reports whether any ontology run stopped early.
func (r *Report) Aborted() bool {
	return slices.ContainsFunc(r.Ontologies, func(o *Ontology) bool { return o.Aborted })
}

// Ontology returns the section of one ontology, nil if absent.
func (r *Report) Ontology(id string) *Ontology {
	for _, o := range r.Ontologies {
		if o.Ontology == id {
			return o
		}
	}
	return nil
}

// ErrorsByKind counts failures per kind.
func (o *Ontology) ErrorsByKind() map[errors.UpdateErrorKind]int {
	out := make(map[errors.UpdateErrorKind]int)
	for _, e := range o.Errors {
		out[e.Kind]++
	}
	return out
}

// Merges returns the remaps that merged two stored terms.
func (o *Ontology) Merges() []Remap {
	var out []Remap
	for _, r := range o.Remaps {
		if r.Merged {
			out = append(out, r)
		}
	}
	return out
}

// Builder assembles a Report from the event stream. It is an events.Sink and
// is safe for concurrent use.
type Builder struct {
	mu     sync.Mutex
	report *Report
	now    func() time.Time
}

// NewBuilder starts a report with a fresh id.
func NewBuilder() *Builder {
	b := &Builder{now: time.Now}
	b.report = &Report{ID: uuid.NewString(), StartedAt: b.now().UTC()}
	return b
}

// Build aggregates recorded events into a report.
func Build(evs []events.Event) *Report {
	b := NewBuilder()
	for _, e := range evs {
		b.Emit(context.Background(), e)
	}
	return b.Report()
}

// Emit implements events.Sink.
func (b *Builder) Emit(_ context.Context, e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch ev := e.(type) {
	case events.RunStarted:
		o := b.section(ev.Ontology)
		o.RunID = ev.RunID
	case events.RunFinished:
		o := b.section(ev.Ontology)
		o.Processed += ev.Processed
		o.Duration = ev.Duration.Round(time.Millisecond).String()
		o.Aborted = o.Aborted || ev.Aborted
	case events.TermUpdated:
		o := b.section(ev.Ontology)
		if ev.Created {
			o.TermsCreated++
		} else if ev.HasChanges() {
			o.TermsUpdated++
		}
		o.count("xref", len(ev.CreatedXrefs), len(ev.UpdatedXrefs), len(ev.DeletedXrefs))
		o.count("alias", len(ev.CreatedAliases), 0, len(ev.DeletedAliases))
		o.count("annotation", len(ev.CreatedAnnotations), len(ev.UpdatedAnnotations), len(ev.DeletedAnnotations))
		o.count("parent", len(ev.CreatedParents), 0, len(ev.DeletedParents))
	case events.UpdateError:
		o := b.section(ev.Ontology)
		o.Errors = append(o.Errors, Error{Kind: ev.Kind, Accession: ev.Accession, TermID: ev.TermID, Message: ev.Message})
	case events.ObsoleteRemapped:
		o := b.section(ev.Ontology)
		o.Remaps = append(o.Remaps, Remap{
			From:       ev.FromAccession,
			To:         ev.ToAccession,
			FromTermID: ev.FromTermID,
			ToTermID:   ev.ToTermID,
			Merged:     ev.Merged,
			Deleted:    ev.Deleted,
			Affected:   ev.Affected,
		})
	case events.ObsoleteImpossibleToRemap:
		o := b.section(ev.Ontology)
		o.Impossible = append(o.Impossible, Impossible{
			Accession:  ev.Accession,
			TermID:     ev.TermID,
			Candidates: slices.Clone(ev.Candidates),
			Reason:     ev.Reason,
		})
	case events.DuplicateTerms:
		o := b.section(ev.Ontology)
		o.Duplicates = append(o.Duplicates, Duplicate{Accession: ev.Accession, TermIDs: slices.Clone(ev.TermIDs)})
	}
}

// Report closes the report and returns it. Later events are still added.
func (b *Builder) Report() *Report {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.FinishedAt = b.now().UTC()
	return b.report
}

func (b *Builder) section(id string) *Ontology {
	if o := b.report.Ontology(id); o != nil {
		return o
	}
	o := &Ontology{Ontology: id}
	b.report.Ontologies = append(b.report.Ontologies, o)
	return o
}

func (o *Ontology) count(attribute string, created, updated, deleted int) {
	if created == 0 && updated == 0 && deleted == 0 {
		return
	}
	if o.Changes == nil {
		o.Changes = make(map[string]*OpCounts)
	}
	c, ok := o.Changes[attribute]
	if !ok {
		c = &OpCounts{}
		o.Changes[attribute] = c
	}
	c.Created += created
	c.Updated += updated
	c.Deleted += deleted
}
