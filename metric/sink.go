package metric

import (
	"context"

	"github.com/c360/cvsync/events"
)

// Sink updates the reconciliation metrics from the event stream.
type Sink struct {
	metrics *Metrics
}

// NewSink creates an events.Sink recording into the registry's core metrics.
func NewSink(registry *MetricsRegistry) *Sink {
	return &Sink{metrics: registry.CoreMetrics()}
}

// Emit implements events.Sink.
func (s *Sink) Emit(_ context.Context, e events.Event) {
	m := s.metrics
	switch ev := e.(type) {
	case events.TermUpdated:
		outcome := "updated"
		if ev.Created {
			outcome = "created"
		}
		m.RecordTerm(ev.Ontology, outcome)
		m.RecordChanges(ev.Ontology, "xref", "create", len(ev.CreatedXrefs))
		m.RecordChanges(ev.Ontology, "xref", "update", len(ev.UpdatedXrefs))
		m.RecordChanges(ev.Ontology, "xref", "delete", len(ev.DeletedXrefs))
		m.RecordChanges(ev.Ontology, "alias", "create", len(ev.CreatedAliases))
		m.RecordChanges(ev.Ontology, "alias", "delete", len(ev.DeletedAliases))
		m.RecordChanges(ev.Ontology, "annotation", "create", len(ev.CreatedAnnotations))
		m.RecordChanges(ev.Ontology, "annotation", "update", len(ev.UpdatedAnnotations))
		m.RecordChanges(ev.Ontology, "annotation", "delete", len(ev.DeletedAnnotations))
		m.RecordChanges(ev.Ontology, "parent", "create", len(ev.CreatedParents))
		m.RecordChanges(ev.Ontology, "parent", "delete", len(ev.DeletedParents))
	case events.UpdateError:
		m.RecordTerm(ev.Ontology, "failed")
		m.RecordError(ev.Ontology, string(ev.Kind))
	case events.ObsoleteRemapped:
		resolution := "remapped"
		if ev.Merged {
			resolution = "merged"
		}
		m.RecordObsolete(ev.Ontology, resolution, ev.Affected)
	case events.ObsoleteImpossibleToRemap:
		m.RecordObsolete(ev.Ontology, "impossible", 0)
	case events.RunFinished:
		m.RecordRunDuration(ev.Ontology, ev.Duration)
		if !ev.Aborted {
			m.RecordRunSuccess(ev.At)
		}
	}
}
