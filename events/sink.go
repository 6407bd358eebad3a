package events

import (
	"context"
	"log/slog"
	"slices"
	"sync"
)

// Sink consumes events. Implementations must not block the run for long and
// report their own delivery failures.
type Sink interface {
	Emit(ctx context.Context, e Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, e Event)

// Emit implements Sink.
func (f SinkFunc) Emit(ctx context.Context, e Event) { f(ctx, e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(context.Context, Event) {})

// MultiSink fans an event out to several sinks in order.
type MultiSink []Sink

// Emit implements Sink.
func (m MultiSink) Emit(ctx context.Context, e Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, e)
		}
	}
}

// Recorder keeps every event in memory. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Emit implements Sink.
func (r *Recorder) Emit(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// Reset drops the recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Filter returns the events of concrete type E.
func Filter[E Event](in []Event) []E {
	var out []E
	for _, e := range in {
		if v, ok := e.(E); ok {
			out = append(out, v)
		}
	}
	return out
}

// Buffer holds the events of one transactional unit until it commits.
type Buffer struct {
	events []Event
}

// Emit implements Sink.
func (b *Buffer) Emit(_ context.Context, e Event) {
	b.events = append(b.events, e)
}

// Len returns the number of buffered events.
func (b *Buffer) Len() int {
	return len(b.events)
}

// Flush forwards the buffered events to sink and empties the buffer.
func (b *Buffer) Flush(ctx context.Context, sink Sink) {
	for _, e := range b.events {
		sink.Emit(ctx, e)
	}
	b.events = b.events[:0]
}

// Discard empties the buffer without delivering anything.
func (b *Buffer) Discard() {
	b.events = b.events[:0]
}

// LogSink writes events as structured log records.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink logging through logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Emit implements Sink.
func (s *LogSink) Emit(ctx context.Context, e Event) {
	switch ev := e.(type) {
	case RunStarted:
		s.logger.InfoContext(ctx, "Reconciliation started",
			"run_id", ev.RunID, "ontology", ev.Ontology)
	case RunFinished:
		s.logger.InfoContext(ctx, "Reconciliation finished",
			"run_id", ev.RunID, "ontology", ev.Ontology,
			"processed", ev.Processed, "duration", ev.Duration, "aborted", ev.Aborted)
	case TermUpdated:
		s.logger.DebugContext(ctx, "Term updated",
			"ontology", ev.Ontology, "accession", ev.Accession, "term_id", ev.TermID,
			"created", ev.Created, "changes", ev.ChangeCount())
	case UpdateError:
		s.logger.WarnContext(ctx, "Term update failed",
			"ontology", ev.Ontology, "accession", ev.Accession, "term_id", ev.TermID,
			"kind", string(ev.Kind), "error", ev.Message)
	case ObsoleteRemapped:
		// Merges are irreversible and always logged with their row counts.
		s.logger.InfoContext(ctx, "Obsolete term remapped",
			"ontology", ev.Ontology, "from", ev.FromAccession, "to", ev.ToAccession,
			"merged", ev.Merged, "deleted", ev.Deleted, "affected", ev.Affected)
	case ObsoleteImpossibleToRemap:
		s.logger.WarnContext(ctx, "Obsolete term cannot be remapped",
			"ontology", ev.Ontology, "accession", ev.Accession, "term_id", ev.TermID,
			"candidates", ev.Candidates, "reason", ev.Reason)
	case DuplicateTerms:
		s.logger.WarnContext(ctx, "Duplicate terms detected",
			"ontology", ev.Ontology, "accession", ev.Accession, "term_ids", ev.TermIDs)
	default:
		s.logger.DebugContext(ctx, "Event", "type", string(e.EventType()))
	}
}
