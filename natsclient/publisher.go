package natsclient

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/cvsync/events"
)

// DefaultSubjectPrefix is the subject root reconciliation events are published under.
const DefaultSubjectPrefix = "cv.events"

// Publisher sends raw messages. *Client implements it.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
	PublishToStream(ctx context.Context, subject string, data []byte) error
}

// EventPublisher is an events.Sink publishing every event as a JSON envelope
// on <prefix>.<event type>.
//
// Publishing is best effort: a failed publish is logged and counted, never
// surfaced to the reconciliation run.
type EventPublisher struct {
	pub     Publisher
	prefix  string
	durable bool
	logger  *slog.Logger

	published atomic.Int64
	failures  atomic.Int64
}

// NewEventPublisher creates a publisher. durable selects JetStream publishing
// (acknowledged) over core NATS.
func NewEventPublisher(pub Publisher, prefix string, durable bool, logger *slog.Logger) *EventPublisher {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EventPublisher{
		pub:     pub,
		prefix:  prefix,
		durable: durable,
		logger:  logger.With("component", "event-publisher"),
	}
}

// Subject returns the subject an event type is published on.
func (p *EventPublisher) Subject(t events.Type) string {
	return p.prefix + "." + string(t)
}

// Emit implements events.Sink.
func (p *EventPublisher) Emit(ctx context.Context, e events.Event) {
	data, err := events.Encode(e)
	if err != nil {
		p.failures.Add(1)
		p.logger.Error("Encoding event", "type", string(e.EventType()), "error", err)
		return
	}

	subject := p.Subject(e.EventType())
	if p.durable {
		err = p.pub.PublishToStream(ctx, subject, data)
	} else {
		err = p.pub.Publish(ctx, subject, data)
	}
	if err != nil {
		p.failures.Add(1)
		p.logger.Warn("Publishing event", "subject", subject, "error", err)
		return
	}
	p.published.Add(1)
}

// Published returns the number of events delivered.
func (p *EventPublisher) Published() int64 {
	return p.published.Load()
}

// Failures returns the number of events that could not be delivered.
func (p *EventPublisher) Failures() int64 {
	return p.failures.Load()
}

// EventStreamConfig describes the JetStream stream capturing every subject
// under prefix.
func EventStreamConfig(name, prefix string, maxAge time.Duration) jetstream.StreamConfig {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return jetstream.StreamConfig{
		Name:        name,
		Description: "cvsync reconciliation events",
		Subjects:    []string{prefix + ".>"},
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      maxAge,
	}
}
