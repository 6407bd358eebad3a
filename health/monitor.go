package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/c360/cvsync/events"
)

// Monitor tracks the health of named components.
type Monitor struct {
	mu       sync.RWMutex
	statuses map[string]Status
}

// NewMonitor creates a new health monitor
func NewMonitor() *Monitor {
	return &Monitor{
		statuses: make(map[string]Status),
	}
}

// Update sets the status of a component. The component name always wins
// over status.Component.
func (m *Monitor) Update(name string, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status.Component = name
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}
	m.statuses[name] = status
}

// Get retrieves the health status of a component
func (m *Monitor) Get(name string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, exists := m.statuses[name]
	return status, exists
}

// Remove removes a component from monitoring
func (m *Monitor) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.statuses, name)
}

// AggregateHealth aggregates every component, sorted by name.
func (m *Monitor) AggregateHealth(systemName string) Status {
	m.mu.RLock()
	subStatuses := make([]Status, 0, len(m.statuses))
	for _, status := range m.statuses {
		subStatuses = append(subStatuses, status)
	}
	m.mu.RUnlock()

	sort.Slice(subStatuses, func(i, j int) bool {
		return subStatuses[i].Component < subStatuses[j].Component
	})
	return Aggregate(systemName, subStatuses)
}

// RunTracker is an events.Sink recording the outcome of the last run of each
// ontology as the component "ontology/<id>". An aborted run is unhealthy and
// a run with per-term errors is degraded.
type RunTracker struct {
	monitor *Monitor

	mu     sync.Mutex
	errors map[string]int
}

// NewRunTracker creates a tracker reporting into m.
func NewRunTracker(m *Monitor) *RunTracker {
	return &RunTracker{monitor: m, errors: make(map[string]int)}
}

// Emit implements events.Sink.
func (r *RunTracker) Emit(_ context.Context, e events.Event) {
	switch ev := e.(type) {
	case events.RunStarted:
		r.mu.Lock()
		r.errors[ev.Ontology] = 0
		r.mu.Unlock()
	case events.UpdateError:
		r.mu.Lock()
		r.errors[ev.Ontology]++
		r.mu.Unlock()
	case events.RunFinished:
		r.mu.Lock()
		errCount := r.errors[ev.Ontology]
		r.mu.Unlock()

		var status Status
		switch {
		case ev.Aborted:
			status = NewUnhealthy("", "run aborted")
		case errCount > 0:
			status = NewDegraded("", fmt.Sprintf("%d terms failed", errCount))
		default:
			status = NewHealthy("", "run completed")
		}
		r.monitor.Update("ontology/"+ev.Ontology, status.WithMetrics(&Metrics{
			Duration:     ev.Duration,
			Processed:    ev.Processed,
			ErrorCount:   errCount,
			LastActivity: ev.At,
		}))
	}
}
