package reconcile

import (
	"context"
	"slices"
	"sync"

	"github.com/c360/cvsync/cv"
	"github.com/c360/cvsync/store"
)

// RepointFunc moves every reference of one kind from a duplicate term to its
// survivor and returns the number of rows changed.
type RepointFunc func(ctx context.Context, tx store.Tx, from, to cv.TermID) (int64, error)

// RepointRegistry maps reference kinds to their repoint rule. A merge is only
// possible when every kind referencing the duplicate has a rule.
type RepointRegistry struct {
	mu    sync.RWMutex
	rules map[cv.RefKind]RepointFunc
}

// NewRepointRegistry creates an empty registry.
func NewRepointRegistry() *RepointRegistry {
	return &RepointRegistry{rules: make(map[cv.RefKind]RepointFunc)}
}

// DefaultRepointRegistry registers a column repoint for every known kind.
func DefaultRepointRegistry() *RepointRegistry {
	r := NewRepointRegistry()
	for _, kind := range cv.KnownRefKinds {
		r.Register(kind, ColumnRepoint(kind))
	}
	return r
}

// ColumnRepoint is the rule for kinds stored as a plain foreign key column.
func ColumnRepoint(kind cv.RefKind) RepointFunc {
	return func(ctx context.Context, tx store.Tx, from, to cv.TermID) (int64, error) {
		return tx.RepointReferences(ctx, kind, from, to)
	}
}

// Register sets or replaces the rule of a kind.
func (r *RepointRegistry) Register(kind cv.RefKind, fn RepointFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[kind] = fn
}

// Lookup returns the rule of a kind.
func (r *RepointRegistry) Lookup(kind cv.RefKind) (RepointFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.rules[kind]
	return fn, ok
}

// Kinds returns the registered kinds, sorted.
func (r *RepointRegistry) Kinds() []cv.RefKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]cv.RefKind, 0, len(r.rules))
	for k := range r.rules {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Unsupported returns the kinds without a rule, preserving input order.
func (r *RepointRegistry) Unsupported(kinds []cv.RefKind) []cv.RefKind {
	var out []cv.RefKind
	for _, k := range kinds {
		if _, ok := r.Lookup(k); !ok {
			out = append(out, k)
		}
	}
	return out
}
