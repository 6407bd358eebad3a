package ontology

import (
	"fmt"
	"slices"
	"sync"

	"github.com/c360/cvsync/errors"
)

// Registry holds the sources of one run by ontology id.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
}

// NewRegistry creates a registry holding the given sources.
func NewRegistry(sources ...Source) (*Registry, error) {
	r := &Registry{sources: make(map[string]Source)}
	for _, s := range sources {
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a source. Registering the same ontology id twice is an error.
func (r *Registry) Register(s Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := s.OntologyID()
	if _, exists := r.sources[id]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("ontology %s already registered", id),
			"Registry", "Register", "duplicate ontology source")
	}
	r.sources[id] = s
	return nil
}

// Get returns the source of an ontology.
func (r *Registry) Get(id string) (Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[id]
	return s, ok
}

// IDs returns the registered ontology ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sources))
	for id := range r.sources {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
