package vocabulary

import (
	"fmt"
	"regexp"
	"slices"
	"sync"

	"github.com/c360/cvsync/cv"
)

// Database describes the ontology database that owns one accession namespace.
type Database struct {
	// Namespace is the accession prefix, e.g. "MI" for "MI:0001".
	Namespace string
	// Name is the short label of the database term, used as Xref.Database.
	Name string
	// Accession is the database term's own accession (e.g. "MI:0488" for psi-mi).
	Accession string
	// OntologyID is the id of the ontology source serving this namespace.
	OntologyID string
	// Pattern matches accessions of this namespace.
	Pattern *regexp.Regexp
}

// Option is a functional option for configuring a namespace registration.
type Option func(*Database)

// WithDatabase sets the database short label and its accession.
func WithDatabase(name, accession string) Option {
	return func(d *Database) {
		d.Name = name
		d.Accession = accession
	}
}

// WithOntology sets the ontology source id serving the namespace.
func WithOntology(id string) Option {
	return func(d *Database) {
		d.OntologyID = id
	}
}

// WithPattern sets the accession pattern. Panics on an invalid expression,
// registrations happen at start-up.
func WithPattern(expr string) Option {
	return func(d *Database) {
		d.Pattern = regexp.MustCompile(expr)
	}
}

// Registry holds the static lookup tables used during reconciliation. One
// instance is built per process and passed explicitly to the updater.
type Registry struct {
	mu          sync.RWMutex
	namespaces  map[string]Database
	protected   map[string]struct{}
	topics      map[string]struct{}
	usedInClass map[string][]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		namespaces:  make(map[string]Database),
		protected:   make(map[string]struct{}),
		topics:      make(map[string]struct{}),
		usedInClass: make(map[string][]string),
	}
}

// RegisterNamespace registers or overrides the database owning a namespace.
// Without WithPattern the namespace gets a "<NS>:<digits>" pattern.
//
// Example:
//
//	r.RegisterNamespace("MOD",
//	    WithDatabase("psi-mod", "MI:0897"),
//	    WithOntology("psi-mod"),
//	    WithPattern(`^MOD:[0-9]{5}$`))
func (r *Registry) RegisterNamespace(namespace string, opts ...Option) {
	db := Database{Namespace: namespace}
	for _, opt := range opts {
		opt(&db)
	}
	if db.Pattern == nil {
		db.Pattern = regexp.MustCompile(fmt.Sprintf(`^%s:[0-9]+$`, regexp.QuoteMeta(namespace)))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.namespaces[namespace] = db
}

// DatabaseForNamespace returns the database registered for a namespace.
func (r *Registry) DatabaseForNamespace(namespace string) (Database, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	db, ok := r.namespaces[namespace]
	return db, ok
}

// DatabaseForAccession resolves the database of an accession by its namespace.
func (r *Registry) DatabaseForAccession(accession string) (Database, bool) {
	return r.DatabaseForNamespace(cv.Namespace(accession))
}

// DatabaseByName returns the registration whose short label is name.
func (r *Registry) DatabaseByName(name string) (Database, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, db := range r.namespaces {
		if db.Name == name {
			return db, true
		}
	}
	return Database{}, false
}

// ProtectQualifiers marks xref qualifiers that ontology sync never deletes.
func (r *Registry) ProtectQualifiers(qualifiers ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, q := range qualifiers {
		r.protected[q] = struct{}{}
	}
}

// IsProtected reports whether an xref must survive a deletion decision.
func (r *Registry) IsProtected(x cv.Xref) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.protected[x.Qualifier]
	return ok
}

// ManageTopics marks annotation topics whose values are owned by the ontology.
// Local annotations with other topics are left to curators.
func (r *Registry) ManageTopics(topics ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range topics {
		r.topics[t] = struct{}{}
	}
}

// IsManagedTopic reports whether the ontology owns a topic.
func (r *Registry) IsManagedTopic(topic string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.topics[topic]
	return ok
}

// RegisterUsage records that terms under rootAccession are used by the given
// entity kinds. Repeated registrations accumulate.
func (r *Registry) RegisterUsage(rootAccession string, kinds ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	merged := append(r.usedInClass[rootAccession], kinds...)
	slices.Sort(merged)
	r.usedInClass[rootAccession] = slices.Compact(merged)
}

// UsagesFor returns the entity kinds registered for one accession.
func (r *Registry) UsagesFor(accession string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.usedInClass[accession])
}

// Namespaces returns the registered namespaces, sorted.
func (r *Registry) Namespaces() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.namespaces))
	for ns := range r.namespaces {
		out = append(out, ns)
	}
	slices.Sort(out)
	return out
}
