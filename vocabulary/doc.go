// Package vocabulary provides the static lookup tables consulted while
// reconciling controlled vocabulary terms.
//
// # Registry
//
// A Registry bundles four tables:
//
//   - namespace → ontology database (short label, database accession, pattern,
//     ontology source id), used to repoint identity xrefs of obsolete terms
//     whose remap target lives in another ontology
//   - protected xref qualifiers ("identity", "secondary-ac"), never deleted by sync
//   - managed annotation topics, the topics whose values the ontology owns
//   - root accession → entity kinds, the used-in-class table
//
// Registrations use functional options, the same way domain vocabularies
// register predicates:
//
//	r := vocabulary.NewRegistry()
//	r.RegisterNamespace("MI",
//	    vocabulary.WithDatabase("psi-mi", "MI:0488"),
//	    vocabulary.WithOntology("psi-mi"),
//	    vocabulary.WithPattern(`^MI:[0-9]{4}$`))
//	r.RegisterUsage("MI:0190", vocabulary.UsageInteractionType)
//
// Default() returns the PSI-MI/PSI-MOD/GO/ECO registry used by cvupdate.
//
// # Thread Safety
//
// Registries are safe for concurrent use; registration normally happens once
// at start-up and lookups afterwards.
package vocabulary
