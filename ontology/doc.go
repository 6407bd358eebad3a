// Package ontology provides access to the authoritative term snapshots the
// local vocabulary is reconciled against.
//
// A Source serves one ontology. Sources are usually MemorySource values loaded
// from a snapshot file produced by the ontology parser:
//
//	src, err := ontology.LoadFile("testdata/psi-mi.yaml")
//	cached, err := ontology.NewCachedSource(src, 10000,
//	    cache.WithMetrics[*ontology.TermSnapshot](registry, "ontology_psi_mi"))
//
// A Registry groups the sources of one run so that terms remapped into another
// ontology can be resolved against that ontology's source.
package ontology
