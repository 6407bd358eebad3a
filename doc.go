// Package cvsync keeps a stored controlled vocabulary in step with the
// ontologies it is derived from.
//
// A controlled vocabulary (CV) is a DAG of terms, each identified by an
// accession from one ontology namespace (PSI-MI, PSI-MOD, GO, ...). The
// reconciliation engine walks an ontology snapshot and, for every term,
// brings the stored copy in line: labels, cross-references, aliases,
// annotations and parent edges. Obsolete terms are remapped onto their
// replacements, merging duplicate records and repointing every reference
// held by other entities, or left for curators when no remap is possible.
//
// # Layout
//
//   - cv, cv/diff: term model and the sorted merge-join used by every sync
//   - vocabulary: namespace, protected qualifier and topic registries
//   - ontology: ontology sources and YAML snapshot files
//   - store, store/memstore, store/gormstore: the term store contract and
//     its in-memory and relational implementations
//   - reconcile: the per-attribute syncs, the obsolete remapper and the
//     Updater orchestrating a run
//   - events, report: run events, sinks and the run report
//   - natsclient, storage/objectstore: event publishing and report
//     archiving on NATS JetStream
//   - metric, health: Prometheus metrics and the health endpoint
//   - config, cmd/cvupdate: configuration and the command line tool
//
// # Running
//
//	cvupdate --config configs/cvsync.json --report-format yaml
//
// Each term is reconciled in its own transactional unit. A failing term is
// reported and skipped; only loss of the store connection aborts a run.
package cvsync
