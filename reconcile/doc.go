// Package reconcile brings a stored controlled vocabulary in line with its
// ontology sources.
//
// The Updater drives a run per ontology:
//
//  1. every stored term of the ontology is reconciled in its own
//     transactional unit (labels, xrefs, aliases, annotations, parents), and
//     obsolete terms are remapped, merged or flagged;
//  2. remaps into another ontology are retried with that ontology's source;
//  3. parents that were referenced but not stored are created and attached;
//  4. optionally, ontology terms without a stored counterpart are imported
//     from the roots down;
//  5. accessions bound to several stored terms are reported.
//
// A failing term never stops the run; it becomes an UpdateError event. Only
// a lost store connection aborts.
//
// Usage:
//
//	u, err := reconcile.NewUpdater(reconcile.Dependencies{
//	    Store:   st,
//	    Sources: sources,
//	    Sink:    sink,
//	    Logger:  logger,
//	}, reconcile.Options{ImportNewTerms: true})
//	if err != nil {
//	    return err
//	}
//	err = u.Run(ctx, "psi-mi", "psi-mod")
//
// The synchronizers (XrefSync, AliasSync, AnnotationSync, ParentSync) hold no
// per-term state. Their Diff and Plan methods are pure and can be used on
// their own.
package reconcile
