// Package report turns the event stream of a reconciliation into a summary:
// terms created and updated, attribute rows written per kind, remaps and
// merges, obsolete terms left for curators, duplicates and per-term errors.
//
// A Builder is an events.Sink, so it can be attached next to the other sinks
// of an Updater; Build does the same over recorded events. Reports render as
// JSON (the archived form) or YAML.
package report
