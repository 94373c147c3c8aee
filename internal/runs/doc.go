// Package runs tracks long-running maintenance jobs.
//
// A Registry holds the most recent Run per job kind (scan, preview,
// orphan_cleanup, shot_at_backfill, reindex) and guarantees at most one
// non-terminal run per kind: a second trigger returns the active run
// instead of starting a new one.
//
// Each run has a single writer (its worker goroutine) publishing
// copy-on-write snapshots through an atomic.Value, so any number of
// pollers read consistent counter sets without locking. Cancellation is
// cooperative: Cancel sets a flag the worker checks between items, so
// cancellation latency is bounded by one item or batch, never by the
// corpus size.
package runs
