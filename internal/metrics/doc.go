// Package metrics defines Prometheus metrics for the photo archive.
//
// Metrics cover HTTP requests, database operations, maintenance runs
// (scan, preview, orphan cleanup, shot-at backfill, reindex), preview
// generation, and search query execution. A background Collector
// exports catalog counts and SQLite file sizes on an interval.
//
// Metrics are served on a separate port (METRICS_PORT) so the scrape
// endpoint never competes with API traffic.
package metrics
