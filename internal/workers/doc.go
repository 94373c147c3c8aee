// Package workers calculates worker pool sizes for concurrent operations.
//
// Preview generation is a mixed CPU/I/O workload: decoding and resizing
// images is CPU-bound while reading originals and writing artifacts is
// I/O-bound. Pool sizes scale with GOMAXPROCS so container CPU limits
// are respected, and can be overridden with PREVIEW_WORKERS.
package workers
