// Package metadata extracts capture metadata from photos: pixel
// dimensions from image headers, keywords and captions from optional
// sidecar files, and capture times from camera filename conventions.
// It also hosts the backfill worker that fills in missing capture
// times across the catalog.
package metadata
