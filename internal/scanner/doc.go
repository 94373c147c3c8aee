// Package scanner keeps the catalog in sync with the photo tree on
// disk: each scan diffs discovered files against known catalog state,
// classifying them as created, updated, restored or unchanged, and
// soft-deletes entries whose file has disappeared.
package scanner
