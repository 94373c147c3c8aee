// Package database provides SQLite storage for the photo archive catalog.
//
// It handles storage and retrieval of:
//   - Catalog entries (one row per photo, soft-deleted via tombstones)
//   - Keywords and per-file keyword assignments with usage counts
//   - Preview artifact records (thumb + medium keys)
//   - The FTS5 keyword index consumed by the search executor
//
// The database uses WAL mode for concurrent read performance while a
// maintenance run writes, and includes automatic schema initialization
// with in-place migrations.
package database
