package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"photo-archive/internal/metrics"
)

// LoadCatalog returns every catalog row, including tombstones, keyed by
// path. The scanner diffs the walked file set against this map.
func (d *Database) LoadCatalog(ctx context.Context) (map[string]CatalogEntry, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("load_catalog", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, path, size, mod_time, deleted_at IS NOT NULL
		FROM files
	`)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	defer rows.Close()

	catalog := make(map[string]CatalogEntry)
	for rows.Next() {
		var (
			entry   CatalogEntry
			path    string
			modTime int64
		)
		if err = rows.Scan(&entry.ID, &path, &entry.Size, &modTime, &entry.Deleted); err != nil {
			return nil, fmt.Errorf("scan catalog row: %w", err)
		}
		entry.ModTime = time.Unix(modTime, 0)
		catalog[path] = entry
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("catalog rows: %w", err)
	}

	return catalog, nil
}

// InsertFile inserts a newly discovered file within a batch transaction.
func (d *Database) InsertFile(tx *sql.Tx, file *File, lastSeen time.Time) error {
	_, err := tx.ExecContext(context.Background(), `
		INSERT INTO files (id, path, filename, ext, mime, size, mod_time, orientation, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		file.ID,
		file.Path,
		file.Filename,
		file.Ext,
		file.Mime,
		file.Size,
		file.ModTime.Unix(),
		string(OrientationUnknown),
		lastSeen.UnixNano(),
	)
	return err
}

// TouchFile marks an unchanged file as seen by this scan pass.
func (d *Database) TouchFile(tx *sql.Tx, id string, lastSeen time.Time) error {
	_, err := tx.ExecContext(context.Background(),
		"UPDATE files SET last_seen = ? WHERE id = ?",
		lastSeen.UnixNano(), id,
	)
	return err
}

// UpdateFileStat records changed size/mtime for an existing file and
// clears shot_at_checked_at so the backfill revisits it.
func (d *Database) UpdateFileStat(tx *sql.Tx, id string, size int64, modTime, lastSeen time.Time) error {
	_, err := tx.ExecContext(context.Background(), `
		UPDATE files
		SET size = ?, mod_time = ?, updated_at = strftime('%s', 'now'),
			shot_at_checked_at = NULL, last_seen = ?
		WHERE id = ?
	`, size, modTime.Unix(), lastSeen.UnixNano(), id)
	return err
}

// RestoreFile clears the tombstone on a file that reappeared.
func (d *Database) RestoreFile(tx *sql.Tx, id string, size int64, modTime, lastSeen time.Time) error {
	_, err := tx.ExecContext(context.Background(), `
		UPDATE files
		SET deleted_at = NULL, size = ?, mod_time = ?,
			updated_at = strftime('%s', 'now'), last_seen = ?
		WHERE id = ?
	`, size, modTime.Unix(), lastSeen.UnixNano(), id)
	return err
}

// SoftDeleteUnseen tombstones live rows not seen by the pass that started
// at cutoff. Rows touched by the pass itself carry last_seen == cutoff and
// stay live. last_seen is kept at nanosecond resolution so back-to-back
// passes inside the same wall-clock second still tombstone correctly.
// Returns the number of rows tombstoned.
func (d *Database) SoftDeleteUnseen(tx *sql.Tx, cutoff time.Time) (int64, error) {
	result, err := tx.ExecContext(context.Background(), `
		UPDATE files
		SET deleted_at = strftime('%s', 'now')
		WHERE deleted_at IS NULL AND last_seen < ?
	`, cutoff.UnixNano())
	if err != nil {
		return 0, err
	}

	rowsAffected, err := result.RowsAffected()
	if err == nil && rowsAffected > 0 {
		recordRowsAffected("soft_delete_unseen", rowsAffected)
	}
	return rowsAffected, err
}

// PurgeTombstones hard-deletes rows tombstoned longer than retention ago.
// A zero retention keeps tombstones forever.
func (d *Database) PurgeTombstones(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}

	start := time.Now()
	var err error
	defer func() { recordQuery("purge_tombstones", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	cutoff := time.Now().Add(-retention).Unix()
	result, err := d.db.ExecContext(ctx,
		"DELETE FROM files WHERE deleted_at IS NOT NULL AND deleted_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CountLiveFiles returns the number of non-tombstoned catalog rows.
func (d *Database) CountLiveFiles(ctx context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var count int
	err := d.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM files WHERE deleted_at IS NULL",
	).Scan(&count)
	return count, err
}

// LiveFileIDs returns the id set of all live files. The orphan detector
// diffs preview artifacts on disk against this set.
func (d *Database) LiveFileIDs(ctx context.Context) (map[string]struct{}, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("live_file_ids", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.QueryContext(ctx,
		"SELECT id FROM files WHERE deleted_at IS NULL",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	err = rows.Err()
	return ids, err
}

// RecentFileIDs returns live file ids ordered by mtime descending, the
// browse order used when a search query is empty.
func (d *Database) RecentFileIDs(ctx context.Context, offset, limit int) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.QueryContext(ctx, `
		SELECT id FROM files
		WHERE deleted_at IS NULL
		ORDER BY mod_time DESC, id
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FilesByIDs hydrates full rows (with keywords) for the given ids,
// preserving the order of ids. Tombstoned files are omitted.
func (d *Database) FilesByIDs(ctx context.Context, ids []string) ([]File, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	start := time.Now()
	var err error
	defer func() { recordQuery("files_by_ids", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	query := fmt.Sprintf(`
		SELECT id, path, filename, ext, COALESCE(mime, ''), size, mod_time,
			COALESCE(width, 0), COALESCE(height, 0), orientation,
			shot_at, COALESCE(title, ''), COALESCE(description, ''),
			created_at, updated_at
		FROM files
		WHERE deleted_at IS NULL AND id IN (%s)
	`, placeholders(len(ids)))

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]File, len(ids))
	for rows.Next() {
		var f File
		var modTime, created, updated int64
		var shotAt sql.NullInt64
		if err = rows.Scan(
			&f.ID, &f.Path, &f.Filename, &f.Ext, &f.Mime, &f.Size, &modTime,
			&f.Width, &f.Height, &f.Orientation,
			&shotAt, &f.Title, &f.Description,
			&created, &updated,
		); err != nil {
			return nil, err
		}
		f.ModTime = time.Unix(modTime, 0)
		f.CreatedAt = time.Unix(created, 0)
		f.UpdatedAt = time.Unix(updated, 0)
		if shotAt.Valid {
			t := time.Unix(shotAt.Int64, 0)
			f.ShotAt = &t
		}
		byID[f.ID] = f
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	keywordsByFile, err := d.displayKeywordsForFiles(ctx, ids)
	if err != nil {
		return nil, err
	}

	files := make([]File, 0, len(ids))
	for _, id := range ids {
		f, ok := byID[id]
		if !ok {
			continue
		}
		f.Keywords = keywordsByFile[id]
		files = append(files, f)
	}
	return files, nil
}

// GetFileByID retrieves a single live file.
func (d *Database) GetFileByID(ctx context.Context, id string) (*File, error) {
	files, err := d.FilesByIDs(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, sql.ErrNoRows
	}
	return &files[0], nil
}

// GetStats computes catalog statistics for /api/stats and the metrics
// collector.
func (d *Database) GetStats() CatalogStats {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	d.mu.RLock()
	defer d.mu.RUnlock()

	var stats CatalogStats

	// Failures degrade to zero counts; stats are advisory.
	_ = d.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM files WHERE deleted_at IS NULL").Scan(&stats.LiveFiles)
	_ = d.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM files WHERE deleted_at IS NOT NULL").Scan(&stats.DeletedFiles)
	_ = d.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM keywords WHERE usage_count > 0").Scan(&stats.Keywords)
	_ = d.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM previews p JOIN files f ON f.id = p.file_id WHERE f.deleted_at IS NULL").Scan(&stats.Previews)
	_ = d.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM files f
		LEFT JOIN previews p ON p.file_id = f.id
		WHERE f.deleted_at IS NULL AND p.file_id IS NULL
	`).Scan(&stats.MissingPreviews)
	_ = d.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM files
		WHERE deleted_at IS NULL AND shot_at IS NULL AND shot_at_checked_at IS NULL
	`).Scan(&stats.MissingShotAt)

	return stats
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

func recordRowsAffected(operation string, rows int64) {
	if rows > 0 {
		metrics.DBRowsAffected.WithLabelValues(operation).Observe(float64(rows))
	}
}
