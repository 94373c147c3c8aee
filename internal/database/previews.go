package database

import (
	"context"
	"database/sql"
	"time"
)

// FilesMissingPreviews returns live files that have no preview row.
// The preview generator processes this list once per round.
func (d *Database) FilesMissingPreviews(ctx context.Context) ([]FileRef, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("files_missing_previews", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.QueryContext(ctx, `
		SELECT f.id, f.path
		FROM files f
		LEFT JOIN previews p ON p.file_id = f.id
		WHERE f.deleted_at IS NULL AND p.file_id IS NULL
		ORDER BY f.path
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []FileRef
	for rows.Next() {
		var ref FileRef
		if err = rows.Scan(&ref.ID, &ref.Path); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	err = rows.Err()
	return refs, err
}

// CountPreviews returns the number of previews attached to live files.
func (d *Database) CountPreviews(ctx context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var count int
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM previews p
		JOIN files f ON f.id = p.file_id
		WHERE f.deleted_at IS NULL
	`).Scan(&count)
	return count, err
}

// UpsertPreview records the artifact keys for a generated preview pair.
func (d *Database) UpsertPreview(ctx context.Context, fileID, thumbKey, mediumKey string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("upsert_preview", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO previews (file_id, thumb_key, medium_key, updated_at)
		VALUES (?, ?, ?, strftime('%s', 'now'))
		ON CONFLICT(file_id) DO UPDATE SET
			thumb_key = excluded.thumb_key,
			medium_key = excluded.medium_key,
			updated_at = strftime('%s', 'now')
	`, fileID, thumbKey, mediumKey)
	return err
}

// GetPreview returns the preview row for a file, or sql.ErrNoRows.
func (d *Database) GetPreview(ctx context.Context, fileID string) (*Preview, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var p Preview
	var updatedAt int64
	err := d.db.QueryRowContext(ctx, `
		SELECT file_id, thumb_key, medium_key, updated_at
		FROM previews WHERE file_id = ?
	`, fileID).Scan(&p.FileID, &p.ThumbKey, &p.MediumKey, &updatedAt)
	if err != nil {
		return nil, err
	}
	p.UpdatedAt = time.Unix(updatedAt, 0)
	return &p, nil
}

// DeletePreview removes the preview row for a file.
func (d *Database) DeletePreview(ctx context.Context, fileID string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_preview", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	_, err = d.db.ExecContext(ctx, "DELETE FROM previews WHERE file_id = ?", fileID)
	return err
}

// ClearPreviews drops every preview row so a rebuild regenerates all
// artifacts from scratch. Returns the number of rows removed.
func (d *Database) ClearPreviews(ctx context.Context) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("clear_previews", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	var result sql.Result
	result, err = d.db.ExecContext(ctx, "DELETE FROM previews")
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// PreviewsForDeletedFiles returns preview rows whose catalog entry is
// tombstoned. The orphan detector removes these artifacts and rows.
func (d *Database) PreviewsForDeletedFiles(ctx context.Context) ([]Preview, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("previews_for_deleted", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.QueryContext(ctx, `
		SELECT p.file_id, p.thumb_key, p.medium_key, p.updated_at
		FROM previews p
		JOIN files f ON f.id = p.file_id
		WHERE f.deleted_at IS NOT NULL
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var previews []Preview
	for rows.Next() {
		var p Preview
		var updatedAt int64
		if err = rows.Scan(&p.FileID, &p.ThumbKey, &p.MediumKey, &updatedAt); err != nil {
			return nil, err
		}
		p.UpdatedAt = time.Unix(updatedAt, 0)
		previews = append(previews, p)
	}
	err = rows.Err()
	return previews, err
}

// FilesMissingShotAt returns live files with no capture time and no
// recorded extraction attempt. This is the backfill work list; a file
// that fails extraction gets shot_at_checked_at set and drops out of the
// list until the next reset.
func (d *Database) FilesMissingShotAt(ctx context.Context) ([]FileRef, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("files_missing_shot_at", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, path
		FROM files
		WHERE deleted_at IS NULL AND shot_at IS NULL AND shot_at_checked_at IS NULL
		ORDER BY path
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []FileRef
	for rows.Next() {
		var ref FileRef
		if err = rows.Scan(&ref.ID, &ref.Path); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	err = rows.Err()
	return refs, err
}

// SetShotAt records an extracted capture time.
func (d *Database) SetShotAt(ctx context.Context, id string, shotAt time.Time) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_shot_at", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	_, err = d.db.ExecContext(ctx, `
		UPDATE files
		SET shot_at = ?, shot_at_checked_at = strftime('%s', 'now'),
			updated_at = strftime('%s', 'now')
		WHERE id = ?
	`, shotAt.Unix(), id)
	return err
}

// MarkShotAtChecked records a failed extraction attempt so the file is
// not retried until progress is reset.
func (d *Database) MarkShotAtChecked(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.db.ExecContext(ctx,
		"UPDATE files SET shot_at_checked_at = strftime('%s', 'now') WHERE id = ?",
		id,
	)
	return err
}

// ResetShotAtChecks clears recorded backfill progress so the next run
// reprocesses every file still missing a capture time.
func (d *Database) ResetShotAtChecks(ctx context.Context) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("reset_shot_at_checks", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	var result sql.Result
	result, err = d.db.ExecContext(ctx, `
		UPDATE files
		SET shot_at_checked_at = NULL
		WHERE shot_at IS NULL AND shot_at_checked_at IS NOT NULL
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
