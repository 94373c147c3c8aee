package database

import (
	"context"
	"fmt"
	"time"
)

// QueryIndex runs a ranked full-text query against the keyword index and
// returns live file ids for the requested window plus the total match
// count. ftsQuery must already be in FTS5 MATCH syntax (the search
// package compiles parsed queries into it).
func (d *Database) QueryIndex(ctx context.Context, ftsQuery string, offset, limit int) ([]string, int, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("query_index", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	var total int
	err = d.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM files_fts
		JOIN files f ON f.rowid = files_fts.rowid
		WHERE files_fts MATCH ? AND f.deleted_at IS NULL
	`, ftsQuery).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("index count: %w", err)
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT f.id
		FROM files_fts
		JOIN files f ON f.rowid = files_fts.rowid
		WHERE files_fts MATCH ? AND f.deleted_at IS NULL
		ORDER BY rank, f.id
		LIMIT ? OFFSET ?
	`, ftsQuery, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("index query: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, 0, err
		}
		ids = append(ids, id)
	}
	err = rows.Err()
	if err != nil {
		return nil, 0, err
	}

	return ids, total, nil
}

// RefreshKeywordsText re-derives every file's denormalized keywords_text
// from the keyword join table. Used by the reindex run to repair drift
// before rebuilding the full-text index.
func (d *Database) RefreshKeywordsText(ctx context.Context) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("refresh_keywords_text", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	result, err := d.db.ExecContext(ctx, `
		UPDATE files
		SET keywords_text = COALESCE((
			SELECT group_concat(k.value_norm, ' ')
			FROM file_keywords fk
			JOIN keywords k ON k.id = fk.keyword_id
			WHERE fk.file_id = files.id
		), '')
		WHERE deleted_at IS NULL
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// RebuildFTS rebuilds the full-text index from the files table.
func (d *Database) RebuildFTS(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("rebuild_fts", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	rebuildCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err = d.db.ExecContext(rebuildCtx, "INSERT INTO files_fts(files_fts) VALUES('rebuild')")
	return err
}
