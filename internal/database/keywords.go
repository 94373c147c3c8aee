package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"photo-archive/internal/logging"
)

// KeywordValue carries a keyword in both its normalized form (used for
// matching and de-duplication) and its display form.
type KeywordValue struct {
	Norm    string
	Display string
}

// SetFileMetadata persists extracted capture metadata for a file.
func (d *Database) SetFileMetadata(ctx context.Context, id string, width, height int, mime, title, description string, shotAt *time.Time) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_file_metadata", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	var shotAtUnix sql.NullInt64
	if shotAt != nil {
		shotAtUnix = sql.NullInt64{Int64: shotAt.Unix(), Valid: true}
	}

	// shot_at_checked_at is only stamped when a capture time was actually
	// found; files without one stay eligible for the backfill run.
	_, err = d.db.ExecContext(ctx, `
		UPDATE files
		SET width = ?, height = ?, orientation = ?,
			mime = CASE WHEN ? != '' THEN ? ELSE mime END,
			title = ?, description = ?, shot_at = ?,
			shot_at_checked_at = CASE WHEN ? IS NOT NULL
				THEN strftime('%s', 'now') ELSE shot_at_checked_at END,
			updated_at = strftime('%s', 'now')
		WHERE id = ?
	`,
		width, height, string(OrientationFor(width, height)),
		mime, mime,
		title, description, shotAtUnix, shotAtUnix,
		id,
	)
	return err
}

// SetFileKeywords replaces a file's keyword set, maintaining the keyword
// dictionary and usage counts, and refreshes the denormalized
// keywords_text column (which feeds the full-text index via triggers).
func (d *Database) SetFileKeywords(ctx context.Context, fileID string, keywords []KeywordValue) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_file_keywords", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin keyword transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				logging.Error("keyword rollback failed: %v", rbErr)
			}
		}
	}()

	// Decrement usage for keywords being detached
	_, err = tx.ExecContext(ctx, `
		UPDATE keywords
		SET usage_count = MAX(usage_count - 1, 0)
		WHERE id IN (SELECT keyword_id FROM file_keywords WHERE file_id = ?)
	`, fileID)
	if err != nil {
		return fmt.Errorf("decrement keyword usage: %w", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM file_keywords WHERE file_id = ?", fileID)
	if err != nil {
		return fmt.Errorf("detach keywords: %w", err)
	}

	keywordsText := ""
	for i, kw := range keywords {
		if kw.Norm == "" {
			continue
		}

		var keywordID int64
		err = tx.QueryRowContext(ctx,
			"SELECT id FROM keywords WHERE value_norm = ?", kw.Norm,
		).Scan(&keywordID)
		if err == sql.ErrNoRows {
			var result sql.Result
			result, err = tx.ExecContext(ctx,
				"INSERT INTO keywords (value_norm, value_display, usage_count) VALUES (?, ?, 0)",
				kw.Norm, kw.Display,
			)
			if err != nil {
				return fmt.Errorf("insert keyword %q: %w", kw.Norm, err)
			}
			keywordID, err = result.LastInsertId()
			if err != nil {
				return fmt.Errorf("keyword id for %q: %w", kw.Norm, err)
			}
		} else if err != nil {
			return fmt.Errorf("look up keyword %q: %w", kw.Norm, err)
		}

		_, err = tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO file_keywords (file_id, keyword_id) VALUES (?, ?)",
			fileID, keywordID,
		)
		if err != nil {
			return fmt.Errorf("attach keyword %q: %w", kw.Norm, err)
		}

		_, err = tx.ExecContext(ctx,
			"UPDATE keywords SET usage_count = usage_count + 1 WHERE id = ?",
			keywordID,
		)
		if err != nil {
			return fmt.Errorf("increment keyword usage: %w", err)
		}

		if i > 0 {
			keywordsText += " "
		}
		keywordsText += kw.Norm
	}

	// The files_au trigger propagates this into files_fts.
	_, err = tx.ExecContext(ctx,
		"UPDATE files SET keywords_text = ? WHERE id = ?",
		keywordsText, fileID,
	)
	if err != nil {
		return fmt.Errorf("update keywords_text: %w", err)
	}

	err = tx.Commit()
	return err
}

// NormKeywordsForFiles returns the normalized keyword set per file id.
// The search executor evaluates parsed queries against these sets.
func (d *Database) NormKeywordsForFiles(ctx context.Context, ids []string) (map[string][]string, error) {
	return d.keywordsForFiles(ctx, ids, "value_norm")
}

func (d *Database) displayKeywordsForFiles(ctx context.Context, ids []string) (map[string][]string, error) {
	// Caller holds d.mu already in FilesByIDs; this path must not re-lock.
	return d.keywordsForFilesLocked(ctx, ids, "value_display")
}

func (d *Database) keywordsForFiles(ctx context.Context, ids []string, column string) (map[string][]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.keywordsForFilesLocked(ctx, ids, column)
}

func (d *Database) keywordsForFilesLocked(ctx context.Context, ids []string, column string) (map[string][]string, error) {
	if len(ids) == 0 {
		return map[string][]string{}, nil
	}

	query := fmt.Sprintf(`
		SELECT fk.file_id, k.%s
		FROM file_keywords fk
		JOIN keywords k ON k.id = fk.keyword_id
		WHERE fk.file_id IN (%s)
		ORDER BY k.value_norm
	`, column, placeholders(len(ids)))

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string][]string)
	for rows.Next() {
		var fileID, value string
		if err := rows.Scan(&fileID, &value); err != nil {
			return nil, err
		}
		result[fileID] = append(result[fileID], value)
	}
	return result, rows.Err()
}

// SuggestKeywords returns ranked keyword completions for a normalized
// prefix. An empty prefix returns the most used keywords overall.
func (d *Database) SuggestKeywords(ctx context.Context, normPrefix string, limit int) ([]KeywordSuggestion, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("suggest_keywords", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	query := `
		SELECT value_display, usage_count
		FROM keywords
		WHERE usage_count > 0
	`
	args := []interface{}{}
	if normPrefix != "" {
		query += " AND value_norm LIKE ? ESCAPE '\\'"
		args = append(args, escapeLike(normPrefix)+"%")
	}
	query += " ORDER BY usage_count DESC, value_norm LIMIT ?"
	args = append(args, limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var suggestions []KeywordSuggestion
	for rows.Next() {
		var s KeywordSuggestion
		if err = rows.Scan(&s.Value, &s.Count); err != nil {
			return nil, err
		}
		suggestions = append(suggestions, s)
	}
	err = rows.Err()
	return suggestions, err
}

// escapeLike escapes LIKE wildcards in user input.
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
