package search

import (
	"context"
	"fmt"

	"photo-archive/internal/database"
	"photo-archive/internal/logging"
	"photo-archive/internal/runs"
)

// Reindexer rebuilds the full-text index from the catalog: the
// denormalized keyword text is re-derived for every live file and the
// index contents are rebuilt from the refreshed rows.
type Reindexer struct {
	db *database.Database
}

// NewReindexer returns a reindex worker.
func NewReindexer(db *database.Database) *Reindexer {
	return &Reindexer{db: db}
}

// Run is the worker body for a reindex run.
func (x *Reindexer) Run(t *runs.Tracker) error {
	ctx := context.Background()

	refreshed, err := x.db.RefreshKeywordsText(ctx)
	if err != nil {
		return fmt.Errorf("refresh keyword text: %w", err)
	}
	t.Update(func(r *runs.Run) { r.Reindex.Count = refreshed })

	if t.Cancelled() {
		return runs.ErrCancelled
	}

	if err := x.db.RebuildFTS(ctx); err != nil {
		return fmt.Errorf("rebuild full-text index: %w", err)
	}

	logging.Info("Reindex complete: %d files refreshed", refreshed)
	return nil
}
