package metadata

import (
	"context"
	"fmt"
	"path/filepath"

	"photo-archive/internal/database"
	"photo-archive/internal/logging"
	"photo-archive/internal/runs"
)

// Backfill walks files with no capture time and no prior extraction
// attempt, and tries to derive one. Files where extraction fails or
// yields nothing are stamped as checked so repeated runs pick up where
// the last one left off instead of retrying the whole catalog.
type Backfill struct {
	db        *database.Database
	extractor Extractor
	photosDir string
}

// NewBackfill returns a capture-time backfill worker rooted at photosDir.
func NewBackfill(db *database.Database, extractor Extractor, photosDir string) *Backfill {
	return &Backfill{db: db, extractor: extractor, photosDir: photosDir}
}

// Run is the worker body for a shot-at backfill run.
func (b *Backfill) Run(t *runs.Tracker) error {
	ctx := context.Background()

	pending, err := b.db.FilesMissingShotAt(ctx)
	if err != nil {
		return fmt.Errorf("list files missing capture time: %w", err)
	}

	// Total is fixed at the start of the run so progress is meaningful
	// even while other writers touch the catalog.
	total := int64(len(pending))
	t.Update(func(r *runs.Run) {
		r.Backfill.Total = total
	})
	logging.Info("Shot-at backfill: %d files to examine", total)

	var scanned, updated int64
	for _, ref := range pending {
		if t.Cancelled() {
			return runs.ErrCancelled
		}

		info, err := b.extractor.Extract(ctx, filepath.Join(b.photosDir, ref.Path))
		switch {
		case err != nil:
			logging.Debug("Backfill extract failed for %s: %v", ref.Path, err)
			if err := b.db.MarkShotAtChecked(ctx, ref.ID); err != nil {
				logging.Warn("Backfill: mark checked %s: %v", ref.ID, err)
			}
		case info.ShotAt != nil:
			if err := b.db.SetShotAt(ctx, ref.ID, *info.ShotAt); err != nil {
				logging.Warn("Backfill: set capture time %s: %v", ref.ID, err)
			} else {
				updated++
			}
		default:
			if err := b.db.MarkShotAtChecked(ctx, ref.ID); err != nil {
				logging.Warn("Backfill: mark checked %s: %v", ref.ID, err)
			}
		}

		scanned++
		s, u := scanned, updated
		t.Update(func(r *runs.Run) {
			r.Backfill.Scanned = s
			r.Backfill.Updated = u
		})
	}

	logging.Info("Shot-at backfill complete: %d scanned, %d updated", scanned, updated)
	return nil
}
