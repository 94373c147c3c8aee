package previews

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"photo-archive/internal/database"
	"photo-archive/internal/logging"
	"photo-archive/internal/metrics"
	"photo-archive/internal/runs"
)

// OrphanCleaner removes preview artifacts whose owning file is no
// longer live in the catalog. The orphan set is a snapshot taken at the
// start of the run: artifacts for files created mid-run are never
// touched because the live-id set is read before the disk walk.
type OrphanCleaner struct {
	db    *database.Database
	store *Store
}

// NewOrphanCleaner returns an orphan cleanup worker for the store.
func NewOrphanCleaner(db *database.Database, store *Store) *OrphanCleaner {
	return &OrphanCleaner{db: db, store: store}
}

// Run is the worker body for an orphan cleanup run.
func (c *OrphanCleaner) Run(t *runs.Tracker) error {
	ctx := context.Background()

	live, err := c.db.LiveFileIDs(ctx)
	if err != nil {
		return fmt.Errorf("load live file ids: %w", err)
	}

	var orphans []string
	deadIDs := make(map[string]bool)
	walkErr := filepath.WalkDir(c.store.Root(), func(path string, d fs.DirEntry, err error) error {
		if t.Cancelled() {
			return runs.ErrCancelled
		}
		if err != nil {
			if path == c.store.Root() {
				if os.IsNotExist(err) {
					return filepath.SkipAll
				}
				return err
			}
			logging.Warn("Orphan cleanup: skipping %s: %v", path, err)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		id := FileIDFromArtifact(d.Name())
		if id == "" {
			// Not one of ours; leave strangers alone.
			return nil
		}
		if _, ok := live[id]; ok {
			return nil
		}
		orphans = append(orphans, path)
		deadIDs[id] = true
		return nil
	})
	if walkErr != nil {
		return walkErr
	}

	total := int64(len(orphans))
	t.Update(func(r *runs.Run) { r.Orphan.TotalOrphans = total })
	logging.Info("Orphan cleanup: %d orphaned artifacts found", total)

	var processed, deleted int64
	for _, path := range orphans {
		if t.Cancelled() {
			return runs.ErrCancelled
		}
		// An artifact that vanished between the walk and the remove is a
		// per-item failure; only removals we actually performed count.
		if err := os.Remove(path); err != nil {
			logging.Warn("Orphan cleanup: remove %s: %v", path, err)
		} else {
			deleted++
			metrics.OrphanPreviewsDeleted.Inc()
		}
		processed++
		p, del := processed, deleted
		t.Update(func(r *runs.Run) {
			r.Orphan.Processed = p
			r.Orphan.Deleted = del
		})
	}

	// Drop preview records for the files whose artifacts just went
	// away, plus any records left behind by tombstoned files whose
	// artifacts were already gone.
	stale, err := c.db.PreviewsForDeletedFiles(ctx)
	if err != nil {
		logging.Warn("Orphan cleanup: list stale preview records: %v", err)
	} else {
		for _, p := range stale {
			deadIDs[p.FileID] = true
		}
	}
	for id := range deadIDs {
		if err := c.db.DeletePreview(ctx, id); err != nil {
			logging.Warn("Orphan cleanup: delete preview record %s: %v", id, err)
		}
	}

	c.pruneEmptyShards()

	logging.Info("Orphan cleanup complete: %d/%d artifacts deleted", deleted, total)
	return nil
}

// pruneEmptyShards removes shard directories emptied by the cleanup.
func (c *OrphanCleaner) pruneEmptyShards() {
	entries, err := os.ReadDir(c.store.Root())
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		// Remove only succeeds on empty directories.
		_ = os.Remove(filepath.Join(c.store.Root(), e.Name()))
	}
}
