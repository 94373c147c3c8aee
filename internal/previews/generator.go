package previews

import (
	"context"
	"fmt"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"photo-archive/internal/database"
	"photo-archive/internal/logging"
	"photo-archive/internal/metrics"
	"photo-archive/internal/runs"
)

// Generator renders missing preview artifacts in rounds. A round lists
// every live file without a preview and attempts each one on a bounded
// worker pool; files that fail (corrupt image, transient IO) stay
// missing and get another chance in the next round, up to maxRounds.
type Generator struct {
	db        *database.Database
	store     *Store
	photosDir string
	maxRounds int
	workers   int
}

// NewGenerator returns a preview generation worker.
func NewGenerator(db *database.Database, store *Store, photosDir string, maxRounds, workerCount int) *Generator {
	if maxRounds < 1 {
		maxRounds = 1
	}
	if workerCount < 1 {
		workerCount = 1
	}
	return &Generator{
		db:        db,
		store:     store,
		photosDir: photosDir,
		maxRounds: maxRounds,
		workers:   workerCount,
	}
}

// Run is the worker body for a preview generation run.
func (g *Generator) Run(t *runs.Tracker) error {
	ctx := context.Background()

	totalFiles, err := g.db.CountLiveFiles(ctx)
	if err != nil {
		return fmt.Errorf("count live files: %w", err)
	}
	generated, err := g.db.CountPreviews(ctx)
	if err != nil {
		return fmt.Errorf("count previews: %w", err)
	}

	// All counter writes go through the tracker so pollers never see
	// missing_previews rise or total_previews fall mid-run.
	publish := func(round, totalPreviews, missing int64) {
		t.Update(func(r *runs.Run) {
			r.Preview.Round = round
			r.Preview.MaxRounds = int64(g.maxRounds)
			r.Preview.TotalFiles = int64(totalFiles)
			r.Preview.TotalPreviews = totalPreviews
			r.Preview.MissingPreviews = missing
			if totalFiles > 0 {
				r.Preview.Progress = float64(totalPreviews) / float64(totalFiles)
			} else {
				r.Preview.Progress = 1
			}
		})
		metrics.PreviewsMissing.Set(float64(missing))
	}

	t.Update(func(r *runs.Run) {
		r.Preview.MaxRounds = int64(g.maxRounds)
		r.Preview.TotalFiles = int64(totalFiles)
		r.Preview.TotalPreviews = int64(generated)
	})

	round := int64(0)
	for attempt := 1; attempt <= g.maxRounds; attempt++ {
		if t.Cancelled() {
			return runs.ErrCancelled
		}

		missing, err := g.db.FilesMissingPreviews(ctx)
		if err != nil {
			return fmt.Errorf("list missing previews: %w", err)
		}
		if len(missing) == 0 {
			break
		}
		round = int64(attempt)
		publish(round, t.Snapshot().Preview.TotalPreviews, int64(len(missing)))
		logging.Info("Preview round %d/%d: %d files missing previews (%d workers)",
			attempt, g.maxRounds, len(missing), g.workers)

		var eg errgroup.Group
		eg.SetLimit(g.workers)
		for _, ref := range missing {
			if t.Cancelled() {
				break
			}
			ref := ref
			eg.Go(func() error {
				if t.Cancelled() {
					return nil
				}
				src := filepath.Join(g.photosDir, ref.Path)
				if err := g.store.Generate(src, ref.ID); err != nil {
					logging.Debug("Preview generation failed for %s: %v", ref.Path, err)
					return nil
				}
				err := g.db.UpsertPreview(ctx, ref.ID,
					g.store.ThumbKey(ref.ID), g.store.MediumKey(ref.ID))
				if err != nil {
					logging.Warn("Preview record failed for %s: %v", ref.ID, err)
					return nil
				}
				t.Update(func(r *runs.Run) {
					r.Preview.TotalPreviews++
					r.Preview.MissingPreviews--
					if totalFiles > 0 {
						r.Preview.Progress = float64(r.Preview.TotalPreviews) / float64(totalFiles)
					}
					metrics.PreviewsMissing.Set(float64(r.Preview.MissingPreviews))
				})
				return nil
			})
		}
		eg.Wait()

		if t.Cancelled() {
			return runs.ErrCancelled
		}
	}

	missing, err := g.db.FilesMissingPreviews(ctx)
	if err != nil {
		return fmt.Errorf("final missing preview count: %w", err)
	}
	total := t.Snapshot().Preview.TotalPreviews
	publish(round, total, int64(len(missing)))
	logging.Info("Preview generation complete: %d/%d previews present, %d still missing after %d round(s)",
		total, totalFiles, len(missing), round)
	return nil
}
