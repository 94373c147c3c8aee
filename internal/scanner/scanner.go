package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"photo-archive/internal/database"
	"photo-archive/internal/logging"
	"photo-archive/internal/metadata"
	"photo-archive/internal/metrics"
	"photo-archive/internal/runs"
	"photo-archive/internal/search"
)

// batchSize bounds how many catalog mutations share one transaction.
const batchSize = 500

// supportedExts are the photo formats the archive indexes. Everything
// else on disk is ignored by the scan.
var supportedExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".tif":  true,
	".tiff": true,
}

// Supported reports whether a filename has an indexable photo extension.
func Supported(name string) bool {
	return supportedExts[strings.ToLower(filepath.Ext(name))]
}

// Scanner reconciles the on-disk photo tree with the catalog. A scan
// classifies each discovered file as created, updated, restored or
// unchanged, tombstones catalog rows whose file has disappeared, and
// re-extracts metadata for anything new or changed.
type Scanner struct {
	db                 *database.Database
	extractor          metadata.Extractor
	photosDir          string
	tombstoneRetention time.Duration
}

// New returns a scanner rooted at photosDir.
func New(db *database.Database, extractor metadata.Extractor, photosDir string, tombstoneRetention time.Duration) *Scanner {
	return &Scanner{
		db:                 db,
		extractor:          extractor,
		photosDir:          photosDir,
		tombstoneRetention: tombstoneRetention,
	}
}

// pendingChange is one catalog mutation waiting for its batch to commit.
type pendingChange struct {
	bucket  string // created, updated, restored, unchanged
	file    *database.File
	id      string
	size    int64
	modTime time.Time
}

// Run is the worker body for a catalog scan.
func (s *Scanner) Run(t *runs.Tracker) error {
	ctx := context.Background()

	if _, err := os.Stat(s.photosDir); err != nil {
		return fmt.Errorf("photos directory unavailable: %w", err)
	}

	catalog, err := s.db.LoadCatalog(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	logging.Info("Scan starting: %d files in catalog", len(catalog))

	scanStart := time.Now()
	var counters runs.ScanCounters
	var batch []pendingChange
	var extract []database.FileRef

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		tx, err := s.db.BeginBatch()
		if err != nil {
			return fmt.Errorf("begin scan batch: %w", err)
		}
		for _, ch := range batch {
			switch ch.bucket {
			case "created":
				err = s.db.InsertFile(tx, ch.file, scanStart)
			case "updated":
				err = s.db.UpdateFileStat(tx, ch.id, ch.size, ch.modTime, scanStart)
			case "restored":
				err = s.db.RestoreFile(tx, ch.id, ch.size, ch.modTime, scanStart)
			default:
				err = s.db.TouchFile(tx, ch.id, scanStart)
			}
			if err != nil {
				break
			}
		}
		if err = s.db.EndBatch(tx, err); err != nil {
			return fmt.Errorf("commit scan batch: %w", err)
		}
		batch = batch[:0]
		return nil
	}

	walkErr := filepath.WalkDir(s.photosDir, func(path string, d fs.DirEntry, err error) error {
		if t.Cancelled() {
			return runs.ErrCancelled
		}
		if err != nil {
			if path == s.photosDir {
				return err
			}
			// A single unreadable entry should not sink the run.
			logging.Warn("Scan: skipping %s: %v", path, err)
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if path != s.photosDir && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || !Supported(name) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			logging.Warn("Scan: stat %s: %v", path, err)
			return nil
		}
		rel, err := filepath.Rel(s.photosDir, path)
		if err != nil {
			logging.Warn("Scan: relativize %s: %v", path, err)
			return nil
		}
		rel = filepath.ToSlash(rel)

		counters.Scanned++
		metrics.ScannerFilesScanned.Inc()

		entry, known := catalog[rel]
		switch {
		case !known:
			counters.Created++
			metrics.ScannerFilesClassified.WithLabelValues("created").Inc()
			id := uuid.NewString()
			batch = append(batch, pendingChange{
				bucket: "created",
				file: &database.File{
					ID:       id,
					Path:     rel,
					Filename: name,
					Ext:      strings.ToLower(filepath.Ext(name)),
					Size:     info.Size(),
					ModTime:  info.ModTime(),
				},
			})
			extract = append(extract, database.FileRef{ID: id, Path: rel})
		case entry.Deleted:
			counters.Restored++
			metrics.ScannerFilesClassified.WithLabelValues("restored").Inc()
			batch = append(batch, pendingChange{
				bucket:  "restored",
				id:      entry.ID,
				size:    info.Size(),
				modTime: info.ModTime(),
			})
			extract = append(extract, database.FileRef{ID: entry.ID, Path: rel})
		case entry.Size != info.Size() || !entry.ModTime.Equal(info.ModTime().Truncate(time.Second)):
			counters.Updated++
			metrics.ScannerFilesClassified.WithLabelValues("updated").Inc()
			batch = append(batch, pendingChange{
				bucket:  "updated",
				id:      entry.ID,
				size:    info.Size(),
				modTime: info.ModTime(),
			})
			extract = append(extract, database.FileRef{ID: entry.ID, Path: rel})
		default:
			metrics.ScannerFilesClassified.WithLabelValues("unchanged").Inc()
			batch = append(batch, pendingChange{bucket: "unchanged", id: entry.ID})
		}

		c := counters
		t.Update(func(r *runs.Run) { *r.Scan = c })

		if len(batch) >= batchSize {
			return flush()
		}
		return nil
	})
	if walkErr != nil {
		return walkErr
	}
	if err := flush(); err != nil {
		return err
	}

	// Anything the walk did not touch this round has left the disk.
	tx, err := s.db.BeginBatch()
	if err != nil {
		return fmt.Errorf("begin tombstone batch: %w", err)
	}
	deleted, err := s.db.SoftDeleteUnseen(tx, scanStart)
	if err = s.db.EndBatch(tx, err); err != nil {
		return fmt.Errorf("tombstone unseen files: %w", err)
	}
	counters.Deleted = deleted
	c := counters
	t.Update(func(r *runs.Run) { *r.Scan = c })

	if purged, err := s.db.PurgeTombstones(ctx, s.tombstoneRetention); err != nil {
		logging.Warn("Scan: purge tombstones: %v", err)
	} else if purged > 0 {
		logging.Info("Scan: purged %d expired tombstones", purged)
	}

	s.extractBatch(ctx, t, extract)

	logging.Info("Scan complete: %d scanned, %d created, %d updated, %d restored, %d deleted",
		counters.Scanned, counters.Created, counters.Updated, counters.Restored, counters.Deleted)
	return nil
}

// extractBatch refreshes metadata and keywords for new or changed
// files. Extraction failures are per-file and never fail the run.
func (s *Scanner) extractBatch(ctx context.Context, t *runs.Tracker, refs []database.FileRef) {
	for _, ref := range refs {
		if t.Cancelled() {
			return
		}
		info, err := s.extractor.Extract(ctx, filepath.Join(s.photosDir, ref.Path))
		if err != nil {
			logging.Debug("Scan: extract %s: %v", ref.Path, err)
			continue
		}
		err = s.db.SetFileMetadata(ctx, ref.ID, info.Width, info.Height,
			info.Mime, info.Title, info.Description, info.ShotAt)
		if err != nil {
			logging.Warn("Scan: persist metadata %s: %v", ref.ID, err)
			continue
		}
		if err := s.db.SetFileKeywords(ctx, ref.ID, normalizeKeywords(info.Keywords)); err != nil {
			logging.Warn("Scan: persist keywords %s: %v", ref.ID, err)
		}
	}
}

func normalizeKeywords(raw []string) []database.KeywordValue {
	seen := make(map[string]bool, len(raw))
	out := make([]database.KeywordValue, 0, len(raw))
	for _, kw := range raw {
		norm := search.NormalizeKeyword(kw)
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, database.KeywordValue{Norm: norm, Display: strings.TrimSpace(kw)})
	}
	return out
}
