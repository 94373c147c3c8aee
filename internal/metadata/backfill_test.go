package metadata

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"photo-archive/internal/database"
	"photo-archive/internal/runs"
)

func newTestDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func insertCatalogFile(t *testing.T, db *database.Database, id, path string) {
	t.Helper()
	tx, err := db.BeginBatch()
	if err != nil {
		t.Fatalf("begin batch: %v", err)
	}
	err = db.InsertFile(tx, &database.File{
		ID:       id,
		Path:     path,
		Filename: filepath.Base(path),
		Ext:      filepath.Ext(path),
		Size:     1,
		ModTime:  time.Now(),
	}, time.Now())
	if err := db.EndBatch(tx, err); err != nil {
		t.Fatalf("insert file %s: %v", id, err)
	}
}

func runBackfill(t *testing.T, b *Backfill) runs.Run {
	t.Helper()
	reg := runs.NewRegistry()
	if _, started := reg.Start(runs.KindShotAtBackfill, b.Run); !started {
		t.Fatal("backfill did not start")
	}
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if run, ok := reg.Status(runs.KindShotAtBackfill); ok && run.Terminal() {
			return run
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("backfill never finished")
	return runs.Run{}
}

func TestBackfillUpdatesAndStampsChecked(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	photos := t.TempDir()

	// One file with a derivable capture time, one without, one missing
	// from disk entirely.
	writePNG(t, filepath.Join(photos, "IMG_20210817_142301.png"), 4, 4)
	writePNG(t, filepath.Join(photos, "plain.png"), 4, 4)
	insertCatalogFile(t, db, "f-dated", "IMG_20210817_142301.png")
	insertCatalogFile(t, db, "f-plain", "plain.png")
	insertCatalogFile(t, db, "f-gone", "vanished.png")

	b := NewBackfill(db, NewFileExtractor(), photos)
	run := runBackfill(t, b)
	if run.Status != runs.StatusCompleted {
		t.Fatalf("run status = %s: %s", run.Status, run.Error)
	}
	if run.Backfill.Total != 3 || run.Backfill.Scanned != 3 {
		t.Errorf("counters = %+v", run.Backfill)
	}
	if run.Backfill.Updated != 1 {
		t.Errorf("updated = %d, want 1", run.Backfill.Updated)
	}

	file, err := db.GetFileByID(ctx, "f-dated")
	if err != nil {
		t.Fatalf("get file: %v", err)
	}
	want := time.Date(2021, time.August, 17, 14, 23, 1, 0, time.UTC)
	if file.ShotAt == nil || !file.ShotAt.Equal(want) {
		t.Errorf("capture time = %v, want %v", file.ShotAt, want)
	}

	// Every examined file is now stamped, so a second run has no work.
	pending, err := db.FilesMissingShotAt(ctx)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending after backfill = %v", pending)
	}

	run = runBackfill(t, b)
	if run.Status != runs.StatusCompleted || run.Backfill.Total != 0 {
		t.Errorf("second run = %+v", run.Backfill)
	}
}

func TestBackfillAfterReset(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	photos := t.TempDir()

	writePNG(t, filepath.Join(photos, "plain.png"), 4, 4)
	insertCatalogFile(t, db, "f-plain", "plain.png")

	b := NewBackfill(db, NewFileExtractor(), photos)
	if run := runBackfill(t, b); run.Status != runs.StatusCompleted {
		t.Fatalf("run status = %s: %s", run.Status, run.Error)
	}

	// Reset clears the checked stamps for files still lacking a capture
	// time, making them eligible again.
	cleared, err := db.ResetShotAtChecks(ctx)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if cleared != 1 {
		t.Errorf("cleared = %d, want 1", cleared)
	}

	run := runBackfill(t, b)
	if run.Backfill.Total != 1 || run.Backfill.Updated != 0 {
		t.Errorf("counters after reset = %+v", run.Backfill)
	}
}
