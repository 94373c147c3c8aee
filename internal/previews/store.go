package previews

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"photo-archive/internal/metrics"
)

const (
	thumbEdge  = 256
	mediumEdge = 1600
	// jpegQuality balances artifact size against visible banding.
	jpegQuality = 85
)

// Store maps file ids to preview artifacts on disk and renders them.
// Artifacts live under <root>/<id[0:2]>/<id>_<size>.jpg so no single
// directory grows unbounded.
type Store struct {
	root string
}

// NewStore returns a preview store rooted at root.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// Root returns the store's base directory.
func (s *Store) Root() string {
	return s.root
}

// ThumbKey returns the relative artifact key for a file's thumbnail.
func (s *Store) ThumbKey(fileID string) string {
	return s.key(fileID, "thumb")
}

// MediumKey returns the relative artifact key for a file's medium render.
func (s *Store) MediumKey(fileID string) string {
	return s.key(fileID, "medium")
}

func (s *Store) key(fileID, size string) string {
	return filepath.Join(shard(fileID), fileID+"_"+size+".jpg")
}

// ArtifactPath resolves a relative artifact key to an absolute path.
func (s *Store) ArtifactPath(key string) string {
	return filepath.Join(s.root, key)
}

func shard(fileID string) string {
	if len(fileID) < 2 {
		return "__"
	}
	return fileID[:2]
}

// FileIDFromArtifact recovers the file id from an artifact filename,
// or "" if the name does not look like a preview artifact.
func FileIDFromArtifact(name string) string {
	if !strings.HasSuffix(name, ".jpg") {
		return ""
	}
	base := strings.TrimSuffix(name, ".jpg")
	idx := strings.LastIndex(base, "_")
	if idx <= 0 {
		return ""
	}
	switch base[idx+1:] {
	case "thumb", "medium":
		return base[:idx]
	}
	return ""
}

// Generate renders both preview sizes for a source photo and writes
// them into the store. Either both artifacts land or an error returns.
func (s *Store) Generate(srcPath, fileID string) error {
	start := time.Now()

	src, err := imaging.Open(srcPath, imaging.AutoOrientation(true))
	if err != nil {
		metrics.PreviewGenerationsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("open source %s: %w", srcPath, err)
	}

	thumb := imaging.Fit(src, thumbEdge, thumbEdge, imaging.Lanczos)
	medium := imaging.Fit(src, mediumEdge, mediumEdge, imaging.Lanczos)

	if err := s.write(s.ThumbKey(fileID), thumb); err != nil {
		metrics.PreviewGenerationsTotal.WithLabelValues("error").Inc()
		return err
	}
	if err := s.write(s.MediumKey(fileID), medium); err != nil {
		metrics.PreviewGenerationsTotal.WithLabelValues("error").Inc()
		return err
	}

	metrics.PreviewGenerationsTotal.WithLabelValues("success").Inc()
	metrics.PreviewGenerationDuration.Observe(time.Since(start).Seconds())
	return nil
}

func (s *Store) write(key string, img *image.NRGBA) error {
	path := s.ArtifactPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create preview directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create artifact %s: %w", key, err)
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("encode artifact %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("close artifact %s: %w", key, err)
	}
	return nil
}
