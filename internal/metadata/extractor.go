package metadata

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	// Register decoders for the formats the archive accepts.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Info holds everything an extractor could learn about a single photo.
// Zero-value fields simply mean the source carried no such data.
type Info struct {
	Width       int
	Height      int
	Mime        string
	Title       string
	Description string
	ShotAt      *time.Time
	Keywords    []string
}

// Extractor pulls capture metadata out of a photo on disk.
type Extractor interface {
	Extract(ctx context.Context, path string) (*Info, error)
}

// FileExtractor is the default extractor. It reads image dimensions from
// the file header, keywords and captions from an optional sidecar file,
// and derives the capture time from common camera filename patterns.
type FileExtractor struct{}

// NewFileExtractor returns the default on-disk extractor.
func NewFileExtractor() *FileExtractor {
	return &FileExtractor{}
}

// SidecarSuffix is appended to a photo's path to locate its sidecar.
// The sidecar format is line-oriented: "Title: ..." and
// "Description: ..." lines are captions, every other non-empty line is
// a keyword.
const SidecarSuffix = ".txt"

var shotAtPatterns = []struct {
	re     *regexp.Regexp
	layout string
}{
	// IMG_20210817_142301.jpg, PXL_20210817_142301123.jpg
	{regexp.MustCompile(`(20\d{6}_\d{6})`), "20060102_150405"},
	// 2021-08-17 14.23.01.jpg
	{regexp.MustCompile(`(20\d{2}-\d{2}-\d{2} \d{2}\.\d{2}\.\d{2})`), "2006-01-02 15.04.05"},
	// 2021-08-17_14-23-01.jpg
	{regexp.MustCompile(`(20\d{2}-\d{2}-\d{2}_\d{2}-\d{2}-\d{2})`), "2006-01-02_15-04-05"},
}

func (e *FileExtractor) Extract(ctx context.Context, path string) (*Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("decode header %s: %w", path, err)
	}

	info := &Info{
		Width:  cfg.Width,
		Height: cfg.Height,
		Mime:   mimeForFormat(format, path),
		ShotAt: ShotAtFromFilename(filepath.Base(path)),
	}

	if err := readSidecar(path, info); err != nil {
		// Sidecars are optional extras; a broken one should not sink
		// the whole file.
		return info, nil
	}
	return info, nil
}

// ShotAtFromFilename derives a capture time from camera-style filename
// patterns. Returns nil when no recognizable pattern is present.
func ShotAtFromFilename(name string) *time.Time {
	for _, p := range shotAtPatterns {
		m := p.re.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		t, err := time.ParseInLocation(p.layout, m[1], time.UTC)
		if err != nil {
			continue
		}
		return &t
	}
	return nil
}

func mimeForFormat(format, path string) string {
	switch format {
	case "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	case "tiff":
		return "image/tiff"
	}
	if m := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); m != "" {
		return m
	}
	return "application/octet-stream"
}

func readSidecar(photoPath string, info *Info) error {
	f, err := os.Open(photoPath + SidecarSuffix)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "" || strings.HasPrefix(line, "#"):
			continue
		case strings.HasPrefix(line, "Title:"):
			info.Title = strings.TrimSpace(strings.TrimPrefix(line, "Title:"))
		case strings.HasPrefix(line, "Description:"):
			info.Description = strings.TrimSpace(strings.TrimPrefix(line, "Description:"))
		default:
			info.Keywords = append(info.Keywords, line)
		}
	}
	return sc.Err()
}
