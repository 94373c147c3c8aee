package database

import "time"

// Orientation classifies a photo by its aspect ratio.
type Orientation string

const (
	OrientationPortrait  Orientation = "portrait"
	OrientationLandscape Orientation = "landscape"
	OrientationSquare    Orientation = "square"
	OrientationUnknown   Orientation = "unknown"
)

// OrientationFor derives the orientation from pixel dimensions.
func OrientationFor(width, height int) Orientation {
	if width <= 0 || height <= 0 {
		return OrientationUnknown
	}
	switch {
	case width == height:
		return OrientationSquare
	case width > height:
		return OrientationLandscape
	default:
		return OrientationPortrait
	}
}

// File is one catalog entry. DeletedAt is a soft-delete tombstone: the
// source file vanished but the row is kept so a reappearing file is
// classified as restored rather than created.
type File struct {
	ID          string      `json:"id"`
	Path        string      `json:"path"`
	Filename    string      `json:"filename"`
	Ext         string      `json:"ext"`
	Mime        string      `json:"mime,omitempty"`
	Size        int64       `json:"size"`
	ModTime     time.Time   `json:"modTime"`
	Width       int         `json:"width,omitempty"`
	Height      int         `json:"height,omitempty"`
	Orientation Orientation `json:"orientation"`
	ShotAt      *time.Time  `json:"shotAt,omitempty"`
	Title       string      `json:"title,omitempty"`
	Description string      `json:"description,omitempty"`
	Keywords    []string    `json:"keywords,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
	DeletedAt   *time.Time  `json:"deletedAt,omitempty"`
}

// FileRef is a lightweight (id, path) pair used by maintenance runs that
// iterate large file sets without hydrating full rows.
type FileRef struct {
	ID   string
	Path string
}

// CatalogEntry is the per-file state the scanner diffs against.
type CatalogEntry struct {
	ID      string
	Size    int64
	ModTime time.Time
	Deleted bool
}

// Preview records the artifact keys for one file's previews.
type Preview struct {
	FileID    string    `json:"fileId"`
	ThumbKey  string    `json:"thumbKey"`
	MediumKey string    `json:"mediumKey"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// KeywordSuggestion is one ranked completion for the suggest endpoint.
type KeywordSuggestion struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// CatalogStats summarizes catalog state for /api/stats and metrics.
type CatalogStats struct {
	LiveFiles       int `json:"liveFiles"`
	DeletedFiles    int `json:"deletedFiles"`
	Keywords        int `json:"keywords"`
	Previews        int `json:"previews"`
	MissingPreviews int `json:"missingPreviews"`
	MissingShotAt   int `json:"missingShotAt"`
}
