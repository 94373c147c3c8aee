package workers

import (
	"os"
	"runtime"
	"strconv"
)

// Ratios relative to GOMAXPROCS. Preview rendering decodes and
// re-encodes images between reading sources and writing artifacts, so
// it sits between CPU bound and I/O bound.
const (
	RatioCPU   = 1.0
	RatioIO    = 2.0
	RatioMixed = 1.5
)

// PoolSize computes a worker count as ratio * GOMAXPROCS, which tracks
// container CPU limits (Go 1.19+). A positive value in overrideEnv wins
// over the computed count. The limit caps the result; 0 means uncapped.
// Never returns less than 1.
func PoolSize(ratio float64, limit int, overrideEnv string) int {
	if overrideEnv != "" {
		if n, err := strconv.Atoi(os.Getenv(overrideEnv)); err == nil && n > 0 {
			return clamp(n, limit)
		}
	}

	n := int(float64(runtime.GOMAXPROCS(0)) * ratio)
	if n < 1 {
		n = 1
	}
	return clamp(n, limit)
}

func clamp(n, limit int) int {
	if limit > 0 && n > limit {
		return limit
	}
	return n
}

// ForPreviews sizes the preview rendering pool, overridable with the
// PREVIEW_WORKERS environment variable.
func ForPreviews(limit int) int {
	return PoolSize(RatioMixed, limit, "PREVIEW_WORKERS")
}
