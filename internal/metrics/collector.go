package metrics

import (
	"os"
	"time"

	"photo-archive/internal/logging"
)

// StatsProvider supplies catalog counts for periodic collection.
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the catalog statistics exported as gauges.
type Stats struct {
	LiveFiles       int
	DeletedFiles    int
	Keywords        int
	MissingPreviews int
}

// Collector periodically collects and updates catalog and storage metrics.
type Collector struct {
	statsProvider StatsProvider
	dbPath        string
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector.
func NewCollector(provider StatsProvider, dbPath string, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		dbPath:        dbPath,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop.
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection.
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider != nil {
		stats := c.statsProvider.GetStats()
		CatalogFilesTotal.WithLabelValues("live").Set(float64(stats.LiveFiles))
		CatalogFilesTotal.WithLabelValues("deleted").Set(float64(stats.DeletedFiles))
		CatalogKeywordsTotal.Set(float64(stats.Keywords))
		PreviewsMissing.Set(float64(stats.MissingPreviews))
	}

	c.collectDBSizes()
}

func (c *Collector) collectDBSizes() {
	if c.dbPath == "" {
		return
	}

	files := map[string]string{
		"main": c.dbPath,
		"wal":  c.dbPath + "-wal",
		"shm":  c.dbPath + "-shm",
	}

	for label, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			if !os.IsNotExist(err) {
				logging.Debug("metrics: stat %s failed: %v", path, err)
			}
			DBSizeBytes.WithLabelValues(label).Set(0)
			continue
		}
		DBSizeBytes.WithLabelValues(label).Set(float64(info.Size()))
	}
}
