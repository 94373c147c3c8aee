package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_archive_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_archive_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_archive_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_archive_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_archive_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_archive_db_transaction_duration_seconds",
			Help:    "Database transaction duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"outcome"},
	)

	DBRowsAffected = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_archive_db_rows_affected",
			Help:    "Number of rows affected by write operations",
			Buckets: []float64{1, 10, 100, 1000, 10000, 100000},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_archive_db_connections_open",
			Help: "Number of open database connections",
		},
	)

	DBSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "photo_archive_db_size_bytes",
			Help: "Size of SQLite database files in bytes",
		},
		[]string{"file"}, // "main", "wal", "shm"
	)
)

// Maintenance run metrics
var (
	RunsStartedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_archive_runs_started_total",
			Help: "Total number of maintenance runs started, by kind",
		},
		[]string{"kind"},
	)

	RunsFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_archive_runs_finished_total",
			Help: "Total number of maintenance runs finished, by kind and terminal status",
		},
		[]string{"kind", "status"},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_archive_run_duration_seconds",
			Help:    "Maintenance run duration in seconds",
			Buckets: []float64{0.1, 1, 5, 30, 60, 300, 900, 3600},
		},
		[]string{"kind"},
	)

	RunActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "photo_archive_run_active",
			Help: "Whether a maintenance run of the given kind is active (1 = active)",
		},
		[]string{"kind"},
	)
)

// Scanner metrics
var (
	ScannerFilesScanned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_archive_scanner_files_scanned_total",
			Help: "Total number of files discovered across scan runs",
		},
	)

	ScannerFilesClassified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_archive_scanner_files_classified_total",
			Help: "Scan classifications by bucket",
		},
		[]string{"bucket"}, // "created", "updated", "restored", "deleted", "skipped"
	)
)

// Preview metrics
var (
	PreviewGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_archive_preview_generations_total",
			Help: "Total number of preview generation attempts",
		},
		[]string{"status"}, // "success", "error"
	)

	PreviewGenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "photo_archive_preview_generation_duration_seconds",
			Help:    "Preview generation duration per file in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	PreviewsMissing = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_archive_previews_missing",
			Help: "Number of live catalog files currently lacking a preview",
		},
	)

	OrphanPreviewsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_archive_orphan_previews_deleted_total",
			Help: "Total number of orphaned preview artifacts deleted",
		},
	)
)

// Search metrics
var (
	SearchQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photo_archive_search_queries_total",
			Help: "Total number of search queries",
		},
		[]string{"mode"}, // "sync", "async"
	)

	SearchQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photo_archive_search_query_duration_seconds",
			Help:    "Search query duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"mode"},
	)

	SearchJobsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_archive_search_jobs_active",
			Help: "Number of asynchronous search jobs currently running",
		},
	)

	SearchJobsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photo_archive_search_jobs_evicted_total",
			Help: "Total number of search jobs evicted after their retention window",
		},
	)
)

// Catalog metrics
var (
	CatalogFilesTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "photo_archive_catalog_files_total",
			Help: "Total number of catalog files by state",
		},
		[]string{"state"}, // "live", "deleted"
	)

	CatalogKeywordsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photo_archive_catalog_keywords_total",
			Help: "Total number of distinct keywords",
		},
	)
)
