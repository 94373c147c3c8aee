package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"photo-archive/internal/database"
	"photo-archive/internal/handlers"
	"photo-archive/internal/logging"
	"photo-archive/internal/metadata"
	"photo-archive/internal/metrics"
	"photo-archive/internal/middleware"
	"photo-archive/internal/previews"
	"photo-archive/internal/runs"
	"photo-archive/internal/scanner"
	"photo-archive/internal/search"
	"photo-archive/internal/startup"
	"photo-archive/internal/workers"
)

func main() {
	startTime := time.Now()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	dbStart := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := database.New(ctx, config.DatabasePath)
	cancel()
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	registry := runs.NewRegistry()
	extractor := metadata.NewFileExtractor()
	store := previews.NewStore(config.PreviewsDir)

	scan := scanner.New(db, extractor, config.PhotosDir, config.TombstoneRetention)
	generator := previews.NewGenerator(db, store, config.PhotosDir,
		config.MaxPreviewRounds, workers.ForPreviews(8))
	orphans := previews.NewOrphanCleaner(db, store)
	backfill := metadata.NewBackfill(db, extractor, config.PhotosDir)
	reindexer := search.NewReindexer(db)

	executor := search.NewExecutor(db, db, config.SearchFetchTimeout, config.SearchJobTTL)
	defer executor.Close()

	h := handlers.New(db, registry, executor, store, scan, generator, orphans, backfill, reindexer)

	router := setupRouter(h, config)
	startup.LogHTTPRoutes(router, config.LogStaticFiles, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogStaticFiles = config.LogStaticFiles
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(router)
	handler = middleware.Metrics(middleware.DefaultMetricsConfig())(handler)
	handler = middleware.Compression(middleware.DefaultCompressionConfig())(handler)

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	var collector *metrics.Collector
	if config.MetricsEnabled {
		collector = metrics.NewCollector(statsAdapter{db}, config.DatabasePath, time.Minute)
		collector.Start()

		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:        ":" + config.MetricsPort,
			Handler:     metricsMux,
			ReadTimeout: 15 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != http.ErrServerClosed {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	// Kick off an initial scan so a fresh deployment indexes itself.
	registry.Start(runs.KindScan, scan.Run)

	go handleShutdown(srv, metricsSrv, collector, executor, registry)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

// statsAdapter bridges catalog stats into the metrics collector.
type statsAdapter struct {
	db *database.Database
}

func (a statsAdapter) GetStats() metrics.Stats {
	s := a.db.GetStats()
	return metrics.Stats{
		LiveFiles:       s.LiveFiles,
		DeletedFiles:    s.DeletedFiles,
		Keywords:        s.Keywords,
		MissingPreviews: s.MissingPreviews,
	}
}

func setupRouter(h *handlers.Handlers, config *startup.Config) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.Liveness).Methods("GET")
	r.HandleFunc("/readyz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	// Admin routes: maintenance run lifecycle
	admin := r.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/index/rescan", h.StartRescan).Methods("POST")
	admin.HandleFunc("/index/refresh-all", h.StartRescan).Methods("POST")
	admin.HandleFunc("/index/cancel", h.CancelRescan).Methods("POST")
	admin.HandleFunc("/index/status", h.IndexStatus).Methods("GET")
	admin.HandleFunc("/index/reindex", h.StartReindex).Methods("POST")
	admin.HandleFunc("/index/reindex/status", h.ReindexStatus).Methods("GET")
	admin.HandleFunc("/previews/refresh", h.RefreshPreviews).Methods("POST")
	admin.HandleFunc("/previews/restart", h.RestartPreviews).Methods("POST")
	admin.HandleFunc("/previews/status", h.PreviewsStatus).Methods("GET")
	admin.HandleFunc("/previews/orphans/cleanup", h.CleanupOrphans).Methods("POST")
	admin.HandleFunc("/previews/orphans/status", h.OrphansStatus).Methods("GET")
	admin.HandleFunc("/shot-at/refresh", h.RefreshShotAt).Methods("POST")
	admin.HandleFunc("/shot-at/reset", h.ResetShotAt).Methods("POST")
	admin.HandleFunc("/shot-at/status", h.ShotAtStatus).Methods("GET")

	// API routes
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/search", h.Search).Methods("GET")
	api.HandleFunc("/search/async/start", h.SearchAsyncStart).Methods("POST")
	api.HandleFunc("/search/async/{job_id}", h.SearchAsyncFetch).Methods("GET")
	api.HandleFunc("/search/async/{job_id}/status", h.SearchAsyncStatus).Methods("GET")
	api.HandleFunc("/keywords/suggest", h.SuggestKeywords).Methods("GET")
	api.HandleFunc("/files/{id}", h.GetFile).Methods("GET")
	api.HandleFunc("/stats", h.GetStats).Methods("GET")

	// Preview artifacts
	r.PathPrefix("/previews/").Handler(
		http.StripPrefix("/previews/", http.FileServer(http.Dir(config.PreviewsDir))))

	return r
}

func handleShutdown(srv, metricsSrv *http.Server, collector *metrics.Collector, executor *search.Executor, registry *runs.Registry) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Cancelling maintenance runs")
	for _, kind := range []runs.Kind{
		runs.KindScan, runs.KindPreview, runs.KindOrphanCleanup,
		runs.KindShotAtBackfill, runs.KindReindex,
	} {
		registry.Cancel(kind)
	}
	startup.LogShutdownStepComplete("Maintenance runs cancelled")

	startup.LogShutdownStep("Stopping search executor")
	executor.Close()
	startup.LogShutdownStepComplete("Search executor stopped")

	if collector != nil {
		startup.LogShutdownStep("Stopping metrics collector")
		collector.Stop()
		startup.LogShutdownStepComplete("Metrics collector stopped")
	}
	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownComplete()
}
