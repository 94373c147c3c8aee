package handlers

import (
	"net/http"
	"runtime"
	"time"

	"photo-archive/internal/runs"
	"photo-archive/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Ready   bool   `json:"ready"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	Scanning   bool `json:"scanning"`
	Generating bool `json:"generating"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`

	// Stats summary
	TotalFiles int `json:"totalFiles"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	files, err := h.db.CountLiveFiles(r.Context())

	response := HealthResponse{
		Ready:        err == nil,
		Version:      startup.Version,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		Scanning:     h.registry.Active(runs.KindScan),
		Generating:   h.registry.Active(runs.KindPreview),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
		TotalFiles:   files,
	}
	if err == nil {
		response.Status = statusHealthy
	} else {
		response.Status = statusDegraded
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	writeJSON(w, response)
}

// Liveness is a bare process-up probe.
func (h *Handlers) Liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}
