package handlers

import (
	"net/http"

	"photo-archive/internal/logging"
	"photo-archive/internal/runs"
)

const (
	triggerStarted        = "started"
	triggerAlreadyRunning = "already_running"
)

// runTriggerResponse answers every run-starting endpoint.
type runTriggerResponse struct {
	Status string `json:"status"`
	RunID  string `json:"run_id"`
}

// startRun triggers a run via the registry and reports whether a new
// one was created or an active one was reused.
func (h *Handlers) startRun(w http.ResponseWriter, kind runs.Kind, worker runs.Worker) {
	run, started := h.registry.Start(kind, worker)
	status := triggerAlreadyRunning
	if started {
		status = triggerStarted
	}
	writeJSON(w, runTriggerResponse{Status: status, RunID: run.ID})
}

// runStatus writes the latest run of a kind, or {"run": null}.
func (h *Handlers) runStatus(w http.ResponseWriter, kind runs.Kind, extra map[string]interface{}) {
	resp := make(map[string]interface{}, len(extra)+1)
	for k, v := range extra {
		resp[k] = v
	}
	if run, ok := h.registry.Status(kind); ok {
		resp["run"] = run
	} else {
		resp["run"] = nil
	}
	writeJSON(w, resp)
}

// StartRescan triggers a catalog scan.
func (h *Handlers) StartRescan(w http.ResponseWriter, _ *http.Request) {
	h.startRun(w, runs.KindScan, h.scanner.Run)
}

// CancelRescan requests cooperative cancellation of the active scan.
// Cancelling when nothing is running is a harmless no-op.
func (h *Handlers) CancelRescan(w http.ResponseWriter, _ *http.Request) {
	if h.registry.Cancel(runs.KindScan) {
		writeJSON(w, map[string]string{"status": "cancelling"})
		return
	}
	writeJSON(w, map[string]string{"status": "noop"})
}

// IndexStatus reports catalog size plus the latest scan run.
func (h *Handlers) IndexStatus(w http.ResponseWriter, r *http.Request) {
	files, err := h.db.CountLiveFiles(r.Context())
	if err != nil {
		writeJSONError(w, "failed to count files", http.StatusInternalServerError)
		return
	}
	h.runStatus(w, runs.KindScan, map[string]interface{}{"files": files})
}

// StartReindex triggers a full-text index rebuild.
func (h *Handlers) StartReindex(w http.ResponseWriter, _ *http.Request) {
	h.startRun(w, runs.KindReindex, h.reindexer.Run)
}

// ReindexStatus reports the latest reindex run.
func (h *Handlers) ReindexStatus(w http.ResponseWriter, _ *http.Request) {
	h.runStatus(w, runs.KindReindex, nil)
}

// RefreshPreviews generates previews for files that lack one.
func (h *Handlers) RefreshPreviews(w http.ResponseWriter, _ *http.Request) {
	h.startRun(w, runs.KindPreview, h.generator.Run)
}

// RestartPreviews rebuilds every preview from scratch: all preview
// records are dropped so the fresh run regenerates the full set. When a
// preview run is already active the reset is skipped and the active run
// is returned instead.
func (h *Handlers) RestartPreviews(w http.ResponseWriter, r *http.Request) {
	if h.registry.Active(runs.KindPreview) {
		run, _ := h.registry.Status(runs.KindPreview)
		writeJSON(w, runTriggerResponse{Status: triggerAlreadyRunning, RunID: run.ID})
		return
	}
	cleared, err := h.db.ClearPreviews(r.Context())
	if err != nil {
		writeJSONError(w, "failed to reset previews", http.StatusInternalServerError)
		return
	}
	logging.Info("Preview rebuild requested: %d records cleared", cleared)
	h.startRun(w, runs.KindPreview, h.generator.Run)
}

// PreviewsStatus reports the latest preview generation run.
func (h *Handlers) PreviewsStatus(w http.ResponseWriter, _ *http.Request) {
	h.runStatus(w, runs.KindPreview, nil)
}

// CleanupOrphans triggers orphaned preview artifact removal.
func (h *Handlers) CleanupOrphans(w http.ResponseWriter, _ *http.Request) {
	h.startRun(w, runs.KindOrphanCleanup, h.orphans.Run)
}

// OrphansStatus reports the latest orphan cleanup run.
func (h *Handlers) OrphansStatus(w http.ResponseWriter, _ *http.Request) {
	h.runStatus(w, runs.KindOrphanCleanup, nil)
}

// RefreshShotAt triggers the capture-time backfill.
func (h *Handlers) RefreshShotAt(w http.ResponseWriter, _ *http.Request) {
	h.startRun(w, runs.KindShotAtBackfill, h.backfill.Run)
}

// ResetShotAt clears recorded backfill progress so the next run
// reprocesses every file still missing a capture time. Resetting while
// a backfill is running is refused as a no-op.
func (h *Handlers) ResetShotAt(w http.ResponseWriter, r *http.Request) {
	if h.registry.Active(runs.KindShotAtBackfill) {
		writeJSON(w, map[string]string{"status": "noop"})
		return
	}
	cleared, err := h.db.ResetShotAtChecks(r.Context())
	if err != nil {
		writeJSONError(w, "failed to reset backfill progress", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{"status": "reset", "cleared": cleared})
}

// ShotAtStatus reports the latest backfill run.
func (h *Handlers) ShotAtStatus(w http.ResponseWriter, _ *http.Request) {
	h.runStatus(w, runs.KindShotAtBackfill, nil)
}
