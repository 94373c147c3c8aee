package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"path/filepath"

	"github.com/gorilla/mux"
)

// GetFile returns the full record for one catalog file.
func (h *Handlers) GetFile(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	file, err := h.db.GetFileByID(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		writeJSONError(w, "file not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeJSONError(w, "failed to load file", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{
		"file":       file,
		"thumb_url":  "/previews/" + filepath.ToSlash(h.store.ThumbKey(file.ID)),
		"medium_url": "/previews/" + filepath.ToSlash(h.store.MediumKey(file.ID)),
	})
}

// GetStats reports catalog totals for dashboards.
func (h *Handlers) GetStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.db.GetStats())
}
