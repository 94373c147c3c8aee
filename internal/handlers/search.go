package handlers

import (
	"context"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"

	"photo-archive/internal/search"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// SearchItem is one result in a search response.
type SearchItem struct {
	ID          string     `json:"id"`
	Filename    string     `json:"filename"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	Keywords    []string   `json:"keywords,omitempty"`
	ShotAt      *time.Time `json:"shot_at,omitempty"`
	Orientation string     `json:"orientation"`
	ThumbURL    string     `json:"thumb_url"`
	MediumURL   string     `json:"medium_url"`
}

type searchResponse struct {
	Items      []SearchItem `json:"items"`
	NextCursor *int         `json:"next_cursor,omitempty"`
	Total      int          `json:"total"`
	TotalAll   int          `json:"total_all"`
	Returned   int          `json:"returned"`
	JobID      string       `json:"job_id,omitempty"`
}

// Search runs a one-shot synchronous search.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	query := search.Parse(r.URL.Query().Get("q"))
	offset := queryInt(r, "offset", 0)
	limit := pageLimit(r, defaultPageSize, maxPageSize)

	page, err := h.executor.Query(r.Context(), query, offset, limit)
	if err != nil {
		writeJSONError(w, "search failed", http.StatusInternalServerError)
		return
	}
	h.writeSearchPage(w, r.Context(), page, "")
}

// SearchAsyncStart begins an async search job, returning the first page
// plus the job id for subsequent fetches.
func (h *Handlers) SearchAsyncStart(w http.ResponseWriter, r *http.Request) {
	query := search.Parse(r.URL.Query().Get("q"))
	limit := pageLimit(r, defaultPageSize, maxPageSize)

	job, err := h.executor.StartJob(r.Context(), query, limit)
	if err != nil {
		writeJSONError(w, "search failed", http.StatusInternalServerError)
		return
	}
	page := job.Fetch(r.Context(), 0, limit)
	h.writeSearchPage(w, r.Context(), page, job.ID)
}

// SearchAsyncFetch returns one page of an async job, blocking briefly
// when the job has not yet discovered the requested window.
func (h *Handlers) SearchAsyncFetch(w http.ResponseWriter, r *http.Request) {
	job, ok := h.executor.Job(mux.Vars(r)["job_id"])
	if !ok {
		writeJSONError(w, "unknown search job", http.StatusNotFound)
		return
	}
	offset := queryInt(r, "offset", 0)
	limit := pageLimit(r, defaultPageSize, maxPageSize)

	page := job.Fetch(r.Context(), offset, limit)
	h.writeSearchPage(w, r.Context(), page, job.ID)
}

// SearchAsyncStatus is the cheap polling probe for an async job.
func (h *Handlers) SearchAsyncStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := h.executor.Job(mux.Vars(r)["job_id"])
	if !ok {
		writeJSONError(w, "unknown search job", http.StatusNotFound)
		return
	}
	status, totalFound, totalAll := job.Status()
	writeJSON(w, map[string]interface{}{
		"status":      status,
		"total_found": totalFound,
		"total_all":   totalAll,
	})
}

func (h *Handlers) writeSearchPage(w http.ResponseWriter, ctx context.Context, page search.Page, jobID string) {
	items, err := h.hydrate(ctx, page.IDs)
	if err != nil {
		writeJSONError(w, "failed to load results", http.StatusInternalServerError)
		return
	}
	writeJSON(w, searchResponse{
		Items:      items,
		NextCursor: page.NextCursor,
		Total:      page.Total,
		TotalAll:   page.TotalAll,
		Returned:   len(items),
		JobID:      jobID,
	})
}

// hydrate turns result ids into full items, preserving result order.
func (h *Handlers) hydrate(ctx context.Context, ids []string) ([]SearchItem, error) {
	items := make([]SearchItem, 0, len(ids))
	if len(ids) == 0 {
		return items, nil
	}
	files, err := h.db.FilesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		items = append(items, SearchItem{
			ID:          f.ID,
			Filename:    f.Filename,
			Title:       f.Title,
			Description: f.Description,
			Keywords:    f.Keywords,
			ShotAt:      f.ShotAt,
			Orientation: string(f.Orientation),
			ThumbURL:    "/previews/" + filepath.ToSlash(h.store.ThumbKey(f.ID)),
			MediumURL:   "/previews/" + filepath.ToSlash(h.store.MediumKey(f.ID)),
		})
	}
	return items, nil
}
