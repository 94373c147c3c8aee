package handlers

import (
	"net/http"

	"photo-archive/internal/database"
	"photo-archive/internal/search"
)

const maxSuggestions = 50

// SuggestKeywords returns ranked keyword completions for a prefix. The
// prefix goes through the same normalization as query terms so the
// suggestions line up with what the parser would match.
func (h *Handlers) SuggestKeywords(w http.ResponseWriter, r *http.Request) {
	prefix := search.NormalizeKeyword(r.URL.Query().Get("prefix"))
	limit := pageLimit(r, 10, maxSuggestions)

	suggestions := []database.KeywordSuggestion{}
	if prefix != "" {
		var err error
		suggestions, err = h.db.SuggestKeywords(r.Context(), prefix, limit)
		if err != nil {
			writeJSONError(w, "suggestion lookup failed", http.StatusInternalServerError)
			return
		}
	}
	writeJSON(w, map[string]interface{}{"suggestions": suggestions})
}
