// -----------------------------------------------------------------------
// SearchHandler - semantic similarity search over embedded rows
// -----------------------------------------------------------------------

package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/vistaview/conveyor/internal/services/embed"
)

type SearchHandler struct {
	logger arbor.ILogger
	embed  *embed.Service
}

func NewSearchHandler(logger arbor.ILogger, embedService *embed.Service) *SearchHandler {
	return &SearchHandler{logger: logger, embed: embedService}
}

type searchRequest struct {
	Query         string  `json:"query"`
	Table         string  `json:"table"`
	Limit         int     `json:"limit"`
	MinSimilarity float64 `json:"minSimilarity"`
}

// SearchHandler handles POST /api/search
func (h *SearchHandler) SearchHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		WriteError(w, http.StatusBadRequest, "query required")
		return
	}

	table := req.Table
	if table == "" {
		table = "phrase_patterns"
	}
	if table != "phrase_patterns" && table != "products" {
		WriteError(w, http.StatusBadRequest, "table must be phrase_patterns or products")
		return
	}

	results, err := h.embed.Search(r.Context(), table, req.Query, req.Limit, req.MinSimilarity)
	if err != nil {
		h.logger.Error().Err(err).Str("table", table).Msg("Search failed")
		WriteFailure(w, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"results": results,
		"count":   len(results),
	})
}
