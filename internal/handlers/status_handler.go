// -----------------------------------------------------------------------
// StatusHandler - health, version, queue depth and learning counters
// -----------------------------------------------------------------------

package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/vistaview/conveyor/internal/common"
	"github.com/vistaview/conveyor/internal/models"
	"github.com/vistaview/conveyor/internal/storage/sqlite"
)

type StatusHandler struct {
	logger    arbor.ILogger
	jobs      *sqlite.JobStorage
	stats     *sqlite.StatsStorage
	startTime time.Time
}

func NewStatusHandler(logger arbor.ILogger, jobs *sqlite.JobStorage, stats *sqlite.StatsStorage) *StatusHandler {
	return &StatusHandler{
		logger:    logger,
		jobs:      jobs,
		stats:     stats,
		startTime: time.Now(),
	}
}

var allFamilies = []models.JobFamily{
	models.FamilyFetch,
	models.FamilyParse,
	models.FamilyEmbed,
	models.FamilySend,
}

// StatsHandler handles GET /api/stats
func (h *StatusHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	today, err := h.stats.Today(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to load learning stats")
		WriteFailure(w, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"stats":   today,
		"queue":   h.queueDepth(r),
	})
}

// StatusHandler handles GET /api/status
func (h *StatusHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"status":  "running",
		"version": common.GetVersion(),
		"uptime":  time.Since(h.startTime).Round(time.Second).String(),
		"queue":   h.queueDepth(r),
	})
}

// HealthHandler handles GET /api/health
func (h *StatusHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// VersionHandler handles GET /api/version
func (h *StatusHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.Build,
		"commit":  common.GitCommit,
	})
}

// NotFoundHandler responds to unmatched /api/ routes
func (h *StatusHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusNotFound, "endpoint not found: "+r.URL.Path)
}

func (h *StatusHandler) queueDepth(r *http.Request) map[string]map[models.JobStatus]int {
	depth := make(map[string]map[models.JobStatus]int, len(allFamilies))
	for _, family := range allFamilies {
		counts, err := h.jobs.CountByStatus(r.Context(), family)
		if err != nil {
			h.logger.Warn().Err(err).Str("family", string(family)).Msg("Failed to count jobs")
			continue
		}
		depth[string(family)] = counts
	}
	return depth
}
