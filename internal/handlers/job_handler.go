// -----------------------------------------------------------------------
// JobHandler - enqueue, on-demand batch processing and job inspection
// -----------------------------------------------------------------------

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/vistaview/conveyor/internal/common"
	"github.com/vistaview/conveyor/internal/models"
	"github.com/vistaview/conveyor/internal/queue"
	"github.com/vistaview/conveyor/internal/storage/sqlite"
)

type JobHandler struct {
	queueCfg   common.QueueConfig
	logger     arbor.ILogger
	jobs       *sqlite.JobStorage
	dispatcher *queue.Dispatcher
	validate   *validator.Validate
}

func NewJobHandler(queueCfg common.QueueConfig, logger arbor.ILogger, jobs *sqlite.JobStorage, dispatcher *queue.Dispatcher) *JobHandler {
	return &JobHandler{
		queueCfg:   queueCfg,
		logger:     logger,
		jobs:       jobs,
		dispatcher: dispatcher,
		validate:   validator.New(),
	}
}

// enqueueEnvelope carries the queue options that ride alongside the
// family-specific payload fields in the same JSON object.
type enqueueEnvelope struct {
	Priority    *int   `json:"priority"`
	MaxAttempts *int   `json:"max_attempts"`
	SessionID   string `json:"session_id"`
}

// EnqueueHandler handles POST /api/jobs/{family}/enqueue
func (h *JobHandler) EnqueueHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	family, _, err := jobPathParts(r.URL.Path)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var body json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var envelope enqueueEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	payload, naturalKey, err := h.decodePayload(family, body)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	maxAttempts := h.queueCfg.DefaultMaxAttempts
	if envelope.MaxAttempts != nil && *envelope.MaxAttempts > 0 {
		maxAttempts = *envelope.MaxAttempts
	}
	priority := h.queueCfg.DefaultPriority
	if envelope.Priority != nil {
		priority = *envelope.Priority
	}

	job, err := models.NewJob(family, payload, maxAttempts, priority)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	job.NaturalKey = naturalKey
	job.SessionID = envelope.SessionID

	jobID, err := h.jobs.Enqueue(r.Context(), job)
	if err != nil {
		h.logger.Error().Err(err).Str("family", string(family)).Msg("Failed to enqueue job")
		WriteFailure(w, err.Error())
		return
	}

	h.logger.Info().
		Str("job_id", jobID).
		Str("family", string(family)).
		Msg("Job enqueued")

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"jobId":   jobID,
	})
}

// decodePayload unmarshals and validates the family-specific payload,
// returning the dedupe key where the family defines one.
func (h *JobHandler) decodePayload(family models.JobFamily, body json.RawMessage) (interface{}, string, error) {
	switch family {
	case models.FamilyFetch:
		var p models.FetchPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, "", fmt.Errorf("invalid fetch payload: %w", err)
		}
		if err := h.validate.Struct(&p); err != nil {
			return nil, "", fmt.Errorf("invalid fetch payload: %w", err)
		}
		return &p, p.NaturalKey(), nil
	case models.FamilyParse:
		var p models.ParsePayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, "", fmt.Errorf("invalid parse payload: %w", err)
		}
		if err := h.validate.Struct(&p); err != nil {
			return nil, "", fmt.Errorf("invalid parse payload: %w", err)
		}
		return &p, "", nil
	case models.FamilyEmbed:
		var p models.EmbedPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, "", fmt.Errorf("invalid embed payload: %w", err)
		}
		if err := h.validate.Struct(&p); err != nil {
			return nil, "", fmt.Errorf("invalid embed payload: %w", err)
		}
		return &p, "", nil
	case models.FamilySend:
		var p models.SendPayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, "", fmt.Errorf("invalid send payload: %w", err)
		}
		if err := h.validate.Struct(&p); err != nil {
			return nil, "", fmt.Errorf("invalid send payload: %w", err)
		}
		return &p, "", nil
	default:
		return nil, "", fmt.Errorf("unknown job family: %q", family)
	}
}

// ProcessHandler handles POST /api/jobs/{family}/process
func (h *JobHandler) ProcessHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	family, _, err := jobPathParts(r.URL.Path)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req struct {
		Limit int `json:"limit"`
	}
	if r.Body != nil {
		// Empty bodies are fine, the batch limit has a config default
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	outcomes, err := h.dispatcher.ProcessBatch(r.Context(), family, req.Limit)
	if err != nil {
		h.logger.Error().Err(err).Str("family", string(family)).Msg("Batch processing failed")
		WriteFailure(w, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"outcomes": outcomes,
		"count":    len(outcomes),
	})
}

// GetJobHandler handles GET /api/jobs/{family}/{id}
func (h *JobHandler) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	family, jobID, err := jobPathParts(r.URL.Path)
	if err != nil || jobID == "" {
		WriteError(w, http.StatusBadRequest, "job ID required")
		return
	}

	job, err := h.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		WriteError(w, http.StatusNotFound, fmt.Sprintf("job not found: %s", jobID))
		return
	}
	if job.Family != family {
		WriteError(w, http.StatusNotFound, fmt.Sprintf("job not found: %s", jobID))
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"job":     job,
	})
}

// jobPathParts extracts the family and trailing segment from
// /api/jobs/{family}/... paths.
func jobPathParts(path string) (models.JobFamily, string, error) {
	rest := strings.TrimPrefix(path, "/api/jobs/")
	parts := strings.SplitN(strings.Trim(rest, "/"), "/", 2)
	if len(parts) == 0 || parts[0] == "" {
		return "", "", fmt.Errorf("job family required")
	}
	family, err := models.ParseFamily(parts[0])
	if err != nil {
		return "", "", err
	}
	tail := ""
	if len(parts) == 2 {
		tail = parts[1]
	}
	return family, tail, nil
}
