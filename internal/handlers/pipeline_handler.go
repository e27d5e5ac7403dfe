// -----------------------------------------------------------------------
// PipelineHandler - catalog upload entry point for the document pipeline
// -----------------------------------------------------------------------

package handlers

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"

	"github.com/vistaview/conveyor/internal/common"
	"github.com/vistaview/conveyor/internal/models"
	"github.com/vistaview/conveyor/internal/storage/sqlite"
)

const maxUploadBytes = 32 << 20

type PipelineHandler struct {
	serverCfg common.ServerConfig
	queueCfg  common.QueueConfig
	logger    arbor.ILogger
	jobs      *sqlite.JobStorage
}

func NewPipelineHandler(serverCfg common.ServerConfig, queueCfg common.QueueConfig, logger arbor.ILogger, jobs *sqlite.JobStorage) *PipelineHandler {
	return &PipelineHandler{
		serverCfg: serverCfg,
		queueCfg:  queueCfg,
		logger:    logger,
		jobs:      jobs,
	}
}

// SubmitHandler handles POST /api/pipeline/submit. The upload is persisted
// to the configured directory, a parse job is enqueued carrying the
// session id, and the response returns immediately - progress flows over
// /api/progress/{sessionId}.
func (h *PipelineHandler) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("catalog")
	if err != nil {
		// Older clients post the document under "file"
		file, header, err = r.FormFile("file")
	}
	if err != nil {
		WriteError(w, http.StatusBadRequest, "catalog file required")
		return
	}
	defer file.Close()

	sessionID := r.FormValue("sessionId")
	if sessionID == "" {
		sessionID = common.NewSessionID()
	}

	destPath, err := h.saveUpload(file, sessionID, header.Filename)
	if err != nil {
		h.logger.Error().Err(err).Str("file", header.Filename).Msg("Failed to persist upload")
		WriteFailure(w, err.Error())
		return
	}

	payload := &models.ParsePayload{
		FilePath:     destPath,
		OriginalName: header.Filename,
		UploadedBy:   r.FormValue("uploadedBy"),
	}

	job, err := models.NewJob(models.FamilyParse, payload, h.queueCfg.DefaultMaxAttempts, h.queueCfg.DefaultPriority)
	if err != nil {
		WriteFailure(w, err.Error())
		return
	}
	job.SessionID = sessionID

	jobID, err := h.jobs.Enqueue(r.Context(), job)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to enqueue parse job")
		WriteFailure(w, err.Error())
		return
	}

	h.logger.Info().
		Str("job_id", jobID).
		Str("session_id", sessionID).
		Str("file", header.Filename).
		Msg("Catalog submitted for processing")

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"message":   "Catalog received, processing started",
		"sessionId": sessionID,
		"jobId":     jobID,
	})
}

func (h *PipelineHandler) saveUpload(file io.Reader, sessionID, originalName string) (string, error) {
	if err := os.MkdirAll(h.serverCfg.UploadDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	name := filepath.Base(originalName)
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "catalog"
	}
	destPath := filepath.Join(h.serverCfg.UploadDir, sessionID+"_"+name)

	dest, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	defer dest.Close()

	if _, err := io.Copy(dest, file); err != nil {
		os.Remove(destPath)
		return "", fmt.Errorf("failed to write upload file: %w", err)
	}
	return destPath, nil
}
