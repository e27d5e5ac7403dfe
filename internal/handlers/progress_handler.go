// -----------------------------------------------------------------------
// ProgressHandler - NDJSON progress stream for pipeline sessions
// -----------------------------------------------------------------------

package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/vistaview/conveyor/internal/services/progress"
)

type ProgressHandler struct {
	logger  arbor.ILogger
	channel *progress.Channel
}

func NewProgressHandler(logger arbor.ILogger, channel *progress.Channel) *ProgressHandler {
	return &ProgressHandler{logger: logger, channel: channel}
}

// StreamHandler handles GET /api/progress/{sessionId}. Events are written
// as newline-delimited JSON and flushed individually; the stream closes
// after the session's terminal event or when the client disconnects.
func (h *ProgressHandler) StreamHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	sessionID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/progress/"), "/")
	if sessionID == "" {
		WriteError(w, http.StatusBadRequest, "session ID required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	events := h.channel.Subscribe(sessionID)
	defer h.channel.Unsubscribe(sessionID)

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	h.logger.Debug().Str("session_id", sessionID).Msg("Progress stream opened")

	enc := json.NewEncoder(w)
	for {
		select {
		case <-r.Context().Done():
			h.logger.Debug().Str("session_id", sessionID).Msg("Progress stream client disconnected")
			return
		case event, open := <-events:
			if !open {
				return
			}
			if err := enc.Encode(event); err != nil {
				h.logger.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to write progress event")
				return
			}
			flusher.Flush()
			if event.Complete {
				h.logger.Debug().Str("session_id", sessionID).Msg("Progress stream completed")
				return
			}
		}
	}
}
