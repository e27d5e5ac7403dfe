package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Job queue
	mux.HandleFunc("/api/jobs/", s.handleJobRoutes) // Handles /{family}/enqueue, /{family}/process, /{family}/{id}

	// API routes - Document pipeline
	mux.HandleFunc("/api/pipeline/submit", s.app.PipelineHandler.SubmitHandler)
	mux.HandleFunc("/api/progress/", s.app.ProgressHandler.StreamHandler) // GET /{sessionId} NDJSON stream

	// API routes - Search
	mux.HandleFunc("/api/search", s.app.SearchHandler.SearchHandler)

	// API routes - System
	mux.HandleFunc("/api/stats", s.app.StatusHandler.StatsHandler)
	mux.HandleFunc("/api/status", s.app.StatusHandler.StatusHandler)
	mux.HandleFunc("/api/version", s.app.StatusHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.StatusHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.StatusHandler.NotFoundHandler)

	return mux
}

// handleJobRoutes routes job-related requests to the appropriate handler
func (s *Server) handleJobRoutes(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	// POST /api/jobs/{family}/enqueue
	if r.Method == "POST" && strings.HasSuffix(path, "/enqueue") {
		s.app.JobHandler.EnqueueHandler(w, r)
		return
	}

	// POST /api/jobs/{family}/process
	if r.Method == "POST" && strings.HasSuffix(path, "/process") {
		s.app.JobHandler.ProcessHandler(w, r)
		return
	}

	// GET /api/jobs/{family}/{id}
	if r.Method == "GET" {
		s.app.JobHandler.GetJobHandler(w, r)
		return
	}

	http.Error(w, "Not found", http.StatusNotFound)
}
