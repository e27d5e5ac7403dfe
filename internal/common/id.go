package common

import (
	"github.com/google/uuid"
)

// NewJobID generates a unique job ID with the "job_" prefix
func NewJobID() string {
	return "job_" + uuid.New().String()
}

// NewSessionID generates a progress correlation id. Callers may supply
// their own session ids; this is the server-side fallback.
func NewSessionID() string {
	return uuid.New().String()
}
