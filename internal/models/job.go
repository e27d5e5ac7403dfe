// -----------------------------------------------------------------------
// Job - Durable unit of work shared by all four task families
// -----------------------------------------------------------------------

package models

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/vistaview/conveyor/internal/common"
)

// JobFamily identifies which task executor handles a job
type JobFamily string

const (
	FamilyFetch JobFamily = "fetch"
	FamilyParse JobFamily = "parse"
	FamilyEmbed JobFamily = "embed"
	FamilySend  JobFamily = "send"
)

// ParseFamily converts a raw string into a JobFamily
func ParseFamily(s string) (JobFamily, error) {
	switch JobFamily(strings.ToLower(s)) {
	case FamilyFetch:
		return FamilyFetch, nil
	case FamilyParse:
		return FamilyParse, nil
	case FamilyEmbed:
		return FamilyEmbed, nil
	case FamilySend:
		return FamilySend, nil
	default:
		return "", fmt.Errorf("unknown job family: %q", s)
	}
}

// JobStatus represents the lifecycle state of a job.
// Transitions are pending -> running -> {completed, failed}; a failed job
// with attempts remaining is reset to pending by the dispatcher.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job is the durable queue record. Created by the enqueuer, mutated only
// by the dispatcher, never deleted by this service.
type Job struct {
	ID          string          `json:"id"`
	Family      JobFamily       `json:"family"`
	Payload     json.RawMessage `json:"payload"`
	NaturalKey  string          `json:"natural_key,omitempty"` // Dedupe key among non-terminal jobs
	SessionID   string          `json:"session_id,omitempty"`  // Progress channel correlation
	Status      JobStatus       `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	Priority    int             `json:"priority"`
	Depth       int             `json:"depth"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   time.Time       `json:"started_at,omitempty"`
	CompletedAt time.Time       `json:"completed_at,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// NewJob creates a pending job for the given family and payload
func NewJob(family JobFamily, payload interface{}, maxAttempts, priority int) (*Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job payload: %w", err)
	}

	return &Job{
		ID:          common.NewJobID(),
		Family:      family,
		Payload:     data,
		Status:      JobStatusPending,
		MaxAttempts: maxAttempts,
		Priority:    priority,
		CreatedAt:   time.Now(),
	}, nil
}

// IsTerminal returns true once no further state transition is possible
func (j *Job) IsTerminal() bool {
	if j.Status == JobStatusCompleted {
		return true
	}
	return j.Status == JobStatusFailed && j.Attempts >= j.MaxAttempts
}

// DecodePayload unmarshals the payload blob into the family-specific struct
func (j *Job) DecodePayload(v interface{}) error {
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", j.Family, err)
	}
	return nil
}

// FetchPayload is the payload for fetch-family jobs
type FetchPayload struct {
	URL       string `json:"url" validate:"required,url"`
	Depth     int    `json:"depth"`
	MaxDepth  int    `json:"max_depth"`
	ParentURL string `json:"parent_url,omitempty"`
}

// NaturalKey returns the canonical target identity used to deduplicate
// fetch jobs: scheme, lowercased host and path, no fragment or trailing
// slash. Invalid URLs canonicalize to themselves so enqueue validation
// can reject them with a useful error.
func (p *FetchPayload) NaturalKey() string {
	u, err := url.Parse(p.URL)
	if err != nil || u.Host == "" {
		return strings.TrimSpace(p.URL)
	}
	u.Fragment = ""
	u.RawQuery = ""
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}

// ParsePayload is the payload for document parse jobs
type ParsePayload struct {
	FilePath     string `json:"file_path" validate:"required"`
	OriginalName string `json:"original_name"`
	UploadedBy   string `json:"uploaded_by,omitempty"`
}

// EmbedPayload is the payload for embedding jobs. TargetTable and
// TargetID name the row whose embedding column receives the vector.
type EmbedPayload struct {
	TargetTable string `json:"target_table" validate:"required,oneof=phrase_patterns products"`
	TargetID    string `json:"target_id" validate:"required"`
	Text        string `json:"text" validate:"required"`
}

// SendPayload is the payload for mail send jobs
type SendPayload struct {
	To           string `json:"to" validate:"required,email"`
	Subject      string `json:"subject" validate:"required"`
	BodyMarkdown string `json:"body_markdown" validate:"required"`
}

// Outcome is the uniform result contract shared by all task executors
type Outcome struct {
	JobID   string          `json:"job_id"`
	Family  JobFamily       `json:"family"`
	Success bool            `json:"success"`
	Summary json.RawMessage `json:"summary,omitempty"`
	Error   string          `json:"error,omitempty"`
}
