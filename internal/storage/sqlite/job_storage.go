package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/vistaview/conveyor/internal/models"
)

// ErrJobNotFound is returned when a job id does not exist
var ErrJobNotFound = errors.New("job not found")

// JobStorage implements the durable job queue on SQLite
type JobStorage struct {
	db     *DB
	logger arbor.ILogger
}

// NewJobStorage creates a new job storage instance
func NewJobStorage(db *DB, logger arbor.ILogger) *JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

// Enqueue inserts a new pending job. When the job carries a natural key
// and an equivalent non-terminal job already exists, the existing job's
// id is returned and no row is inserted (idempotent enqueue).
func (s *JobStorage) Enqueue(ctx context.Context, job *models.Job) (string, error) {
	if job.NaturalKey != "" {
		if id, err := s.findNonTerminal(ctx, job.Family, job.NaturalKey); err == nil {
			return id, nil
		} else if !errors.Is(err, ErrJobNotFound) {
			return "", err
		}
	}

	query := `
		INSERT INTO jobs (
			id, family, payload_json, natural_key, session_id, status,
			attempts, max_attempts, priority, depth, created_at
		) VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?)
	`

	_, err := s.db.db.ExecContext(ctx, query,
		job.ID,
		string(job.Family),
		string(job.Payload),
		job.NaturalKey,
		job.SessionID,
		string(models.JobStatusPending),
		job.MaxAttempts,
		job.Priority,
		job.Depth,
		job.CreatedAt.Unix(),
	)

	if err != nil {
		// A concurrent enqueue of the same target can win the race between
		// our lookup and this insert; the unique index turns that into a
		// constraint error and the winner's id is the answer.
		if job.NaturalKey != "" {
			if id, lookupErr := s.findNonTerminal(ctx, job.Family, job.NaturalKey); lookupErr == nil {
				return id, nil
			}
		}
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to enqueue job")
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}

	s.logger.Debug().
		Str("job_id", job.ID).
		Str("family", string(job.Family)).
		Int("priority", job.Priority).
		Msg("Job enqueued")
	return job.ID, nil
}

// findNonTerminal looks up a pending or running job by natural key
func (s *JobStorage) findNonTerminal(ctx context.Context, family models.JobFamily, naturalKey string) (string, error) {
	query := `
		SELECT id FROM jobs
		WHERE family = ? AND natural_key = ? AND status IN ('pending', 'running')
		LIMIT 1
	`

	var id string
	err := s.db.db.QueryRowContext(ctx, query, string(family), naturalKey).Scan(&id)
	if err == sql.ErrNoRows {
		return "", ErrJobNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up natural key: %w", err)
	}
	return id, nil
}

// ClaimBatch atomically selects eligible jobs and marks them running in a
// single UPDATE ... RETURNING statement. Concurrent claimants can never
// receive the same job: the status flip is part of the read.
func (s *JobStorage) ClaimBatch(ctx context.Context, family models.JobFamily, limit int) ([]*models.Job, error) {
	query := `
		UPDATE jobs
		SET status = 'running', started_at = ?
		WHERE id IN (
			SELECT id FROM jobs
			WHERE family = ? AND status = 'pending' AND attempts < max_attempts
			ORDER BY priority DESC, created_at ASC
			LIMIT ?
		)
		RETURNING id, family, payload_json, natural_key, session_id, status,
			attempts, max_attempts, priority, depth, created_at, started_at,
			completed_at, last_error, result_json
	`

	rows, err := s.db.db.QueryContext(ctx, query, time.Now().Unix(), string(family), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim batch: %w", err)
	}
	defer rows.Close()

	return scanJobs(rows)
}

// MarkCompleted transitions a running job to its terminal completed state
func (s *JobStorage) MarkCompleted(ctx context.Context, jobID string, result json.RawMessage) error {
	query := `
		UPDATE jobs
		SET status = 'completed', completed_at = ?, result_json = ?, last_error = NULL
		WHERE id = ?
	`

	res, err := s.db.db.ExecContext(ctx, query, time.Now().Unix(), nullableString(string(result)), jobID)
	if err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrJobNotFound
	}

	s.logger.Debug().Str("job_id", jobID).Msg("Job completed")
	return nil
}

// MarkFailed records a failed attempt. The attempts counter is bumped in
// the same statement that decides the next status: back to pending while
// attempts remain, terminal failed once the bound is reached.
func (s *JobStorage) MarkFailed(ctx context.Context, jobID string, errMsg string) error {
	query := `
		UPDATE jobs
		SET attempts = attempts + 1,
			last_error = ?,
			status = CASE WHEN attempts + 1 >= max_attempts THEN 'failed' ELSE 'pending' END,
			completed_at = CASE WHEN attempts + 1 >= max_attempts THEN ? ELSE NULL END
		WHERE id = ?
	`

	res, err := s.db.db.ExecContext(ctx, query, errMsg, time.Now().Unix(), jobID)
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrJobNotFound
	}

	s.logger.Debug().Str("job_id", jobID).Str("error", errMsg).Msg("Job attempt failed")
	return nil
}

// GetJob retrieves a job by id
func (s *JobStorage) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	query := `
		SELECT id, family, payload_json, natural_key, session_id, status,
			attempts, max_attempts, priority, depth, created_at, started_at,
			completed_at, last_error, result_json
		FROM jobs
		WHERE id = ?
	`

	row := s.db.db.QueryRowContext(ctx, query, jobID)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// CountByStatus returns job counts per status for one family
func (s *JobStorage) CountByStatus(ctx context.Context, family models.JobFamily) (map[models.JobStatus]int, error) {
	query := `SELECT status, COUNT(*) FROM jobs WHERE family = ? GROUP BY status`

	rows, err := s.db.db.QueryContext(ctx, query, string(family))
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.JobStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan job count: %w", err)
		}
		counts[models.JobStatus(status)] = count
	}
	return counts, rows.Err()
}

// scanner abstracts sql.Row and sql.Rows for the shared scan path
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row scanner) (*models.Job, error) {
	var (
		id, family, payloadJSON, naturalKey, sessionID, status string
		attempts, maxAttempts, priority, depth                 int
		createdAt                                              int64
		startedAt, completedAt                                 sql.NullInt64
		lastError, resultJSON                                  sql.NullString
	)

	err := row.Scan(
		&id, &family, &payloadJSON, &naturalKey, &sessionID, &status,
		&attempts, &maxAttempts, &priority, &depth, &createdAt, &startedAt,
		&completedAt, &lastError, &resultJSON,
	)
	if err != nil {
		return nil, err
	}

	job := &models.Job{
		ID:          id,
		Family:      models.JobFamily(family),
		Payload:     json.RawMessage(payloadJSON),
		NaturalKey:  naturalKey,
		SessionID:   sessionID,
		Status:      models.JobStatus(status),
		Attempts:    attempts,
		MaxAttempts: maxAttempts,
		Priority:    priority,
		Depth:       depth,
		CreatedAt:   time.Unix(createdAt, 0),
	}

	if startedAt.Valid {
		job.StartedAt = time.Unix(startedAt.Int64, 0)
	}
	if completedAt.Valid {
		job.CompletedAt = time.Unix(completedAt.Int64, 0)
	}
	if lastError.Valid {
		job.LastError = lastError.String
	}
	if resultJSON.Valid {
		job.Result = json.RawMessage(resultJSON.String)
	}

	return job, nil
}

func scanJobs(rows *sql.Rows) ([]*models.Job, error) {
	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{Valid: true, String: s}
}
