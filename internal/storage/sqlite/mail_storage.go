package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/vistaview/conveyor/internal/models"
)

// MailStorage records every mail delivery attempt as a durable row
type MailStorage struct {
	db     *DB
	logger arbor.ILogger
}

// NewMailStorage creates a new mail log storage instance
func NewMailStorage(db *DB, logger arbor.ILogger) *MailStorage {
	return &MailStorage{
		db:     db,
		logger: logger,
	}
}

// RecordAttempt writes one mail_log row. Called for success, failure and
// test-mode deliveries alike.
func (s *MailStorage) RecordAttempt(ctx context.Context, record *models.MailRecord) error {
	if record.ID == "" {
		record.ID = "mail_" + uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO mail_log (id, job_id, recipient, subject, status, message_id, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.db.ExecContext(ctx, query,
		record.ID, record.JobID, record.Recipient, record.Subject,
		string(record.Status), nullableString(record.MessageID),
		nullableString(record.Error), record.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record mail attempt: %w", err)
	}

	return nil
}

// GetAttemptsByJob lists delivery attempts for one send job
func (s *MailStorage) GetAttemptsByJob(ctx context.Context, jobID string) ([]*models.MailRecord, error) {
	query := `
		SELECT id, job_id, recipient, subject, status, message_id, error, created_at
		FROM mail_log
		WHERE job_id = ?
		ORDER BY created_at ASC
	`

	rows, err := s.db.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list mail attempts: %w", err)
	}
	defer rows.Close()

	var records []*models.MailRecord
	for rows.Next() {
		var (
			r                 models.MailRecord
			status            string
			messageID, errMsg sql.NullString
			createdAt         int64
		)
		if err := rows.Scan(&r.ID, &r.JobID, &r.Recipient, &r.Subject, &status, &messageID, &errMsg, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan mail record: %w", err)
		}
		r.Status = models.MailStatus(status)
		r.MessageID = messageID.String
		r.Error = errMsg.String
		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, &r)
	}

	return records, rows.Err()
}
