package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/vistaview/conveyor/internal/models"
)

// StatsStorage implements the stats aggregator: process-wide daily
// counters, incremented once per completed unit of work. Increments are
// single UPSERT statements so concurrent workers never lose updates.
type StatsStorage struct {
	db     *DB
	logger arbor.ILogger
}

// NewStatsStorage creates a new stats storage instance
func NewStatsStorage(db *DB, logger arbor.ILogger) *StatsStorage {
	return &StatsStorage{
		db:     db,
		logger: logger,
	}
}

// statColumns guards the dynamic column name used by Increment
var statColumns = map[string]bool{
	"pages_fetched":      true,
	"patterns_learned":   true,
	"documents_parsed":   true,
	"products_extracted": true,
	"embeddings_created": true,
	"mails_sent":         true,
}

// Increment adds delta to today's value of the named counter
func (s *StatsStorage) Increment(ctx context.Context, counter string, delta int) error {
	if !statColumns[counter] {
		return fmt.Errorf("unknown stats counter: %q", counter)
	}
	if delta == 0 {
		return nil
	}

	now := time.Now()
	query := fmt.Sprintf(`
		INSERT INTO learning_stats (stat_date, %s, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(stat_date) DO UPDATE SET
			%s = %s + excluded.%s,
			updated_at = excluded.updated_at
	`, counter, counter, counter, counter)

	_, err := s.db.db.ExecContext(ctx, query, now.Format("2006-01-02"), delta, now.Unix())
	if err != nil {
		return fmt.Errorf("failed to increment %s: %w", counter, err)
	}
	return nil
}

// Today returns the current day's counter row, zero-valued when no work
// has completed yet.
func (s *StatsStorage) Today(ctx context.Context) (*models.LearningStats, error) {
	statDate := time.Now().Format("2006-01-02")
	query := `
		SELECT stat_date, pages_fetched, patterns_learned, documents_parsed,
			products_extracted, embeddings_created, mails_sent, updated_at
		FROM learning_stats
		WHERE stat_date = ?
	`

	var stats models.LearningStats
	var updatedAt int64
	err := s.db.db.QueryRowContext(ctx, query, statDate).Scan(
		&stats.StatDate, &stats.PagesFetched, &stats.PatternsLearned,
		&stats.DocumentsParsed, &stats.ProductsExtracted,
		&stats.EmbeddingsCreated, &stats.MailsSent, &updatedAt,
	)
	if err != nil {
		// No row yet today: report zeros rather than an error
		return &models.LearningStats{StatDate: statDate}, nil
	}
	stats.UpdatedAt = time.Unix(updatedAt, 0)

	return &stats, nil
}
