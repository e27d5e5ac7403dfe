// -----------------------------------------------------------------------
// Embed executor - writes a vector onto the referenced unit row
// -----------------------------------------------------------------------

package embed

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/vistaview/conveyor/internal/common"
	"github.com/vistaview/conveyor/internal/models"
	"github.com/vistaview/conveyor/internal/storage/sqlite"
)

// Service is the embed-family task executor
type Service struct {
	config   common.EmbedConfig
	logger   arbor.ILogger
	provider Provider
	fallback Provider
	units    *sqlite.UnitStorage
	stats    *sqlite.StatsStorage
}

func NewService(config common.EmbedConfig, logger arbor.ILogger, provider Provider,
	units *sqlite.UnitStorage, stats *sqlite.StatsStorage) *Service {
	return &Service{
		config:   config,
		logger:   logger,
		provider: provider,
		fallback: NewPseudoProvider(config.Dimensions),
		units:    units,
		stats:    stats,
	}
}

// Family implements the task executor contract
func (s *Service) Family() models.JobFamily {
	return models.FamilyEmbed
}

// embedSummary is the result blob written onto a completed embed job
type embedSummary struct {
	Table      string `json:"table"`
	TargetID   string `json:"target_id"`
	Dimensions int    `json:"dimensions"`
	Model      string `json:"model"`
}

// Execute generates a vector for the payload text and stores it on the
// target row. A provider failure drops to the deterministic fallback
// rather than failing the job; only store errors surface as failures.
func (s *Service) Execute(ctx context.Context, job *models.Job) (json.RawMessage, error) {
	var payload models.EmbedPayload
	if err := job.DecodePayload(&payload); err != nil {
		return nil, err
	}

	vector, model, err := s.EmbedText(ctx, payload.Text)
	if err != nil {
		return nil, err
	}

	if err := s.units.SetEmbedding(ctx, payload.TargetTable, payload.TargetID, vector, model); err != nil {
		return nil, err
	}

	if err := s.stats.Increment(ctx, "embeddings_created", 1); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to increment embeddings_created")
	}

	s.logger.Debug().
		Str("job_id", job.ID).
		Str("table", payload.TargetTable).
		Str("target_id", payload.TargetID).
		Str("model", model).
		Msg("Embedding stored")

	return json.Marshal(embedSummary{
		Table:      payload.TargetTable,
		TargetID:   payload.TargetID,
		Dimensions: len(vector),
		Model:      model,
	})
}

// EmbedText truncates the input and produces a vector, reporting which
// model produced it. Shared with the search service so queries and
// stored units go through identical preprocessing.
func (s *Service) EmbedText(ctx context.Context, text string) ([]float32, string, error) {
	cleaned := text
	if len(cleaned) > s.config.MaxInputLen {
		cleaned = cleaned[:s.config.MaxInputLen]
	}
	cleaned = strings.TrimSpace(cleaned)

	vector, err := s.provider.Embed(ctx, cleaned)
	if err == nil {
		return vector, s.provider.Name(), nil
	}

	if s.provider.Name() == s.fallback.Name() {
		return nil, "", err
	}

	s.logger.Warn().Err(err).Msg("Provider embedding failed, using pseudo fallback")
	vector, fbErr := s.fallback.Embed(ctx, cleaned)
	if fbErr != nil {
		return nil, "", fbErr
	}
	return vector, s.fallback.Name(), nil
}
