// -----------------------------------------------------------------------
// Document-parse executor - extracts structured products from uploaded
// catalogs and reports pipeline progress to the submitting session
// -----------------------------------------------------------------------

package parse

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/vistaview/conveyor/internal/common"
	"github.com/vistaview/conveyor/internal/models"
	"github.com/vistaview/conveyor/internal/services/progress"
	"github.com/vistaview/conveyor/internal/storage/sqlite"
)

// Service is the parse-family task executor
type Service struct {
	config    common.ParseConfig
	queueCfg  common.QueueConfig
	uploadDir string
	logger    arbor.ILogger
	extractor *TextExtractor
	jobs      *sqlite.JobStorage
	units     *sqlite.UnitStorage
	stats     *sqlite.StatsStorage
	channel   *progress.Channel
}

func NewService(config common.ParseConfig, queueCfg common.QueueConfig, uploadDir string, logger arbor.ILogger,
	jobs *sqlite.JobStorage, units *sqlite.UnitStorage, stats *sqlite.StatsStorage, channel *progress.Channel) *Service {
	return &Service{
		config:    config,
		queueCfg:  queueCfg,
		uploadDir: uploadDir,
		logger:    logger,
		extractor: NewTextExtractor(logger),
		jobs:      jobs,
		units:     units,
		stats:     stats,
		channel:   channel,
	}
}

// Family implements the task executor contract
func (s *Service) Family() models.JobFamily {
	return models.FamilyParse
}

// parseSummary is the result blob written onto a completed parse job
type parseSummary struct {
	File            string `json:"file"`
	Pages           int    `json:"pages"`
	ProductsFound   int    `json:"products_found"`
	ImagesExtracted int    `json:"images_extracted"`
	EmbedJobs       int    `json:"embed_jobs"`
	DurationMs      int64  `json:"duration_ms"`
}

// Execute runs the five-stage catalog pipeline. Each stage publishes to
// the submitting session's progress channel; failures publish a terminal
// event before returning so a live subscriber is never left hanging.
func (s *Service) Execute(ctx context.Context, job *models.Job) (json.RawMessage, error) {
	var payload models.ParsePayload
	if err := job.DecodePayload(&payload); err != nil {
		return nil, err
	}

	pub := s.channel.NewPublisher(job.SessionID)
	start := time.Now()
	fileName := payload.OriginalName
	if fileName == "" {
		fileName = filepath.Base(payload.FilePath)
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("file", fileName).
		Msg("Parsing document")

	pub.Step(1, "Parse Catalog", fmt.Sprintf("Reading %s...", fileName), 5)
	text, pages, err := s.extractor.ExtractFile(payload.FilePath)
	if err != nil {
		pub.Fail(err.Error())
		return nil, err
	}
	pub.Step(1, "Parse Catalog", fmt.Sprintf("Extracted %d characters", len(text)), 20)

	pub.Step(2, "Extract Images", "Extracting images from document...", 25)
	imageDir := filepath.Join(s.uploadDir, "extracted", job.ID)
	images := s.extractor.ExtractImages(payload.FilePath, imageDir)
	pub.Step(2, "Extract Images", fmt.Sprintf("Extracted %d images", images), 40)

	pub.Step(3, "Analyze", "Scanning for product data...", 45)
	products := extractProducts(job.ID, text, pages, s.config.MaxProducts)
	pub.Step(3, "Analyze", fmt.Sprintf("Identified %d products", len(products)), 60)

	pub.Step(4, "Save to Database", "Saving products...", 65)
	if err := s.units.SaveProducts(ctx, products); err != nil {
		pub.Fail(err.Error())
		return nil, err
	}
	pub.Step(4, "Save to Database", fmt.Sprintf("Saved %d products!", len(products)), 80)

	pub.Step(5, "Publish Catalog", "Vectorizing and publishing to catalog...", 85)
	embedJobs := s.enqueueEmbeddings(ctx, products)

	if err := s.stats.Increment(ctx, "documents_parsed", 1); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to increment documents_parsed")
	}
	if len(products) > 0 {
		if err := s.stats.Increment(ctx, "products_extracted", len(products)); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to increment products_extracted")
		}
	}

	duration := time.Since(start)
	pub.Complete("Publish Catalog",
		fmt.Sprintf("%d products now live!", len(products)),
		models.PipelineResult{
			ProductCount: len(products),
			DurationMs:   duration.Milliseconds(),
		})

	s.logger.Info().
		Str("job_id", job.ID).
		Str("file", fileName).
		Int("pages", pages).
		Int("products", len(products)).
		Int("images", images).
		Dur("duration", duration).
		Msg("Document parsed")

	return json.Marshal(parseSummary{
		File:            fileName,
		Pages:           pages,
		ProductsFound:   len(products),
		ImagesExtracted: images,
		EmbedJobs:       embedJobs,
		DurationMs:      duration.Milliseconds(),
	})
}

// enqueueEmbeddings queues one embed job per saved product so the
// catalog becomes searchable once the embed family is processed.
func (s *Service) enqueueEmbeddings(ctx context.Context, products []*models.Product) int {
	enqueued := 0

	for _, p := range products {
		text := p.Name
		if p.Description != "" && p.Description != p.Name {
			text += " " + p.Description
		}

		payload := models.EmbedPayload{
			TargetTable: "products",
			TargetID:    p.ID,
			Text:        text,
		}

		job, err := models.NewJob(models.FamilyEmbed, &payload, s.queueCfg.DefaultMaxAttempts, s.queueCfg.DefaultPriority)
		if err != nil {
			s.logger.Warn().Err(err).Str("product_id", p.ID).Msg("Failed to build embed job")
			continue
		}

		if _, err := s.jobs.Enqueue(ctx, job); err != nil {
			s.logger.Warn().Err(err).Str("product_id", p.ID).Msg("Failed to enqueue embed job")
			continue
		}
		enqueued++
	}

	return enqueued
}
