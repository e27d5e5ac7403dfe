// -----------------------------------------------------------------------
// Scheduler - cron-driven batch processing per job family
// -----------------------------------------------------------------------

package queue

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/vistaview/conveyor/internal/common"
	"github.com/vistaview/conveyor/internal/models"
)

// Scheduler invokes the dispatcher on the configured cron schedules so
// queued work drains without an external caller hitting the process
// endpoint. Families without a schedule run on-demand only.
type Scheduler struct {
	config     common.QueueConfig
	logger     arbor.ILogger
	dispatcher *Dispatcher
	cron       *cron.Cron
}

func NewScheduler(config common.QueueConfig, logger arbor.ILogger, dispatcher *Dispatcher) *Scheduler {
	return &Scheduler{
		config:     config,
		logger:     logger,
		dispatcher: dispatcher,
		cron:       cron.New(),
	}
}

// Start registers each configured family schedule and starts the cron
// loop. Invalid expressions are logged and skipped, not fatal.
func (s *Scheduler) Start(ctx context.Context) {
	for familyName, expr := range s.config.Schedules {
		family, err := models.ParseFamily(familyName)
		if err != nil {
			s.logger.Warn().Err(err).Str("family", familyName).Msg("Skipping schedule for unknown family")
			continue
		}

		// Capture for the closure
		f := family
		_, err = s.cron.AddFunc(expr, func() {
			outcomes, err := s.dispatcher.ProcessBatch(ctx, f, s.config.BatchLimit)
			if err != nil {
				s.logger.Error().Err(err).Str("family", string(f)).Msg("Scheduled batch failed")
				return
			}
			if len(outcomes) > 0 {
				s.logger.Info().
					Str("family", string(f)).
					Int("processed", len(outcomes)).
					Msg("Scheduled batch processed")
			}
		})
		if err != nil {
			s.logger.Warn().Err(err).
				Str("family", familyName).
				Str("schedule", expr).
				Msg("Invalid cron expression, schedule skipped")
			continue
		}

		s.logger.Info().
			Str("family", familyName).
			Str("schedule", expr).
			Msg("Registered family schedule")
	}

	s.cron.Start()
}

// Stop halts the cron loop and waits for running invocations
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
}
