// -----------------------------------------------------------------------
// Dispatcher - claims batches of eligible jobs and drives their
// executors, isolating each job's outcome from its neighbors
// -----------------------------------------------------------------------

package queue

import (
	"context"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/vistaview/conveyor/internal/common"
	"github.com/vistaview/conveyor/internal/models"
	"github.com/vistaview/conveyor/internal/storage/sqlite"
)

// Dispatcher is stateless between invocations: every ProcessBatch call
// claims fresh work from the store, so it can be timer-driven and
// on-demand at the same time without coordination.
type Dispatcher struct {
	config   common.QueueConfig
	logger   arbor.ILogger
	jobs     *sqlite.JobStorage
	registry *Registry

	// fetchLimiter spaces out fetch jobs within a batch so a single
	// external host is not hammered.
	fetchLimiter *rate.Limiter

	notifier Notifier
}

// Notifier receives job lifecycle events. Used by the websocket
// handler to push live updates to dashboard clients.
type Notifier interface {
	JobStarted(job *models.Job)
	JobFinished(outcome models.Outcome)
}

func NewDispatcher(config common.QueueConfig, logger arbor.ILogger, jobs *sqlite.JobStorage, registry *Registry) *Dispatcher {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if config.FetchJobDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(config.FetchJobDelay), 1)
	}

	return &Dispatcher{
		config:       config,
		logger:       logger,
		jobs:         jobs,
		registry:     registry,
		fetchLimiter: limiter,
	}
}

// SetNotifier registers an optional outcome listener. Must be called
// before the scheduler starts.
func (d *Dispatcher) SetNotifier(n Notifier) {
	d.notifier = n
}

// ProcessBatch claims up to limit pending jobs of one family and runs
// them in order. One job's failure never aborts the batch; every
// claimed job ends marked completed or failed.
func (d *Dispatcher) ProcessBatch(ctx context.Context, family models.JobFamily, limit int) ([]models.Outcome, error) {
	if limit <= 0 || limit > d.config.BatchLimit {
		limit = d.config.BatchLimit
	}

	executor, err := d.registry.Lookup(family)
	if err != nil {
		return nil, err
	}

	claimed, err := d.jobs.ClaimBatch(ctx, family, limit)
	if err != nil {
		return nil, err
	}
	if len(claimed) == 0 {
		return []models.Outcome{}, nil
	}

	d.logger.Info().
		Str("family", string(family)).
		Int("claimed", len(claimed)).
		Msg("Processing batch")

	outcomes := make([]models.Outcome, 0, len(claimed))
	for _, job := range claimed {
		if family == models.FamilyFetch {
			if err := d.fetchLimiter.Wait(ctx); err != nil {
				// Context cancelled mid-batch; requeue nothing, the
				// claimed job fails with the cancellation error.
				outcomes = append(outcomes, d.finish(ctx, job, nil, err))
				continue
			}
		}

		if d.notifier != nil {
			d.notifier.JobStarted(job)
		}

		summary, execErr := executor.Execute(ctx, job)
		outcomes = append(outcomes, d.finish(ctx, job, summary, execErr))
	}

	return outcomes, nil
}

// finish writes the job's terminal-or-requeued state and builds its outcome
func (d *Dispatcher) finish(ctx context.Context, job *models.Job, summary []byte, execErr error) (outcome models.Outcome) {
	outcome = models.Outcome{JobID: job.ID, Family: job.Family}
	if d.notifier != nil {
		defer func() { d.notifier.JobFinished(outcome) }()
	}

	if execErr == nil {
		if err := d.jobs.MarkCompleted(ctx, job.ID, summary); err != nil {
			d.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to mark job completed")
			outcome.Error = err.Error()
			return outcome
		}
		outcome.Success = true
		outcome.Summary = summary
		return outcome
	}

	d.logger.Warn().
		Err(execErr).
		Str("job_id", job.ID).
		Str("family", string(job.Family)).
		Int("attempts", job.Attempts+1).
		Int("max_attempts", job.MaxAttempts).
		Msg("Job execution failed")

	if err := d.jobs.MarkFailed(ctx, job.ID, execErr.Error()); err != nil {
		d.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to mark job failed")
	}
	outcome.Error = execErr.Error()
	return outcome
}
