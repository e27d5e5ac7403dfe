package progress

import (
	"encoding/json"

	"github.com/vistaview/conveyor/internal/models"
)

// Publisher is the executor-side handle for one session's progress. It
// clamps step and progress so the stream stays monotonic no matter what
// order executor stages report in, and guarantees a single terminal event.
type Publisher struct {
	channel      *Channel
	sessionID    string
	lastStep     int
	lastProgress int
	completed    bool
}

// NewPublisher creates a publisher for a session. An empty session id
// yields a no-op publisher, so executors can publish unconditionally.
func (c *Channel) NewPublisher(sessionID string) *Publisher {
	return &Publisher{
		channel:   c,
		sessionID: sessionID,
	}
}

// Step publishes one stage update
func (p *Publisher) Step(step int, stepName, message string, percent int) {
	if p.sessionID == "" || p.completed {
		return
	}

	if step < p.lastStep {
		step = p.lastStep
	}
	if percent < p.lastProgress {
		percent = p.lastProgress
	}
	p.lastStep = step
	p.lastProgress = percent

	p.channel.Publish(models.ProgressEvent{
		SessionID: p.sessionID,
		Step:      step,
		StepName:  stepName,
		Progress:  percent,
		Message:   message,
	})
}

// Complete publishes the terminal event carrying the result summary.
// Further calls on the publisher are ignored.
func (p *Publisher) Complete(stepName, message string, result interface{}) {
	if p.sessionID == "" || p.completed {
		return
	}
	p.completed = true

	var resultJSON json.RawMessage
	if result != nil {
		if data, err := json.Marshal(result); err == nil {
			resultJSON = data
		}
	}

	p.channel.Publish(models.ProgressEvent{
		SessionID: p.sessionID,
		Step:      p.lastStep + 1,
		StepName:  stepName,
		Progress:  100,
		Message:   message,
		Complete:  true,
		Result:    resultJSON,
	})
}

// Fail publishes a terminal event for an aborted pipeline so the
// subscriber still reaches a final state instead of waiting out its
// patience timeout.
func (p *Publisher) Fail(message string) {
	if p.sessionID == "" || p.completed {
		return
	}
	p.completed = true

	p.channel.Publish(models.ProgressEvent{
		SessionID: p.sessionID,
		Step:      p.lastStep,
		Progress:  p.lastProgress,
		Message:   message,
		Complete:  true,
	})
}
