// -----------------------------------------------------------------------
// Progress Channel - per-session, server-to-client one-way event stream
// -----------------------------------------------------------------------

package progress

import (
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/vistaview/conveyor/internal/models"
)

// Channel routes progress events from task executors to at most one
// subscriber per session. Delivery is ordered and at-most-once: events
// published while no subscriber is connected are dropped, and there is no
// replay for late subscribers. The terminal-event contract plus the
// subscriber's patience timeout cover that gap.
type Channel struct {
	mu         sync.RWMutex
	sessions   map[string]chan models.ProgressEvent
	bufferSize int
	logger     arbor.ILogger
}

// NewChannel creates a progress channel
func NewChannel(bufferSize int, logger arbor.ILogger) *Channel {
	if bufferSize < 1 {
		bufferSize = 64
	}
	return &Channel{
		sessions:   make(map[string]chan models.ProgressEvent),
		bufferSize: bufferSize,
		logger:     logger,
	}
}

// Subscribe opens the event stream for a session, replacing any previous
// subscription for the same id. The returned channel is closed after the
// terminal event or on Unsubscribe.
func (c *Channel) Subscribe(sessionID string) <-chan models.ProgressEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.sessions[sessionID]; ok {
		close(old)
	}

	ch := make(chan models.ProgressEvent, c.bufferSize)
	c.sessions[sessionID] = ch

	c.logger.Debug().Str("session_id", sessionID).Msg("Progress subscriber connected")
	return ch
}

// Unsubscribe tears down a session's subscription. Safe to call for
// sessions that were never subscribed or already completed.
func (c *Channel) Unsubscribe(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ch, ok := c.sessions[sessionID]; ok {
		close(ch)
		delete(c.sessions, sessionID)
		c.logger.Debug().Str("session_id", sessionID).Msg("Progress subscriber disconnected")
	}
}

// Publish delivers an event to the session's subscriber, preserving
// program order. Publishing to a session with no subscriber is a no-op;
// a server-side job never blocks on an absent or slow listener. After a
// terminal event the subscription is closed.
func (c *Channel) Publish(event models.ProgressEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch, ok := c.sessions[event.SessionID]
	if !ok {
		return
	}

	select {
	case ch <- event:
	default:
		// Subscriber is not draining; drop rather than stall the executor
		c.logger.Warn().
			Str("session_id", event.SessionID).
			Int("step", event.Step).
			Msg("Progress buffer full, event dropped")
	}

	if event.Complete {
		close(ch)
		delete(c.sessions, event.SessionID)
	}
}

// SubscriberCount reports the number of open subscriptions
func (c *Channel) SubscriberCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}
