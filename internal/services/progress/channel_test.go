package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/vistaview/conveyor/internal/models"
)

func drain(ch <-chan models.ProgressEvent) []models.ProgressEvent {
	var events []models.ProgressEvent
	for event := range ch {
		events = append(events, event)
	}
	return events
}

func TestPublishPreservesOrderAndClosesOnComplete(t *testing.T) {
	channel := NewChannel(16, arbor.NewLogger())
	events := channel.Subscribe("session-1")

	channel.Publish(models.ProgressEvent{SessionID: "session-1", Step: 1, Progress: 20})
	channel.Publish(models.ProgressEvent{SessionID: "session-1", Step: 2, Progress: 60})
	channel.Publish(models.ProgressEvent{SessionID: "session-1", Step: 3, Progress: 100, Complete: true})

	got := drain(events)
	require.Len(t, got, 3)
	assert.Equal(t, 1, got[0].Step)
	assert.Equal(t, 3, got[2].Step)
	assert.True(t, got[2].Complete)
	assert.Equal(t, 0, channel.SubscriberCount())
}

func TestPublishWithoutSubscriberDoesNotBlock(t *testing.T) {
	channel := NewChannel(16, arbor.NewLogger())

	// No subscriber for this session; publishing must be a silent no-op
	channel.Publish(models.ProgressEvent{SessionID: "nobody", Step: 1, Progress: 50})
	assert.Equal(t, 0, channel.SubscriberCount())
}

func TestUnsubscribeClosesStream(t *testing.T) {
	channel := NewChannel(16, arbor.NewLogger())
	events := channel.Subscribe("session-1")
	channel.Unsubscribe("session-1")

	_, open := <-events
	assert.False(t, open)

	// Idempotent for unknown and already-removed sessions
	channel.Unsubscribe("session-1")
	channel.Unsubscribe("never-existed")
}

func TestPublisherClampsMonotonic(t *testing.T) {
	channel := NewChannel(16, arbor.NewLogger())
	events := channel.Subscribe("session-1")

	pub := channel.NewPublisher("session-1")
	pub.Step(1, "Parse Catalog", "Reading...", 20)
	pub.Step(2, "Extract Images", "Extracting...", 40)
	// An out-of-order report must not move progress or step backwards
	pub.Step(1, "Parse Catalog", "Late update", 10)
	pub.Complete("Publish Catalog", "Done", models.PipelineResult{ProductCount: 3})

	got := drain(events)
	require.Len(t, got, 4)

	lastStep, lastProgress := 0, 0
	for _, event := range got {
		assert.GreaterOrEqual(t, event.Step, lastStep)
		assert.GreaterOrEqual(t, event.Progress, lastProgress)
		lastStep, lastProgress = event.Step, event.Progress
	}

	final := got[len(got)-1]
	assert.True(t, final.Complete)
	assert.Equal(t, 100, final.Progress)
	assert.JSONEq(t, `{"productCount":3,"durationMs":0}`, string(final.Result))
}

func TestPublisherSingleTerminalEvent(t *testing.T) {
	channel := NewChannel(16, arbor.NewLogger())
	events := channel.Subscribe("session-1")

	pub := channel.NewPublisher("session-1")
	pub.Step(1, "Parse Catalog", "Reading...", 20)
	pub.Complete("Publish Catalog", "Done", nil)
	pub.Complete("Publish Catalog", "Done again", nil)
	pub.Fail("too late")
	pub.Step(9, "Ghost", "ignored", 99)

	got := drain(events)
	require.Len(t, got, 2)

	terminal := 0
	for _, event := range got {
		if event.Complete {
			terminal++
		}
	}
	assert.Equal(t, 1, terminal)
	assert.True(t, got[len(got)-1].Complete)
}

func TestPublisherFailCarriesLastProgress(t *testing.T) {
	channel := NewChannel(16, arbor.NewLogger())
	events := channel.Subscribe("session-1")

	pub := channel.NewPublisher("session-1")
	pub.Step(2, "Extract Images", "Extracting...", 40)
	pub.Fail("pdf is corrupt")

	got := drain(events)
	require.Len(t, got, 2)
	assert.True(t, got[1].Complete)
	assert.Equal(t, 40, got[1].Progress)
	assert.Equal(t, "pdf is corrupt", got[1].Message)
}

func TestEmptySessionPublisherIsNoop(t *testing.T) {
	channel := NewChannel(16, arbor.NewLogger())

	pub := channel.NewPublisher("")
	pub.Step(1, "Parse Catalog", "Reading...", 20)
	pub.Complete("Publish Catalog", "Done", nil)
	assert.Equal(t, 0, channel.SubscriberCount())
}
