package subscriber

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vistaview/conveyor/internal/models"
)

func collect(source Source) []models.ProgressEvent {
	var events []models.ProgressEvent
	for event := range source.Events() {
		events = append(events, event)
	}
	return events
}

func TestSimulatedSourceIsDeterministic(t *testing.T) {
	source := NewSimulatedSource(context.Background(), "session-1", 0.001)
	events := collect(source)
	require.NotEmpty(t, events)

	lastStep, lastProgress := 0, -1
	for _, event := range events {
		assert.Equal(t, "session-1", event.SessionID)
		assert.GreaterOrEqual(t, event.Step, lastStep)
		assert.GreaterOrEqual(t, event.Progress, lastProgress)
		lastStep, lastProgress = event.Step, event.Progress
	}

	final := events[len(events)-1]
	assert.True(t, final.Complete)
	assert.Equal(t, 100, final.Progress)

	var result models.PipelineResult
	require.NoError(t, json.Unmarshal(final.Result, &result))
	assert.Equal(t, 12, result.ProductCount)

	// Terminal event appears exactly once, as the last event
	terminal := 0
	for _, event := range events {
		if event.Complete {
			terminal++
		}
	}
	assert.Equal(t, 1, terminal)
}

func TestSimulatedSourceVisitsEveryStep(t *testing.T) {
	source := NewSimulatedSource(context.Background(), "session-1", 0.001)
	events := collect(source)

	seen := make(map[int]bool)
	for _, event := range events {
		seen[event.Step] = true
	}
	for step := 1; step <= 5; step++ {
		assert.True(t, seen[step], "step %d missing from simulated script", step)
	}
}

func TestSubscriberConsumesLiveStream(t *testing.T) {
	script := []models.ProgressEvent{
		{SessionID: "live-1", Step: 1, StepName: "Parse Catalog", Progress: 20, Message: "Extracted 900 characters"},
		{SessionID: "live-1", Step: 2, StepName: "Extract Images", Progress: 40},
		{SessionID: "live-1", Step: 3, StepName: "Publish Catalog", Progress: 100, Message: "3 products now live!", Complete: true, Result: json.RawMessage(`{"productCount":3,"durationMs":10}`)},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/progress/live-1", r.URL.Path)
		w.Header().Set("Content-Type", "application/x-ndjson")
		enc := json.NewEncoder(w)
		for _, event := range script {
			require.NoError(t, enc.Encode(event))
			w.(http.Flusher).Flush()
		}
	}))
	defer server.Close()

	sub := New(Options{BaseURL: server.URL, Patience: 5 * time.Second})
	go sub.Run(context.Background(), "live-1")

	var last View
	for view := range sub.Updates() {
		last = view
	}

	assert.Equal(t, StateCompleted, sub.State())
	assert.True(t, last.Done)
	assert.False(t, last.Simulated)
	assert.Equal(t, 100, last.Progress)
	assert.Equal(t, "3 products now live!", last.Message)
	assert.JSONEq(t, `{"productCount":3,"durationMs":10}`, string(last.Result))
}

func TestSubscriberFallsBackWhenServerUnreachable(t *testing.T) {
	// Point at a server that is already gone
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	sub := New(Options{BaseURL: baseURL, TimeScale: 0.001})
	done := make(chan struct{})
	go func() {
		sub.Run(context.Background(), "offline-1")
		close(done)
	}()

	for range sub.Updates() {
	}
	<-done

	assert.Equal(t, StateDegraded, sub.State())
	view := sub.Snapshot()
	assert.True(t, view.Done)
	assert.True(t, view.Simulated)
	assert.Equal(t, 100, view.Progress)
}

func TestSubscriberDegradesWhenStreamGoesQuiet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, `{"session_id":"quiet-1","step":1,"progress":10,"complete":false}`)
		w.(http.Flusher).Flush()
		// Go quiet until the client gives up
		<-r.Context().Done()
	}))
	defer server.Close()

	sub := New(Options{BaseURL: server.URL, Patience: 50 * time.Millisecond, TimeScale: 0.001})
	done := make(chan struct{})
	go func() {
		sub.Run(context.Background(), "quiet-1")
		close(done)
	}()

	for range sub.Updates() {
	}
	<-done

	assert.Equal(t, StateDegraded, sub.State())
	view := sub.Snapshot()
	assert.True(t, view.Done)
	assert.True(t, view.Simulated)
	// Progress picked up from the live event and never went backwards
	assert.GreaterOrEqual(t, view.Progress, 10)
}
