package subscriber

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/vistaview/conveyor/internal/common"
	"github.com/vistaview/conveyor/internal/models"
)

// Source is a stream of progress events for one session. Events ends
// when the stream is exhausted or the source is closed.
type Source interface {
	Events() <-chan models.ProgressEvent
	Close()
}

// StreamSource consumes the server's newline-delimited JSON progress
// stream over HTTP.
type StreamSource struct {
	events chan models.ProgressEvent
	cancel context.CancelFunc
}

// OpenStream connects to the progress endpoint for a session and starts
// decoding events. It fails fast when the endpoint is unreachable so the
// caller can fall back to simulation.
func OpenStream(ctx context.Context, client *http.Client, baseURL, sessionID string) (*StreamSource, error) {
	ctx, cancel := context.WithCancel(ctx)

	url := fmt.Sprintf("%s/api/progress/%s", baseURL, sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build progress request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("connect progress stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("progress stream returned status %d", resp.StatusCode)
	}

	s := &StreamSource{
		events: make(chan models.ProgressEvent, 16),
		cancel: cancel,
	}

	go func() {
		defer close(s.events)
		defer resp.Body.Close()

		log := common.GetLogger()
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var event models.ProgressEvent
			if err := json.Unmarshal(line, &event); err != nil {
				log.Warn().Err(err).Msg("Skipping malformed progress event")
				continue
			}

			select {
			case s.events <- event:
			case <-ctx.Done():
				return
			}

			if event.Complete {
				return
			}
		}
	}()

	return s, nil
}

func (s *StreamSource) Events() <-chan models.ProgressEvent { return s.events }

func (s *StreamSource) Close() { s.cancel() }

// simStep mirrors the demo pipeline the UI runs when no backend stream
// is available.
type simStep struct {
	step     int
	message  string
	delay    time.Duration
	progress int
}

var simScript = []simStep{
	{1, "Parsing your catalog... found product data!", 2000 * time.Millisecond, 20},
	{2, "Extracting images from PDF pages!", 2500 * time.Millisecond, 40},
	{3, "Enhancing images for web display!", 2000 * time.Millisecond, 60},
	{4, "Saving products to database!", 2500 * time.Millisecond, 80},
	{5, "Vectorizing and publishing to catalog!", 2000 * time.Millisecond, 100},
}

// simResult is the placeholder summary attached to the terminal event.
var simResult = models.PipelineResult{ProductCount: 12}

// SimulatedSource replays a fixed processing script with interpolated
// progress ticks, so the experience is identical on every run.
type SimulatedSource struct {
	events chan models.ProgressEvent
	cancel context.CancelFunc
}

// NewSimulatedSource starts the scripted playback for a session.
// timeScale compresses the script's delays; pass 1.0 for real-time
// pacing or a small value to run the script near-instantly.
func NewSimulatedSource(ctx context.Context, sessionID string, timeScale float64) *SimulatedSource {
	ctx, cancel := context.WithCancel(ctx)

	s := &SimulatedSource{
		events: make(chan models.ProgressEvent, 16),
		cancel: cancel,
	}

	go s.run(ctx, sessionID, timeScale)
	return s
}

func (s *SimulatedSource) run(ctx context.Context, sessionID string, timeScale float64) {
	defer close(s.events)

	emit := func(event models.ProgressEvent) bool {
		select {
		case s.events <- event:
			return true
		case <-ctx.Done():
			return false
		}
	}

	previous := 0
	for _, step := range simScript {
		tick := time.Duration(float64(step.delay) / 10 * timeScale)

		// Progress animates toward the step target in increments of two.
		for p := previous; p <= step.progress; p += 2 {
			if !emit(models.ProgressEvent{
				SessionID: sessionID,
				Step:      step.step,
				Progress:  p,
				Message:   step.message,
			}) {
				return
			}

			select {
			case <-time.After(tick):
			case <-ctx.Done():
				return
			}
		}
		previous = step.progress
	}

	result, _ := json.Marshal(simResult)
	emit(models.ProgressEvent{
		SessionID: sessionID,
		Step:      len(simScript),
		Progress:  100,
		Message:   "Demo complete! Check your product catalog.",
		Complete:  true,
		Result:    result,
	})
}

func (s *SimulatedSource) Events() <-chan models.ProgressEvent { return s.events }

func (s *SimulatedSource) Close() { s.cancel() }
