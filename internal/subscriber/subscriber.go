package subscriber

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/vistaview/conveyor/internal/common"
	"github.com/vistaview/conveyor/internal/models"
)

// State is the subscriber lifecycle.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateStreaming  State = "streaming"
	StateCompleted  State = "completed"
	StateDegraded   State = "degraded"
)

// View is the single rendering model. Live and simulated events both
// feed it, so a consumer never branches on where an update came from.
type View struct {
	Step      int             `json:"step"`
	StepName  string          `json:"stepName,omitempty"`
	Progress  int             `json:"progress"`
	Message   string          `json:"message"`
	Done      bool            `json:"done"`
	Simulated bool            `json:"simulated"`
	Result    json.RawMessage `json:"result,omitempty"`
}

// Options configures a Subscriber.
type Options struct {
	BaseURL string
	Client  *http.Client

	// Patience is how long to wait for the next live event before
	// degrading to the simulated script.
	Patience time.Duration

	// TimeScale compresses simulated playback. Zero means real time.
	TimeScale float64
}

// Subscriber follows one session's progress, preferring the live stream
// and falling back to deterministic simulation when the stream cannot
// be reached or goes quiet.
type Subscriber struct {
	opts    Options
	mu      sync.Mutex
	state   State
	view    View
	updates chan View
}

func New(opts Options) *Subscriber {
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	if opts.Patience <= 0 {
		opts.Patience = 8 * time.Second
	}
	if opts.TimeScale <= 0 {
		opts.TimeScale = 1.0
	}
	return &Subscriber{
		opts:    opts,
		state:   StateIdle,
		updates: make(chan View, 32),
	}
}

// Updates delivers every view change. The channel closes once the
// subscriber reaches a final state.
func (s *Subscriber) Updates() <-chan View { return s.updates }

// State returns the current lifecycle state.
func (s *Subscriber) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns the latest view.
func (s *Subscriber) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Run follows the session until a terminal event or context cancel.
// It blocks; callers usually run it in a goroutine and consume Updates.
func (s *Subscriber) Run(ctx context.Context, sessionID string) {
	defer close(s.updates)

	log := common.GetLogger()
	s.setState(StateConnecting)

	source, err := OpenStream(ctx, s.opts.Client, s.opts.BaseURL, sessionID)
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("Progress stream unavailable, running simulated processing")
		s.runSimulated(ctx, sessionID)
		return
	}
	defer source.Close()

	s.setState(StateStreaming)

	patience := time.NewTimer(s.opts.Patience)
	defer patience.Stop()

	for {
		select {
		case event, ok := <-source.Events():
			if !ok {
				// Stream ended without a terminal event.
				log.Warn().Str("session_id", sessionID).Msg("Progress stream ended early, running simulated processing")
				source.Close()
				s.runSimulated(ctx, sessionID)
				return
			}

			s.apply(event, false)
			if event.Complete {
				s.setState(StateCompleted)
				return
			}

			if !patience.Stop() {
				<-patience.C
			}
			patience.Reset(s.opts.Patience)

		case <-patience.C:
			log.Warn().Str("session_id", sessionID).Dur("patience", s.opts.Patience).Msg("Progress stream went quiet, running simulated processing")
			source.Close()
			s.runSimulated(ctx, sessionID)
			return

		case <-ctx.Done():
			return
		}
	}
}

func (s *Subscriber) runSimulated(ctx context.Context, sessionID string) {
	s.setState(StateDegraded)

	sim := NewSimulatedSource(ctx, sessionID, s.opts.TimeScale)
	defer sim.Close()

	for event := range sim.Events() {
		s.apply(event, true)
	}
}

// apply folds an event into the view. Progress never moves backwards,
// matching what the server-side publisher guarantees for live streams.
func (s *Subscriber) apply(event models.ProgressEvent, simulated bool) {
	s.mu.Lock()

	if event.Step > s.view.Step {
		s.view.Step = event.Step
	}
	if event.Progress > s.view.Progress {
		s.view.Progress = event.Progress
	}
	if event.StepName != "" {
		s.view.StepName = event.StepName
	}
	if event.Message != "" {
		s.view.Message = event.Message
	}
	if event.Complete {
		s.view.Done = true
		s.view.Result = event.Result
	}
	s.view.Simulated = simulated

	view := s.view
	s.mu.Unlock()

	select {
	case s.updates <- view:
	default:
	}
}

func (s *Subscriber) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}
