// -----------------------------------------------------------------------
// ProgressEvent - one increment of a session's multi-stage progress
// -----------------------------------------------------------------------

package models

import "encoding/json"

// ProgressEvent is the wire shape pushed to a session's progress
// subscriber. Within one session progress is monotonically non-decreasing,
// step only moves forward, and exactly one event carries Complete=true -
// always the last.
type ProgressEvent struct {
	SessionID string          `json:"session_id"`
	Step      int             `json:"step"`
	StepName  string          `json:"step_name,omitempty"`
	Progress  int             `json:"progress"` // 0-100
	Message   string          `json:"message,omitempty"`
	Complete  bool            `json:"complete"`
	Result    json.RawMessage `json:"result,omitempty"`
}

// PipelineResult is the terminal event summary for the document pipeline
type PipelineResult struct {
	ProductCount int   `json:"productCount"`
	DurationMs   int64 `json:"durationMs"`
}
