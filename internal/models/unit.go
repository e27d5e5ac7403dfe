// -----------------------------------------------------------------------
// Extracted units - immutable records produced by task executors
// -----------------------------------------------------------------------

package models

import "time"

// PatternKind categorizes a mined phrase pattern
type PatternKind string

const (
	PatternCommand    PatternKind = "command"
	PatternQuestion   PatternKind = "question"
	PatternResponse   PatternKind = "response"
	PatternNavigation PatternKind = "navigation"
)

// PhrasePattern is a phrase mined from a fetched page. Attributed to the
// originating job; never mutated, superseded by re-running the job.
type PhrasePattern struct {
	ID           string      `json:"id"`
	JobID        string      `json:"job_id"`
	SourceURL    string      `json:"source_url"`
	SourceDomain string      `json:"source_domain"`
	Text         string      `json:"text"`
	Kind         PatternKind `json:"kind"`
	Category     string      `json:"category"`
	Confidence   float64     `json:"confidence"`
	Embedding    []float32   `json:"-"`
	EmbedModel   string      `json:"embed_model,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Dimension is a width x height x depth triple pulled from a product line
type Dimension struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Depth  float64 `json:"depth,omitempty"`
	Unit   string  `json:"unit"`
}

// Product is a structured record extracted from an uploaded document.
// Page and LineNo attribute it to its position in the source.
type Product struct {
	ID          string      `json:"id"`
	JobID       string      `json:"job_id"`
	Page        int         `json:"page"`
	LineNo      int         `json:"line_no"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	SKU         string      `json:"sku"`
	Price       float64     `json:"price"`
	Currency    string      `json:"currency"`
	Dimensions  []Dimension `json:"dimensions,omitempty"`
	Materials   []string    `json:"materials,omitempty"`
	Colors      []string    `json:"colors,omitempty"`
	NeedsReview bool        `json:"needs_review"`
	Embedding   []float32   `json:"-"`
	EmbedModel  string      `json:"embed_model,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// MailStatus records the outcome of one delivery attempt
type MailStatus string

const (
	MailStatusSent   MailStatus = "sent"
	MailStatusFailed MailStatus = "failed"
	MailStatusTest   MailStatus = "test"
)

// MailRecord is the durable row written for every send attempt,
// regardless of transport outcome.
type MailRecord struct {
	ID        string     `json:"id"`
	JobID     string     `json:"job_id"`
	Recipient string     `json:"recipient"`
	Subject   string     `json:"subject"`
	Status    MailStatus `json:"status"`
	MessageID string     `json:"message_id,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
