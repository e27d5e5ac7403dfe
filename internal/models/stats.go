package models

import "time"

// LearningStats is the process-wide daily counter row. Counters are only
// incremented, each once per completed unit of work.
type LearningStats struct {
	StatDate          string    `json:"stat_date"` // YYYY-MM-DD
	PagesFetched      int64     `json:"pages_fetched"`
	PatternsLearned   int64     `json:"patterns_learned"`
	DocumentsParsed   int64     `json:"documents_parsed"`
	ProductsExtracted int64     `json:"products_extracted"`
	EmbeddingsCreated int64     `json:"embeddings_created"`
	MailsSent         int64     `json:"mails_sent"`
	UpdatedAt         time.Time `json:"updated_at"`
}
