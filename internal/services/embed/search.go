// -----------------------------------------------------------------------
// Vector similarity search over stored embeddings
// -----------------------------------------------------------------------

package embed

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// defaultSearchLimit caps results when the caller omits a limit
const defaultSearchLimit = 10

// SearchResult is one ranked row from a similarity query
type SearchResult struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
}

// Search embeds the query and ranks stored vectors in the target table
// by cosine similarity, returning rows above the minimum threshold.
func (s *Service) Search(ctx context.Context, table, query string, limit int, minSimilarity float64) ([]SearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("search query is empty")
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if minSimilarity <= 0 {
		minSimilarity = s.config.MinSimilarity
	}

	queryVector, _, err := s.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	rows, err := s.units.ListEmbedded(ctx, table)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(rows))
	for _, row := range rows {
		similarity := cosineSimilarity(queryVector, row.Embedding)
		if similarity < minSimilarity {
			continue
		}
		results = append(results, SearchResult{
			ID:         row.ID,
			Text:       row.Text,
			Similarity: similarity,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// cosineSimilarity returns the cosine of the angle between two vectors,
// or 0 when the dimensions disagree or either vector is zero.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
