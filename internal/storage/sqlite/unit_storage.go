package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/vistaview/conveyor/internal/models"
)

// UnitStorage persists extracted units (phrase patterns and products) and
// their embedding vectors.
type UnitStorage struct {
	db     *DB
	logger arbor.ILogger
}

// NewUnitStorage creates a new unit storage instance
func NewUnitStorage(db *DB, logger arbor.ILogger) *UnitStorage {
	return &UnitStorage{
		db:     db,
		logger: logger,
	}
}

// SavePatterns inserts mined phrase patterns, ignoring duplicates by
// (domain, text, kind). Returns the number of rows actually inserted.
func (s *UnitStorage) SavePatterns(ctx context.Context, patterns []*models.PhrasePattern) (int, error) {
	query := `
		INSERT INTO phrase_patterns (
			id, job_id, source_url, source_domain, text, kind, category, confidence, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_domain, text, kind) DO NOTHING
	`

	inserted := 0
	for _, p := range patterns {
		if p.ID == "" {
			p.ID = "pat_" + uuid.New().String()
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = time.Now()
		}

		res, err := s.db.db.ExecContext(ctx, query,
			p.ID, p.JobID, p.SourceURL, p.SourceDomain,
			strings.ToLower(p.Text), string(p.Kind), p.Category, p.Confidence,
			p.CreatedAt.Unix(),
		)
		if err != nil {
			return inserted, fmt.Errorf("failed to save pattern: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	return inserted, nil
}

// SaveProducts inserts extracted products
func (s *UnitStorage) SaveProducts(ctx context.Context, products []*models.Product) error {
	query := `
		INSERT INTO products (
			id, job_id, page, line_no, name, description, category, sku,
			price, currency, dimensions_json, materials_json, colors_json,
			needs_review, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, p := range products {
		if p.ID == "" {
			p.ID = "prod_" + uuid.New().String()
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = time.Now()
		}

		dimensions, err := json.Marshal(p.Dimensions)
		if err != nil {
			return fmt.Errorf("failed to serialize dimensions: %w", err)
		}
		materials, err := json.Marshal(p.Materials)
		if err != nil {
			return fmt.Errorf("failed to serialize materials: %w", err)
		}
		colors, err := json.Marshal(p.Colors)
		if err != nil {
			return fmt.Errorf("failed to serialize colors: %w", err)
		}

		needsReview := 0
		if p.NeedsReview {
			needsReview = 1
		}

		_, err = s.db.db.ExecContext(ctx, query,
			p.ID, p.JobID, p.Page, p.LineNo, p.Name, p.Description,
			p.Category, p.SKU, p.Price, p.Currency,
			string(dimensions), string(materials), string(colors),
			needsReview, p.CreatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to save product: %w", err)
		}
	}

	return nil
}

// GetProductsByJob lists products extracted by one parse job
func (s *UnitStorage) GetProductsByJob(ctx context.Context, jobID string) ([]*models.Product, error) {
	query := `
		SELECT id, job_id, page, line_no, name, description, category, sku,
			price, currency, dimensions_json, materials_json, colors_json,
			needs_review, embed_model, created_at
		FROM products
		WHERE job_id = ?
		ORDER BY page ASC, line_no ASC
	`

	rows, err := s.db.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		var (
			p                                  models.Product
			description, category, embedModel  sql.NullString
			dimensionsJSON, materialsJSON      sql.NullString
			colorsJSON                         sql.NullString
			price                              sql.NullFloat64
			needsReview                        int
			createdAt                          int64
		)

		err := rows.Scan(
			&p.ID, &p.JobID, &p.Page, &p.LineNo, &p.Name, &description,
			&category, &p.SKU, &price, &p.Currency,
			&dimensionsJSON, &materialsJSON, &colorsJSON,
			&needsReview, &embedModel, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}

		p.Description = description.String
		p.Category = category.String
		p.EmbedModel = embedModel.String
		p.Price = price.Float64
		p.NeedsReview = needsReview != 0
		p.CreatedAt = time.Unix(createdAt, 0)

		if dimensionsJSON.Valid && dimensionsJSON.String != "" {
			if err := json.Unmarshal([]byte(dimensionsJSON.String), &p.Dimensions); err != nil {
				s.logger.Warn().Err(err).Str("product_id", p.ID).Msg("Failed to deserialize dimensions")
			}
		}
		if materialsJSON.Valid && materialsJSON.String != "" {
			json.Unmarshal([]byte(materialsJSON.String), &p.Materials)
		}
		if colorsJSON.Valid && colorsJSON.String != "" {
			json.Unmarshal([]byte(colorsJSON.String), &p.Colors)
		}

		products = append(products, &p)
	}

	return products, rows.Err()
}

// embeddableTables guards the dynamic table name used by the embedding
// queries. Anything else is rejected before it reaches SQL.
var embeddableTables = map[string]bool{
	"phrase_patterns": true,
	"products":        true,
}

// SetEmbedding writes a vector onto the referenced row's embedding column
func (s *UnitStorage) SetEmbedding(ctx context.Context, table, id string, vector []float32, model string) error {
	if !embeddableTables[table] {
		return fmt.Errorf("table %q does not support embeddings", table)
	}

	query := fmt.Sprintf("UPDATE %s SET embedding = ?, embed_model = ? WHERE id = ?", table)
	res, err := s.db.db.ExecContext(ctx, query, encodeVector(vector), model, id)
	if err != nil {
		return fmt.Errorf("failed to set embedding: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("embedding target %s/%s not found", table, id)
	}
	return nil
}

// EmbeddedRow is a minimal projection used for similarity ranking
type EmbeddedRow struct {
	ID        string
	Text      string
	Embedding []float32
}

// ListEmbedded returns all rows of a table that carry an embedding.
// Pattern rows expose their text, product rows their name.
func (s *UnitStorage) ListEmbedded(ctx context.Context, table string) ([]*EmbeddedRow, error) {
	if !embeddableTables[table] {
		return nil, fmt.Errorf("table %q does not support embeddings", table)
	}

	textColumn := "text"
	if table == "products" {
		textColumn = "name"
	}

	query := fmt.Sprintf(
		"SELECT id, %s, embedding FROM %s WHERE embedding IS NOT NULL",
		textColumn, table,
	)

	rows, err := s.db.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list embedded rows: %w", err)
	}
	defer rows.Close()

	var result []*EmbeddedRow
	for rows.Next() {
		var row EmbeddedRow
		var blob []byte
		if err := rows.Scan(&row.ID, &row.Text, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan embedded row: %w", err)
		}
		row.Embedding = decodeVector(blob)
		result = append(result, &row)
	}

	return result, rows.Err()
}

// encodeVector serializes a float32 vector as little-endian bytes
func encodeVector(vector []float32) []byte {
	buf := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeVector deserializes a little-endian float32 vector
func decodeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vector
}
