// -----------------------------------------------------------------------
// Embedding providers - Gemini-backed and deterministic pseudo
// -----------------------------------------------------------------------

package embed

import (
	"context"
	"crypto/sha512"
	"fmt"
	"math"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/vistaview/conveyor/internal/common"
)

// Provider produces a fixed-dimension vector for a text unit
type Provider interface {
	Name() string
	Embed(ctx context.Context, text string) ([]float32, error)
}

// NewProvider selects the configured provider. Without a Gemini API key
// the deterministic pseudo provider is used, which keeps embedding and
// search fully functional (and reproducible) offline.
func NewProvider(ctx context.Context, config common.EmbedConfig, logger arbor.ILogger) (Provider, error) {
	if config.Provider == "gemini" && config.APIKey != "" {
		return NewGeminiProvider(ctx, config, logger)
	}

	if config.Provider == "gemini" {
		logger.Warn().Msg("No Gemini API key configured, using pseudo embeddings")
	}
	return NewPseudoProvider(config.Dimensions), nil
}

// GeminiProvider generates embeddings through the Gemini API
type GeminiProvider struct {
	client *genai.Client
	config common.EmbedConfig
	logger arbor.ILogger
}

func NewGeminiProvider(ctx context.Context, config common.EmbedConfig, logger arbor.ILogger) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{
		client: client,
		config: config,
		logger: logger,
	}, nil
}

func (p *GeminiProvider) Name() string {
	return p.config.Model
}

func (p *GeminiProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	outputDim := int32(p.config.Dimensions)
	result, err := p.client.Models.EmbedContent(ctx, p.config.Model,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		&genai.EmbedContentConfig{OutputDimensionality: &outputDim},
	)
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}

	if result == nil || len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("no embedding returned from API")
	}
	return result.Embeddings[0].Values, nil
}

// PseudoProvider derives a vector from a SHA-512 digest of the text.
// The same input always yields the same unit-length vector, which keeps
// similarity search reproducible without an external service.
type PseudoProvider struct {
	dimensions int
}

func NewPseudoProvider(dimensions int) *PseudoProvider {
	return &PseudoProvider{dimensions: dimensions}
}

func (p *PseudoProvider) Name() string {
	return "pseudo-sha512"
}

func (p *PseudoProvider) Embed(_ context.Context, text string) ([]float32, error) {
	digest := sha512.Sum512([]byte(text))

	vector := make([]float64, p.dimensions)
	var sumSquares float64

	for i := 0; i < p.dimensions; i++ {
		// Map each digest byte into [-1, 1], cycling through the digest
		v := float64(digest[i%sha512.Size])/255*2 - 1
		vector[i] = v
		sumSquares += v * v
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return nil, fmt.Errorf("degenerate embedding for input")
	}

	out := make([]float32, p.dimensions)
	for i, v := range vector {
		out[i] = float32(v / magnitude)
	}
	return out, nil
}
