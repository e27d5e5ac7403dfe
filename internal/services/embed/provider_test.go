package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPseudoProviderDeterministic(t *testing.T) {
	provider := NewPseudoProvider(1536)
	ctx := context.Background()

	first, err := provider.Embed(ctx, "oak dining table")
	require.NoError(t, err)
	second, err := provider.Embed(ctx, "oak dining table")
	require.NoError(t, err)

	assert.Equal(t, first, second, "same input must yield the same vector")
	assert.Len(t, first, 1536)
}

func TestPseudoProviderUnitLength(t *testing.T) {
	provider := NewPseudoProvider(512)

	vector, err := provider.Embed(context.Background(), "brass bathroom faucet")
	require.NoError(t, err)

	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sumSquares), 1e-4)
}

func TestPseudoProviderDistinguishesInputs(t *testing.T) {
	provider := NewPseudoProvider(64)
	ctx := context.Background()

	a, err := provider.Embed(ctx, "walnut bookshelf")
	require.NoError(t, err)
	b, err := provider.Embed(ctx, "ceramic sink")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Less(t, cosineSimilarity(a, b), 0.99)
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{0, 1, 0}

	assert.InDelta(t, 1.0, cosineSimilarity(a, a), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity(a, b), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity(a, []float32{1, 0}), "dimension mismatch yields zero")
	assert.Equal(t, 0.0, cosineSimilarity(a, []float32{0, 0, 0}), "zero vector yields zero")
}
