package parse

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractProductsBasicLine(t *testing.T) {
	text := "Oak Dining Table SKU: OAK-100 $899.99 72 x 36 x 30 in, solid oak, walnut finish"

	products := extractProducts("job_1", text, 1, 500)
	require.Len(t, products, 1)

	p := products[0]
	assert.Equal(t, "Oak Dining Table", p.Name)
	assert.Equal(t, "OAK-100", p.SKU)
	assert.Equal(t, 899.99, p.Price)
	assert.Equal(t, "USD", p.Currency)
	assert.Equal(t, "table", p.Category)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 1, p.LineNo)
	assert.True(t, p.NeedsReview)

	require.Len(t, p.Dimensions, 1)
	assert.Equal(t, 72.0, p.Dimensions[0].Width)
	assert.Equal(t, 36.0, p.Dimensions[0].Height)
	assert.Equal(t, 30.0, p.Dimensions[0].Depth)
	assert.Equal(t, "in", p.Dimensions[0].Unit)

	assert.Contains(t, p.Materials, "oak")
	assert.Contains(t, p.Materials, "walnut")
}

func TestExtractProductsCurrencies(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		price    float64
		currency string
	}{
		{"Dollar sign", "Brass Faucet Model: BF-22 $149.50", 149.50, "USD"},
		{"Rupee sign", "Ceramic Sink SKU: CS-9 ₹12,500", 12500, "INR"},
		{"Euro suffix", "Steel Cabinet SKU: SC-3 450.00 EUR", 450.00, "EUR"},
		{"Pound suffix", "Marble Countertop SKU: MC-7 1200.00 GBP", 1200.00, "GBP"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			products := extractProducts("job_1", tt.line, 1, 500)
			require.Len(t, products, 1)
			assert.Equal(t, tt.price, products[0].Price)
			assert.Equal(t, tt.currency, products[0].Currency)
		})
	}
}

func TestExtractProductsSkipsNonProductLines(t *testing.T) {
	text := strings.Join([]string{
		"Catalog 2026",
		"abc", // too short
		"This paragraph describes our company history and has no product tokens.",
		"Walnut Desk SKU: WD-51 $1,299.00",
	}, "\n")

	products := extractProducts("job_1", text, 1, 500)
	require.Len(t, products, 1)
	assert.Equal(t, "Walnut Desk", products[0].Name)
	assert.Equal(t, 1299.0, products[0].Price)
}

func TestExtractProductsGeneratesSKUWhenMissing(t *testing.T) {
	products := extractProducts("job_1", "Velvet Sofa in navy $2,499.00", 1, 500)
	require.Len(t, products, 1)
	assert.True(t, strings.HasPrefix(products[0].SKU, "VV-"), "generated SKU should carry the VV- prefix, got %q", products[0].SKU)
}

func TestExtractProductsShortNameFallsBackToSKU(t *testing.T) {
	products := extractProducts("job_1", "X2 SKU: RUG-88 $59.00 wool rug in red", 1, 500)
	require.Len(t, products, 1)
	assert.Equal(t, "Product RUG-88", products[0].Name)
}

func TestExtractProductsPageAttribution(t *testing.T) {
	var lines []string
	for i := 0; i < 10; i++ {
		lines = append(lines, fmt.Sprintf("Pine Chair %d SKU: PC-%d $85.00", i, i))
	}

	products := extractProducts("job_1", strings.Join(lines, "\n"), 2, 500)
	require.Len(t, products, 10)
	assert.Equal(t, 1, products[0].Page)
	assert.Equal(t, 2, products[9].Page)
}

func TestExtractProductsHonorsCap(t *testing.T) {
	var lines []string
	for i := 0; i < 20; i++ {
		lines = append(lines, fmt.Sprintf("Glass Lamp %d SKU: GL-%d $40.00", i, i))
	}

	products := extractProducts("job_1", strings.Join(lines, "\n"), 1, 5)
	assert.Len(t, products, 5)
}

func TestExtractProductsEmptyText(t *testing.T) {
	assert.Empty(t, extractProducts("job_1", "", 1, 500))
	assert.Empty(t, extractProducts("job_1", "\n\n\n", 3, 500))
}
