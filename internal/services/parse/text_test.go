package parse

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

// writeCatalogPDF builds a small two-page catalog fixture
func writeCatalogPDF(t *testing.T, dir string) string {
	t.Helper()

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(false)
	pdf.SetFont("Helvetica", "", 12)

	pdf.AddPage()
	pdf.Cell(0, 10, "Oak Dining Table SKU: OAK-100 $899.99")
	pdf.AddPage()
	pdf.Cell(0, 10, "Brass Faucet SKU: BF-22 $149.50")

	path := filepath.Join(dir, "catalog.pdf")
	require.NoError(t, pdf.OutputFileAndClose(path))
	return path
}

func TestExtractFilePDF(t *testing.T) {
	extractor := NewTextExtractor(arbor.NewLogger())
	path := writeCatalogPDF(t, t.TempDir())

	text, pages, err := extractor.ExtractFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, pages)
	assert.Contains(t, text, "Oak Dining Table")
	assert.Contains(t, text, "Brass Faucet")
}

func TestExtractFilePlainText(t *testing.T) {
	extractor := NewTextExtractor(arbor.NewLogger())

	path := filepath.Join(t.TempDir(), "catalog.txt")
	content := "Walnut Desk SKU: WD-51 $1,299.00\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	text, pages, err := extractor.ExtractFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, pages)
	assert.Equal(t, content, text)
}

func TestExtractFileMissing(t *testing.T) {
	extractor := NewTextExtractor(arbor.NewLogger())

	_, _, err := extractor.ExtractFile(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestExtractImagesNonPDF(t *testing.T) {
	extractor := NewTextExtractor(arbor.NewLogger())

	path := filepath.Join(t.TempDir(), "catalog.txt")
	require.NoError(t, os.WriteFile(path, []byte("text"), 0o644))

	assert.Equal(t, 0, extractor.ExtractImages(path, t.TempDir()))
}

func TestExtractImagesPDFWithoutImages(t *testing.T) {
	extractor := NewTextExtractor(arbor.NewLogger())
	dir := t.TempDir()
	path := writeCatalogPDF(t, dir)

	// A text-only PDF yields zero images without erroring
	assert.Equal(t, 0, extractor.ExtractImages(path, filepath.Join(dir, "images")))
}
