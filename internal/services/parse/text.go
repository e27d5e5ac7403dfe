// -----------------------------------------------------------------------
// Document text extraction
// Uses pdfcpu for Go-native PDF processing
// -----------------------------------------------------------------------

package parse

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"
)

// TextExtractor pulls plain text out of an uploaded document. PDFs go
// through pdfcpu; anything else is treated as plain text.
type TextExtractor struct {
	logger  arbor.ILogger
	tempDir string
}

func NewTextExtractor(logger arbor.ILogger) *TextExtractor {
	return &TextExtractor{
		logger:  logger,
		tempDir: os.TempDir(),
	}
}

// ExtractFile returns the document's text and page count
func (e *TextExtractor) ExtractFile(filePath string) (string, int, error) {
	if strings.EqualFold(filepath.Ext(filePath), ".pdf") {
		return e.extractPDF(filePath)
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read document: %w", err)
	}
	return string(content), 1, nil
}

func (e *TextExtractor) extractPDF(filePath string) (string, int, error) {
	conf := model.NewDefaultConfiguration()

	pdfCtx, err := api.ReadContextFile(filePath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read PDF: %w", err)
	}
	pageCount := pdfCtx.PageCount

	// pdfcpu has no direct text extraction; extract page content
	// streams to files and read them back in page order.
	outDir := filepath.Join(e.tempDir, fmt.Sprintf("parse_pages_%d", os.Getpid()))
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create extraction dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	if err := api.ExtractContentFile(filePath, outDir, nil, conf); err != nil {
		return "", 0, fmt.Errorf("failed to extract PDF content: %w", err)
	}

	// pdfcpu names each extracted stream "<stem>_Content_page_<n>.txt"
	stem := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))

	pageTexts := make(map[int]string)
	files, _ := os.ReadDir(outDir)
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(outDir, file.Name()))
		if err != nil {
			continue
		}

		var pageNum int
		if _, err := fmt.Sscanf(file.Name(), stem+"_Content_page_%d", &pageNum); err == nil {
			pageTexts[pageNum] = string(content)
		} else if _, err := fmt.Sscanf(file.Name(), "Content_page_%d", &pageNum); err == nil {
			pageTexts[pageNum] = string(content)
		} else if _, err := fmt.Sscanf(file.Name(), "page_%d", &pageNum); err == nil {
			pageTexts[pageNum] = string(content)
		}
	}

	var fullText strings.Builder
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		if text, ok := pageTexts[pageNum]; ok {
			if fullText.Len() > 0 {
				fullText.WriteString("\n")
			}
			fullText.WriteString(text)
		}
	}

	e.logger.Debug().
		Str("file", filepath.Base(filePath)).
		Int("pages", pageCount).
		Int("chars", fullText.Len()).
		Msg("Extracted PDF text")

	return fullText.String(), pageCount, nil
}

// ExtractImages exports embedded images from a PDF into destDir and
// returns how many were written. Non-PDFs and extraction failures
// yield zero without failing the parse.
func (e *TextExtractor) ExtractImages(filePath, destDir string) int {
	if !strings.EqualFold(filepath.Ext(filePath), ".pdf") {
		return 0
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to create image dir")
		return 0
	}

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractImagesFile(filePath, destDir, nil, conf); err != nil {
		e.logger.Warn().Err(err).Str("file", filepath.Base(filePath)).Msg("Image extraction failed")
		return 0
	}

	count := 0
	files, _ := os.ReadDir(destDir)
	for _, file := range files {
		if !file.IsDir() {
			count++
		}
	}
	return count
}
