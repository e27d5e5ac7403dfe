// -----------------------------------------------------------------------
// Product extraction - line scanner over document text
// -----------------------------------------------------------------------

package parse

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/vistaview/conveyor/internal/models"
)

var (
	priceRe      = regexp.MustCompile(`\$[\d,]+\.?\d*|\d+\.\d{2}\s*(USD|INR|EUR|GBP)|₹[\d,]+`)
	skuRe        = regexp.MustCompile(`(?i)(?:SKU|Item\s*#|Product\s*Code|Part\s*#|Model)\s*:?\s*([A-Z0-9\-]+)`)
	dimensionsRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*[xX×]\s*(\d+(?:\.\d+)?)\s*(?:[xX×]\s*(\d+(?:\.\d+)?))?\s*(mm|cm|m|in|inches|ft|feet)?`)
	materialsRe  = regexp.MustCompile(`(?i)\b(wood|oak|maple|pine|walnut|teak|bamboo|metal|steel|aluminum|brass|copper|iron|chrome|stainless|plastic|acrylic|glass|tempered|ceramic|porcelain|marble|granite|quartz|concrete|leather|fabric|cotton|linen|velvet|polyester|vinyl|rubber|silicone)\b`)
	colorsRe     = regexp.MustCompile(`(?i)\b(white|black|gray|grey|brown|beige|tan|cream|ivory|red|blue|green|yellow|orange|purple|pink|gold|silver|bronze|copper|navy|teal|coral|turquoise|maroon|burgundy|olive|charcoal)\b`)
	categoriesRe = regexp.MustCompile(`(?i)\b(faucet|sink|toilet|shower|bathtub|vanity|cabinet|countertop|flooring|tile|lighting|fixture|door|window|hardware|handle|knob|hinge|appliance|refrigerator|oven|dishwasher|washer|dryer|furniture|sofa|chair|table|desk|bed|mattress|paint|wallpaper|carpet|rug)\b`)
	nameSplitRe  = regexp.MustCompile(`(?i)\$|SKU|Item`)
	nonNumericRe = regexp.MustCompile(`[^0-9.]`)
)

// extractProducts scans document text line by line for price-like or
// SKU-like tokens and pulls a structured product out of each qualifying
// line. Page numbers are attributed by even line distribution since the
// extracted text carries no page boundaries itself.
func extractProducts(jobID, text string, totalPages, max int) []*models.Product {
	products := []*models.Product{}

	lines := []string{}
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return products
	}

	if totalPages < 1 {
		totalPages = 1
	}
	linesPerPage := (len(lines) + totalPages - 1) / totalPages
	if linesPerPage < 1 {
		linesPerPage = 1
	}

	now := time.Now()

	for i, raw := range lines {
		if len(products) >= max {
			break
		}

		line := strings.TrimSpace(raw)
		if len(line) < 5 {
			continue
		}
		if !priceRe.MatchString(line) && !skuRe.MatchString(line) {
			continue
		}

		page := (i / linesPerPage) + 1

		price, currency := extractPrice(line)
		sku := extractSKU(line, len(products))
		dimensions := extractDimensions(line)

		category := "general"
		if match := categoriesRe.FindString(line); match != "" {
			category = strings.ToLower(match)
		}

		name := strings.TrimSpace(nameSplitRe.Split(line, 2)[0])
		if len(name) < 3 {
			name = "Product " + sku
		}
		name = truncate(name, 200)

		products = append(products, &models.Product{
			JobID:       jobID,
			Page:        page,
			LineNo:      i + 1,
			Name:        name,
			Description: truncate(line, 500),
			Category:    category,
			SKU:         sku,
			Price:       price,
			Currency:    currency,
			Dimensions:  dimensions,
			Materials:   uniqueLower(materialsRe.FindAllString(line, -1)),
			Colors:      uniqueLower(colorsRe.FindAllString(line, -1)),
			NeedsReview: true,
			CreatedAt:   now,
		})
	}

	return products
}

func extractPrice(line string) (float64, string) {
	match := priceRe.FindString(line)
	if match == "" {
		return 0, "USD"
	}

	currency := "USD"
	switch {
	case strings.Contains(match, "₹"):
		currency = "INR"
	case strings.Contains(match, "EUR"):
		currency = "EUR"
	case strings.Contains(match, "GBP"):
		currency = "GBP"
	}

	price, _ := strconv.ParseFloat(nonNumericRe.ReplaceAllString(match, ""), 64)
	return price, currency
}

// extractSKU pulls a detected SKU or generates a stable-format one so
// every product row carries an identifier.
func extractSKU(line string, ordinal int) string {
	if m := skuRe.FindStringSubmatch(line); m != nil {
		return m[1]
	}
	return "VV-" + strconv.FormatInt(time.Now().UnixMilli(), 10) + "-" + strconv.Itoa(ordinal)
}

func extractDimensions(line string) []models.Dimension {
	var dimensions []models.Dimension

	for _, m := range dimensionsRe.FindAllStringSubmatch(line, -1) {
		width, _ := strconv.ParseFloat(m[1], 64)
		height, _ := strconv.ParseFloat(m[2], 64)

		dim := models.Dimension{
			Width:  width,
			Height: height,
			Unit:   "in",
		}
		if m[3] != "" {
			dim.Depth, _ = strconv.ParseFloat(m[3], 64)
		}
		if m[4] != "" {
			dim.Unit = m[4]
		}
		dimensions = append(dimensions, dim)
	}

	return dimensions
}

func uniqueLower(matches []string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, m := range matches {
		key := strings.ToLower(m)
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	return out
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
