// -----------------------------------------------------------------------
// Fetch-extract executor - renders a page, mines voice phrases from its
// text, and enqueues same-host child pages
// -----------------------------------------------------------------------

package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/vistaview/conveyor/internal/common"
	"github.com/vistaview/conveyor/internal/models"
	"github.com/vistaview/conveyor/internal/storage/sqlite"
)

// childPriority ranks discovered child pages below caller-submitted
// seeds so a deep crawl never starves fresh submissions.
const childPriority = 3

// previewLen bounds the markdown snapshot carried in the job result
const previewLen = 500

var whitespaceRe = regexp.MustCompile(`\s+`)

// Service is the fetch-family task executor
type Service struct {
	config   common.FetchConfig
	queueCfg common.QueueConfig
	logger   arbor.ILogger
	renderer *Renderer
	static   *StaticFetcher
	jobs     *sqlite.JobStorage
	units    *sqlite.UnitStorage
	stats    *sqlite.StatsStorage
}

func NewService(config common.FetchConfig, queueCfg common.QueueConfig, logger arbor.ILogger,
	jobs *sqlite.JobStorage, units *sqlite.UnitStorage, stats *sqlite.StatsStorage) *Service {
	return &Service{
		config:   config,
		queueCfg: queueCfg,
		logger:   logger,
		renderer: NewRenderer(config, logger),
		static:   NewStaticFetcher(config, logger),
		jobs:     jobs,
		units:    units,
		stats:    stats,
	}
}

// Family implements the task executor contract
func (s *Service) Family() models.JobFamily {
	return models.FamilyFetch
}

// fetchSummary is the result blob written onto a completed fetch job
type fetchSummary struct {
	URL              string `json:"url"`
	Title            string `json:"title,omitempty"`
	PatternsFound    int    `json:"patterns_found"`
	PatternsStored   int    `json:"patterns_stored"`
	LinksDiscovered  int    `json:"links_discovered"`
	ChildrenEnqueued int    `json:"children_enqueued"`
	ContentChars     int    `json:"content_chars"`
	ContentPreview   string `json:"content_preview,omitempty"`
	Static           bool   `json:"static_fallback,omitempty"`
}

// Execute fetches the target page, mines phrase patterns from its text,
// and fans out to same-host child pages while depth allows.
func (s *Service) Execute(ctx context.Context, job *models.Job) (json.RawMessage, error) {
	var payload models.FetchPayload
	if err := job.DecodePayload(&payload); err != nil {
		return nil, err
	}

	maxDepth := payload.MaxDepth
	if maxDepth <= 0 {
		maxDepth = s.config.MaxDepth
	}

	target, err := url.Parse(payload.URL)
	if err != nil || target.Host == "" {
		return nil, fmt.Errorf("invalid fetch target %q", payload.URL)
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("url", payload.URL).
		Int("depth", payload.Depth).
		Msg("Fetching page")

	// Dynamic render first; any failure drops to the static path.
	html, title, err := s.renderer.Render(ctx, payload.URL)
	usedStatic := false
	if err != nil {
		s.logger.Warn().Err(err).Str("url", payload.URL).Msg("Render failed, falling back to static fetch")
		html, err = s.static.Fetch(ctx, payload.URL)
		if err != nil {
			return nil, err
		}
		usedStatic = true
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page HTML: %w", err)
	}

	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	doc.Find("script, style, noscript, iframe").Remove()
	text := whitespaceRe.ReplaceAllString(doc.Find("body").Text(), " ")
	text = strings.TrimSpace(text)

	preview := s.markdownPreview(doc, payload.URL)

	mined := minePatterns(text, s.config.MaxPatterns)
	stored, err := s.savePatterns(ctx, job, payload.URL, target, mined)
	if err != nil {
		return nil, err
	}

	links := s.extractLinks(doc, target)
	enqueued := 0
	if payload.Depth < maxDepth {
		enqueued = s.enqueueChildren(ctx, payload, maxDepth, target, links)
	}

	if err := s.stats.Increment(ctx, "pages_fetched", 1); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to increment pages_fetched")
	}
	if stored > 0 {
		if err := s.stats.Increment(ctx, "patterns_learned", stored); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to increment patterns_learned")
		}
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("url", payload.URL).
		Int("patterns", len(mined)).
		Int("links", len(links)).
		Int("children", enqueued).
		Msg("Page processed")

	return json.Marshal(fetchSummary{
		URL:              payload.URL,
		Title:            title,
		PatternsFound:    len(mined),
		PatternsStored:   stored,
		LinksDiscovered:  len(links),
		ChildrenEnqueued: enqueued,
		ContentChars:     len(text),
		ContentPreview:   preview,
		Static:           usedStatic,
	})
}

// markdownPreview converts the cleaned body to markdown and truncates
// it, giving the job result a readable content snapshot.
func (s *Service) markdownPreview(doc *goquery.Document, baseURL string) string {
	bodyHTML, err := doc.Find("body").Html()
	if err != nil || bodyHTML == "" {
		return ""
	}

	converter := md.NewConverter(baseURL, true, nil)
	markdown, err := converter.ConvertString(bodyHTML)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Markdown conversion failed, skipping preview")
		return ""
	}

	markdown = strings.TrimSpace(markdown)
	if len(markdown) > previewLen {
		markdown = markdown[:previewLen]
	}
	return markdown
}

func (s *Service) savePatterns(ctx context.Context, job *models.Job, sourceURL string, target *url.URL, mined []minedPattern) (int, error) {
	if len(mined) == 0 {
		return 0, nil
	}

	domain := strings.TrimPrefix(strings.ToLower(target.Host), "www.")
	now := time.Now()

	patterns := make([]*models.PhrasePattern, 0, len(mined))
	for _, m := range mined {
		patterns = append(patterns, &models.PhrasePattern{
			JobID:        job.ID,
			SourceURL:    sourceURL,
			SourceDomain: domain,
			Text:         m.Text,
			Kind:         m.Kind,
			Category:     m.Category,
			Confidence:   patternConfidence,
			CreatedAt:    now,
		})
	}

	stored, err := s.units.SavePatterns(ctx, patterns)
	if err != nil {
		return 0, fmt.Errorf("failed to save patterns: %w", err)
	}
	return stored, nil
}

// extractLinks enumerates absolute http(s) outbound links, de-duplicated
func (s *Service) extractLinks(doc *goquery.Document, base *url.URL) []string {
	seen := make(map[string]bool)
	links := []string{}

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if href == "" ||
			strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") ||
			strings.HasPrefix(href, "mailto:") ||
			strings.HasPrefix(href, "tel:") {
			return
		}

		parsed, err := url.Parse(href)
		if err != nil {
			return
		}

		resolved := base.ResolveReference(parsed)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		resolved.Fragment = ""
		resolved.Host = strings.ToLower(resolved.Host)

		link := resolved.String()
		if !seen[link] {
			seen[link] = true
			links = append(links, link)
		}
	})

	return links
}

// enqueueChildren queues same-host links as new fetch jobs one level
// deeper. Enqueue is idempotent on the target's natural key, so pages
// already queued or running are skipped silently.
func (s *Service) enqueueChildren(ctx context.Context, payload models.FetchPayload, maxDepth int, target *url.URL, links []string) int {
	enqueued := 0

	for _, link := range links {
		if enqueued >= s.config.MaxChildLinks {
			break
		}

		childURL, err := url.Parse(link)
		if err != nil || !strings.EqualFold(childURL.Host, target.Host) {
			continue
		}

		childPayload := models.FetchPayload{
			URL:       link,
			Depth:     payload.Depth + 1,
			MaxDepth:  maxDepth,
			ParentURL: payload.URL,
		}

		job, err := models.NewJob(models.FamilyFetch, &childPayload, s.queueCfg.DefaultMaxAttempts, childPriority)
		if err != nil {
			s.logger.Warn().Err(err).Str("url", link).Msg("Failed to build child job")
			continue
		}
		job.NaturalKey = childPayload.NaturalKey()
		job.Depth = childPayload.Depth

		if _, err := s.jobs.Enqueue(ctx, job); err != nil {
			s.logger.Warn().Err(err).Str("url", link).Msg("Failed to enqueue child page")
			continue
		}
		enqueued++
	}

	return enqueued
}
