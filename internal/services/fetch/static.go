// -----------------------------------------------------------------------
// Static page fetcher - plain HTTP fallback used when the headless
// render fails
// -----------------------------------------------------------------------

package fetch

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/gocolly/colly/v2"
	"github.com/ternarybob/arbor"

	"github.com/vistaview/conveyor/internal/common"
)

// StaticFetcher retrieves a single page over plain HTTP
type StaticFetcher struct {
	config common.FetchConfig
	logger arbor.ILogger
}

func NewStaticFetcher(config common.FetchConfig, logger arbor.ILogger) *StaticFetcher {
	return &StaticFetcher{
		config: config,
		logger: logger,
	}
}

// Fetch retrieves the raw HTML for one URL. No link following happens
// here; child pages are discovered by the executor and enqueued as
// their own jobs.
func (f *StaticFetcher) Fetch(ctx context.Context, targetURL string) (string, error) {
	c := colly.NewCollector(
		colly.UserAgent(f.config.UserAgent),
		colly.MaxDepth(1),
		colly.IgnoreRobotsTxt(),
	)
	c.MaxBodySize = f.config.MaxBodySize
	c.SetRequestTimeout(f.config.RequestTimeout)

	var body string
	var fetchErr error
	var cancelled atomic.Bool

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			cancelled.Store(true)
			r.Abort()
			return
		}
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")

		f.logger.Debug().Str("url", r.URL.String()).Msg("Static fetch")
	})

	c.OnResponse(func(r *colly.Response) {
		body = string(r.Body)
	})

	c.OnError(func(r *colly.Response, err error) {
		statusCode := 0
		if r != nil {
			statusCode = r.StatusCode
		}
		fetchErr = fmt.Errorf("static fetch failed (status %d): %w", statusCode, err)
	})

	if err := c.Visit(targetURL); err != nil {
		return "", fmt.Errorf("static fetch failed: %w", err)
	}
	c.Wait()

	if cancelled.Load() {
		return "", ctx.Err()
	}
	if fetchErr != nil {
		return "", fetchErr
	}
	if body == "" {
		return "", fmt.Errorf("static fetch returned empty body for %s", targetURL)
	}

	return body, nil
}
