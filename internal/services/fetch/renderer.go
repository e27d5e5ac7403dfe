// -----------------------------------------------------------------------
// Headless page renderer - full dynamic render via ChromeDP, used as the
// primary fetch path before falling back to a static request
// -----------------------------------------------------------------------

package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/vistaview/conveyor/internal/common"
)

// Renderer drives a headless Chrome instance for JS-heavy pages
type Renderer struct {
	config common.FetchConfig
	logger arbor.ILogger
}

func NewRenderer(config common.FetchConfig, logger arbor.ILogger) *Renderer {
	return &Renderer{
		config: config,
		logger: logger,
	}
}

// Render navigates to the target and returns the fully rendered DOM.
// The whole attempt is bounded by the configured render timeout; the
// caller falls back to a static fetch on any error.
func (r *Renderer) Render(ctx context.Context, targetURL string) (html string, title string, err error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.UserAgent(r.config.UserAgent),
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
	)

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocatorCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx,
		chromedp.WithLogf(func(s string, i ...interface{}) {
			r.logger.Debug().Msgf("chromedp: "+s, i...)
		}),
	)
	defer browserCancel()

	renderCtx, renderCancel := context.WithTimeout(browserCtx, r.config.RenderTimeout)
	defer renderCancel()

	start := time.Now()

	err = chromedp.Run(renderCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{
			"Accept-Language": "en-US,en;q=0.9",
		}),
		chromedp.Navigate(targetURL),
		chromedp.WaitReady("body"),
		chromedp.OuterHTML("html", &html),
		chromedp.Title(&title),
	)
	if err != nil {
		return "", "", fmt.Errorf("render failed for %s: %w", targetURL, err)
	}

	r.logger.Debug().
		Str("url", targetURL).
		Int("content_size", len(html)).
		Dur("render_time", time.Since(start)).
		Msg("Page rendered")

	return html, title, nil
}
