package inspector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"
)

// BrowserInspector renders pages in headless Chrome so resources injected
// by JavaScript are counted too.
type BrowserInspector struct {
	chromePath string
	settle     time.Duration
	timeout    time.Duration
	logger     *slog.Logger
}

// NewBrowserInspector creates an inspector. chromePath may be empty to use
// the Chrome found on PATH.
func NewBrowserInspector(chromePath string, logger *slog.Logger) *BrowserInspector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &BrowserInspector{
		chromePath: chromePath,
		settle:     2 * time.Second,
		timeout:    15 * time.Second,
		logger:     logger,
	}
}

// Inspect renders page and returns its third-party summary. Supplied HTML
// is counted directly without starting a browser.
func (b *BrowserInspector) Inspect(ctx context.Context, page Page) (Summary, error) {
	if page.HTML != "" {
		return countHTML(page.URL, page.HTML)
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.UserAgent(userAgent),
	)
	if b.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(b.chromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		b.logger.Debug(fmt.Sprintf(format, args...))
	}))
	defer browserCancel()

	var (
		html     string
		finalURL string
	)
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(page.URL),
		chromedp.WaitReady("body"),
		chromedp.Sleep(b.settle),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return Summary{}, fmt.Errorf("render page: %w", err)
	}
	if finalURL == "" {
		finalURL = page.URL
	}

	return countHTML(finalURL, html)
}

// CountThirdPartyOrigins returns the number of distinct third-party origins of page.
func (b *BrowserInspector) CountThirdPartyOrigins(ctx context.Context, page Page) (int, error) {
	summary, err := b.Inspect(ctx, page)
	if err != nil {
		return 0, err
	}
	return summary.Count(), nil
}
