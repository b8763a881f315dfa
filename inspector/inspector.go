package inspector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// maxPageSize caps how much HTML is read from a fetched page.
const maxPageSize = 5 << 20

// Page identifies a loaded page. HTML is the already-rendered document when
// the caller has it; otherwise inspectors load URL themselves.
type Page struct {
	URL  string
	HTML string
}

// HTTPInspector counts third-party origins in static HTML. It uses the
// page's HTML when supplied and fetches the URL otherwise.
type HTTPInspector struct {
	client *http.Client
}

// NewHTTPInspector wires an HTTP client; a nil client gets a 10s timeout
// and stops after three redirects.
func NewHTTPInspector(client *http.Client) *HTTPInspector {
	if client == nil {
		client = &http.Client{
			Timeout: 10 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		}
	}
	return &HTTPInspector{client: client}
}

// Inspect returns the full third-party summary of page.
func (i *HTTPInspector) Inspect(ctx context.Context, page Page) (Summary, error) {
	if page.HTML != "" {
		return countHTML(page.URL, page.HTML)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, page.URL, nil)
	if err != nil {
		return Summary{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := i.client.Do(req)
	if err != nil {
		return Summary{}, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Summary{}, fmt.Errorf("fetch page: unexpected status %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return Summary{}, fmt.Errorf("parse document: %w", err)
	}
	// Relative references resolve against where the page actually landed.
	return CountThirdParty(resp.Request.URL.String(), doc)
}

// CountThirdPartyOrigins returns the number of distinct third-party origins of page.
func (i *HTTPInspector) CountThirdPartyOrigins(ctx context.Context, page Page) (int, error) {
	summary, err := i.Inspect(ctx, page)
	if err != nil {
		return 0, err
	}
	return summary.Count(), nil
}

func countHTML(pageURL, html string) (Summary, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Summary{}, fmt.Errorf("parse document: %w", err)
	}
	return CountThirdParty(pageURL, doc)
}
