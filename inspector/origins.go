package inspector

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// resourceSelectors lists the elements that can load an external resource,
// keyed by resource type, with the attribute that carries the URL.
var resourceSelectors = []struct {
	kind     string
	selector string
	attr     string
}{
	{"scripts", "script[src]", "src"},
	{"images", "img[src]", "src"},
	{"stylesheets", `link[rel="stylesheet"][href]`, "href"},
	{"links", "a[href]", "href"},
	{"iframes", "iframe[src]", "src"},
	{"videos", "video[src], video source[src]", "src"},
	{"audio", "audio[src], audio source[src]", "src"},
	{"objects", "object[data]", "data"},
	{"embeds", "embed[src]", "src"},
	{"forms", "form[action]", "action"},
	{"preload", `link[rel="preload"][href], link[rel="prefetch"][href]`, "href"},
}

// Origin is one third-party host referenced by a page.
type Origin struct {
	Host      string   `json:"host"`
	Resources int      `json:"resources"`
	Types     []string `json:"types"`
}

// Summary is the result of inspecting a page's resources.
type Summary struct {
	PageHost   string   `json:"page_host"`
	ThirdParty []Origin `json:"third_party"`
}

// Count is the number of distinct third-party origins.
func (s Summary) Count() int {
	return len(s.ThirdParty)
}

// CountThirdParty walks doc and collects the distinct hosts, other than the
// page's own, that its resources are loaded from. Hosts related to the page
// host by subdomain in either direction are first-party.
func CountThirdParty(pageURL string, doc *goquery.Document) (Summary, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return Summary{}, fmt.Errorf("parse page url: %w", err)
	}
	pageHost := strings.ToLower(base.Hostname())
	if pageHost == "" {
		return Summary{}, fmt.Errorf("page url %q has no host", pageURL)
	}

	origins := map[string]*Origin{}
	types := map[string]map[string]struct{}{}

	for _, rs := range resourceSelectors {
		doc.Find(rs.selector).Each(func(_ int, sel *goquery.Selection) {
			raw, ok := sel.Attr(rs.attr)
			if !ok {
				return
			}
			host := resolveHost(base, raw)
			if host == "" || IsFirstParty(pageHost, host) {
				return
			}

			o, ok := origins[host]
			if !ok {
				o = &Origin{Host: host}
				origins[host] = o
				types[host] = map[string]struct{}{}
			}
			o.Resources++
			types[host][rs.kind] = struct{}{}
		})
	}

	summary := Summary{PageHost: pageHost, ThirdParty: make([]Origin, 0, len(origins))}
	for host, o := range origins {
		for kind := range types[host] {
			o.Types = append(o.Types, kind)
		}
		sort.Strings(o.Types)
		summary.ThirdParty = append(summary.ThirdParty, *o)
	}
	sort.Slice(summary.ThirdParty, func(i, j int) bool {
		a, b := summary.ThirdParty[i], summary.ThirdParty[j]
		if a.Resources != b.Resources {
			return a.Resources > b.Resources
		}
		return a.Host < b.Host
	})

	return summary, nil
}

// IsFirstParty reports whether host belongs to the page: equal to it, a
// subdomain of it, or a parent domain of it.
func IsFirstParty(pageHost, host string) bool {
	pageHost = strings.ToLower(strings.TrimSuffix(pageHost, "."))
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	return host == pageHost ||
		strings.HasSuffix(host, "."+pageHost) ||
		strings.HasSuffix(pageHost, "."+host)
}

// resolveHost resolves raw against the page URL and returns its host, or ""
// when the reference has no host (mailto:, javascript:, data:, fragments...).
func resolveHost(base *url.URL, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(base.ResolveReference(ref).Hostname())
}
