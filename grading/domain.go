package grading

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

var (
	// ErrInvalidInput means no usable domain could be determined. It aborts
	// the whole grading request.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnavailable means no report exists for a domain.
	ErrUnavailable = errors.New("grade unavailable")
)

// internalSchemes never identify a gradable web domain.
var internalSchemes = []string{
	"chrome:",
	"chrome-extension:",
	"about:",
	"edge:",
	"moz-extension:",
	"file:",
	"data:",
	"javascript:",
	"view-source:",
	"mailto:",
	"tel:",
}

// Target is the resolved subject of a grading request.
type Target struct {
	Domain  string // graded domain
	PageURL string // page to inspect for third-party origins
}

// ResolveTarget turns a page URL or bare host into a Target.
func ResolveTarget(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Target{}, fmt.Errorf("%w: empty target", ErrInvalidInput)
	}

	lower := strings.ToLower(raw)
	for _, scheme := range internalSchemes {
		if strings.HasPrefix(lower, scheme) {
			return Target{}, fmt.Errorf("%w: internal url %q", ErrInvalidInput, raw)
		}
	}

	pageURL := raw
	if !strings.Contains(raw, "://") {
		pageURL = "https://" + raw
	}

	u, err := url.Parse(pageURL)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Target{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidInput, u.Scheme)
	}
	if u.User != nil {
		return Target{}, fmt.Errorf("%w: credentials in %q", ErrInvalidInput, raw)
	}

	domain := NormalizeDomain(u.Hostname())
	if domain == "" {
		return Target{}, fmt.Errorf("%w: no host in %q", ErrInvalidInput, raw)
	}
	return Target{Domain: domain, PageURL: pageURL}, nil
}

// ExtractDomain returns the graded domain of a page URL or bare host.
func ExtractDomain(raw string) (string, error) {
	t, err := ResolveTarget(raw)
	if err != nil {
		return "", err
	}
	return t.Domain, nil
}

// NormalizeDomain lower-cases a hostname and strips the port, a trailing
// dot and a leading "www.".
func NormalizeDomain(host string) string {
	host = strings.TrimSpace(strings.ToLower(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(host, ".")
	host = strings.TrimPrefix(host, "www.")
	return host
}
