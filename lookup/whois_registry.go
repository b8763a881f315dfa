package lookup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	whois "github.com/likexian/whois"
	parser "github.com/likexian/whois-parser"

	"domain-trust-grader/logging"
)

//
// DIRECT REGISTRY WHOIS
//

// RegistryWhois queries WHOIS servers directly instead of going through the
// remote API. It produces the same Registration shape as WhoisClient.
type RegistryWhois struct {
	query   func(domain string) (string, error)
	timeout time.Duration
	logger  *slog.Logger
}

// NewRegistryWhois creates a registry lookup bounded by timeout.
func NewRegistryWhois(timeout time.Duration, logger *slog.Logger) *RegistryWhois {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logging.Discard()
	}
	client := whois.NewClient()
	client.SetTimeout(timeout)
	return &RegistryWhois{
		query:   func(domain string) (string, error) { return client.Whois(domain) },
		timeout: timeout,
		logger:  logger,
	}
}

// LookupRegistration fetches and parses the registry record of domain. For
// subdomains unknown to the registry the parent domain is tried, as it is
// when a subdomain's record carries no creation date.
func (r *RegistryWhois) LookupRegistration(ctx context.Context, domain string) (Registration, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// first dateless record seen, returned if no parent does better
	var undated *Registration

	for {
		reg, err := r.lookupOnce(ctx, domain)
		parent, hasParent := parentDomain(domain)

		switch {
		case err == nil && (reg.CreationDate != nil || !hasParent):
			return reg, nil
		case err == nil:
			if undated == nil {
				undated = &reg
			}
		case undated != nil:
			return *undated, nil
		case !hasParent || !errors.Is(err, parser.ErrNotFoundDomain):
			return Registration{}, err
		}

		r.logger.Debug("no creation date in whois record, trying parent domain", "domain", domain, "parent", parent, logging.Error(err))
		domain = parent
	}
}

func (r *RegistryWhois) lookupOnce(ctx context.Context, domain string) (Registration, error) {
	type result struct {
		raw string
		err error
	}
	done := make(chan result, 1)
	go func() {
		raw, err := r.query(domain)
		done <- result{raw: raw, err: err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return Registration{}, networkError("whois", ctx.Err())
	case res = <-done:
	}
	if res.err != nil {
		return Registration{}, networkError("whois", res.err)
	}

	info, err := parser.Parse(res.raw)
	if err != nil {
		return Registration{}, malformed("whois", fmt.Errorf("parse record: %w", err))
	}
	if info.Domain == nil {
		return Registration{}, malformed("whois", errors.New("record has no domain section"))
	}

	return Registration{CreationDate: ParseCreationDate(strings.TrimSpace(info.Domain.CreatedDate))}, nil
}

// parentDomain strips the leftmost label, keeping at least two labels.
func parentDomain(domain string) (string, bool) {
	parts := strings.Split(domain, ".")
	if len(parts) <= 2 {
		return "", false
	}
	return strings.Join(parts[1:], "."), true
}
