package lookup

import (
	"context"
	"errors"
	"net/http"
	"time"
)

const phishingPath = "/phishing/check-domain-phishing"

// Phishing is the blocklist verdict for a domain.
type Phishing struct {
	IsPhishing bool `json:"is_phishing"`
}

// PhishingClient asks the remote blocklist service whether a domain is listed.
type PhishingClient struct {
	api apiClient
}

// NewPhishingClient creates a client rooted at baseURL.
func NewPhishingClient(baseURL string, httpClient *http.Client, timeout time.Duration) *PhishingClient {
	return &PhishingClient{api: newAPIClient(baseURL, httpClient, timeout)}
}

// CheckPhishing reports blocklist membership of domain.
func (c *PhishingClient) CheckPhishing(ctx context.Context, domain string) (Phishing, error) {
	var resp struct {
		Phishing *bool `json:"phishing"`
	}
	if err := c.api.post(ctx, "phishing", phishingPath, map[string]string{"domain": domain}, &resp); err != nil {
		return Phishing{}, err
	}
	if resp.Phishing == nil {
		return Phishing{}, malformed("phishing", errors.New(`missing "phishing" field`))
	}
	return Phishing{IsPhishing: *resp.Phishing}, nil
}
