package lookup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"time"
)

const whoisPath = "/whois/lookup"

var datePrefix = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)

// Registration holds the normalized registration data of a domain.
// A nil CreationDate means the age is unknown, which is not an error.
type Registration struct {
	CreationDate *time.Time `json:"creation_date"`
}

// creationDateField is the wire form of creation_date: registries disagree,
// so it arrives as a scalar string, a list of candidate strings, or null.
type creationDateField struct {
	candidates []string
}

func (f *creationDateField) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	switch {
	case bytes.Equal(trimmed, []byte("null")):
		f.candidates = nil
		return nil
	case len(trimmed) > 0 && trimmed[0] == '[':
		var list []string
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return fmt.Errorf("creation_date list: %w", err)
		}
		f.candidates = list
		return nil
	default:
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return fmt.Errorf("creation_date: %w", err)
		}
		f.candidates = []string{s}
		return nil
	}
}

// first picks the first candidate, the deterministic choice when a list is returned.
func (f creationDateField) first() string {
	if len(f.candidates) == 0 {
		return ""
	}
	return f.candidates[0]
}

// ParseCreationDate extracts the first valid YYYY-MM-DD date from a raw
// registry date string. It returns nil when no valid date is found.
func ParseCreationDate(raw string) *time.Time {
	for _, m := range datePrefix.FindAllString(raw, -1) {
		t, err := time.Parse(time.DateOnly, m)
		if err == nil {
			return &t
		}
	}
	return nil
}

// WhoisClient looks up registration data through the remote WHOIS API.
type WhoisClient struct {
	api apiClient
}

// NewWhoisClient creates a client rooted at baseURL.
func NewWhoisClient(baseURL string, httpClient *http.Client, timeout time.Duration) *WhoisClient {
	return &WhoisClient{api: newAPIClient(baseURL, httpClient, timeout)}
}

// LookupRegistration returns the normalized creation date of domain.
func (c *WhoisClient) LookupRegistration(ctx context.Context, domain string) (Registration, error) {
	var resp struct {
		CreationDate creationDateField `json:"creation_date"`
	}
	if err := c.api.post(ctx, "whois", whoisPath, map[string]string{"domain": domain}, &resp); err != nil {
		return Registration{}, err
	}
	return Registration{CreationDate: ParseCreationDate(resp.CreationDate.first())}, nil
}
