package lookup

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	parser "github.com/likexian/whois-parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCreationDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want string
	}{
		{raw: "2020-03-15", want: "2020-03-15"},
		{raw: "2020-03-15T10:22:01", want: "2020-03-15"},
		{raw: "2020-03-15 10:22:01+00:00", want: "2020-03-15"},
		{raw: "Created: 1997-09-15T04:00:00Z", want: "1997-09-15"},
		{raw: "15-Mar-2020"},
		{raw: "2020-13-45"},
		{raw: "0000-00-00 then 2020-01-02", want: "2020-01-02"},
		{raw: "2020-13-45, 2019-07-08T00:00:00Z", want: "2019-07-08"},
		{raw: "0000-00-00 9999-99-99"},
		{raw: ""},
		{raw: "unknown"},
	}

	for _, tt := range tests {
		got := ParseCreationDate(tt.raw)
		if tt.want == "" {
			assert.Nil(t, got, "raw %q", tt.raw)
			continue
		}
		require.NotNil(t, got, "raw %q", tt.raw)
		assert.Equal(t, tt.want, got.Format(time.DateOnly))
		assert.Equal(t, time.UTC, got.Location())
	}
}

func TestWhoisClientCreationDateShapes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "scalar", body: `{"creation_date": "2015-06-01T00:00:00"}`, want: "2015-06-01"},
		{name: "list picks first", body: `{"creation_date": ["2001-02-03T00:00:00", "1999-01-01T00:00:00"]}`, want: "2001-02-03"},
		{name: "null", body: `{"creation_date": null}`},
		{name: "missing", body: `{"registrar": "x"}`},
		{name: "empty list", body: `{"creation_date": []}`},
		{name: "no pattern", body: `{"creation_date": "before 1995"}`},
		{name: "first has no pattern", body: `{"creation_date": ["n/a", "2001-02-03"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			base := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/whois/lookup", r.URL.Path)
				_, _ = w.Write([]byte(tt.body))
			})

			reg, err := NewWhoisClient(base, nil, time.Second).LookupRegistration(context.Background(), "example.com")
			require.NoError(t, err)

			if tt.want == "" {
				assert.Nil(t, reg.CreationDate)
				return
			}
			require.NotNil(t, reg.CreationDate)
			assert.Equal(t, tt.want, reg.CreationDate.Format(time.DateOnly))
		})
	}
}

func TestWhoisClientMalformed(t *testing.T) {
	t.Parallel()

	bodies := []string{
		`{"creation_date": 20200101}`,
		`{"creation_date": [1, 2]}`,
		`not json`,
	}
	for _, body := range bodies {
		base := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		})
		_, err := NewWhoisClient(base, nil, time.Second).LookupRegistration(context.Background(), "example.com")
		requireKind(t, err, KindMalformed)
	}
}

func TestWhoisClientServerError(t *testing.T) {
	t.Parallel()

	base := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"Error looking up domain"}`, http.StatusBadRequest)
	})
	_, err := NewWhoisClient(base, nil, time.Second).LookupRegistration(context.Background(), "example.com")
	requireKind(t, err, KindServerError)
}

const sampleRecord = `Domain Name: EXAMPLE.COM
Registry Domain ID: 2336799_DOMAIN_COM-VRSN
Registrar WHOIS Server: whois.iana.org
Updated Date: 2024-08-14T07:01:34Z
Creation Date: 1995-08-14T04:00:00Z
Registry Expiry Date: 2025-08-13T04:00:00Z
Registrar: RESERVED-Internet Assigned Numbers Authority
Name Server: A.IANA-SERVERS.NET
Name Server: B.IANA-SERVERS.NET
`

func notFoundRecord(domain string) string {
	return "No match for \"" + strings.ToUpper(domain) + "\".\n" +
		">>> Last update of whois database: 2025-01-01T00:00:00Z <<<\n\n" +
		"NOTICE: The expiration date displayed in this record is the date the\n" +
		"registrar's sponsorship of the domain name registration in the registry is\n" +
		"currently set to expire.\n"
}

func TestRegistryWhois(t *testing.T) {
	t.Parallel()

	r := NewRegistryWhois(time.Second, nil)
	r.query = func(domain string) (string, error) {
		assert.Equal(t, "example.com", domain)
		return sampleRecord, nil
	}

	reg, err := r.LookupRegistration(context.Background(), "example.com")
	require.NoError(t, err)
	require.NotNil(t, reg.CreationDate)
	assert.Equal(t, "1995-08-14", reg.CreationDate.Format(time.DateOnly))
}

func TestRegistryWhoisFallsBackToParent(t *testing.T) {
	t.Parallel()

	var queried []string
	r := NewRegistryWhois(time.Second, nil)
	r.query = func(domain string) (string, error) {
		queried = append(queried, domain)
		if domain == "example.com" {
			return sampleRecord, nil
		}
		return notFoundRecord(domain), nil
	}

	reg, err := r.LookupRegistration(context.Background(), "mail.shop.example.com")
	require.NoError(t, err)
	require.NotNil(t, reg.CreationDate)
	assert.Equal(t, []string{"mail.shop.example.com", "shop.example.com", "example.com"}, queried)
}

// echoedRecord is what some registries answer for a name they do not hold:
// the name echoed back with no dates.
func echoedRecord(domain string) string {
	return "No match for domain \"" + strings.ToUpper(domain) + "\".\n" +
		">>> Last update of whois database: 2025-01-01T00:00:00Z <<<\n\n" +
		"NOTICE: The expiration date displayed in this record is the date the\n" +
		"registrar's sponsorship of the domain name registration in the registry is\n" +
		"currently set to expire.\n"
}

func TestRegistryWhoisUndatedRecordFallsBackToParent(t *testing.T) {
	t.Parallel()

	var queried []string
	r := NewRegistryWhois(time.Second, nil)
	r.query = func(domain string) (string, error) {
		queried = append(queried, domain)
		if domain == "example.com" {
			return sampleRecord, nil
		}
		return echoedRecord(domain), nil
	}

	reg, err := r.LookupRegistration(context.Background(), "shop.example.com")
	require.NoError(t, err)
	require.NotNil(t, reg.CreationDate)
	assert.Equal(t, "1995-08-14", reg.CreationDate.Format(time.DateOnly))
	assert.Equal(t, []string{"shop.example.com", "example.com"}, queried)
}

func TestRegistryWhoisUndatedRecordKeptWhenParentFails(t *testing.T) {
	t.Parallel()

	r := NewRegistryWhois(time.Second, nil)
	r.query = func(domain string) (string, error) {
		if domain == "example.com" {
			return notFoundRecord(domain), nil
		}
		return echoedRecord(domain), nil
	}

	reg, err := r.LookupRegistration(context.Background(), "shop.example.com")
	require.NoError(t, err)
	assert.Nil(t, reg.CreationDate)
}

func TestRegistryWhoisQueryError(t *testing.T) {
	t.Parallel()

	r := NewRegistryWhois(time.Second, nil)
	r.query = func(string) (string, error) { return "", errors.New("connection refused") }

	_, err := r.LookupRegistration(context.Background(), "example.com")
	requireKind(t, err, KindNetwork)
}

func TestRegistryWhoisNotFound(t *testing.T) {
	t.Parallel()

	r := NewRegistryWhois(time.Second, nil)
	r.query = func(domain string) (string, error) {
		return notFoundRecord(domain), nil
	}

	_, err := r.LookupRegistration(context.Background(), "nothing.com")
	requireKind(t, err, KindMalformed)
	assert.ErrorIs(t, err, parser.ErrNotFoundDomain)
}

func TestRegistryWhoisTimeout(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	defer close(block)

	r := NewRegistryWhois(30*time.Millisecond, nil)
	r.query = func(string) (string, error) {
		<-block
		return "", nil
	}

	_, err := r.LookupRegistration(context.Background(), "example.com")
	requireKind(t, err, KindTimeout)
}

func TestParentDomain(t *testing.T) {
	t.Parallel()

	p, ok := parentDomain("a.b.example.com")
	assert.True(t, ok)
	assert.Equal(t, "b.example.com", p)

	_, ok = parentDomain("example.com")
	assert.False(t, ok)
}
