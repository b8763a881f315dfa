package lookup

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

const (
	geoIPPath     = "/geo/lookup"
	geoDomainPath = "/geo/lookup-domain"
)

// Geo is the country-level location of an address. Informational only.
type Geo struct {
	IPAddress      string `json:"ip_address,omitempty"`
	CountryName    string `json:"country_name"`
	CountryISOCode string `json:"country_iso_code"`
}

// GeoClient resolves the location of an IP address or domain.
type GeoClient struct {
	api     apiClient
	resolve func(ctx context.Context, host string) ([]net.IPAddr, error)
}

// NewGeoClient creates a client rooted at baseURL.
func NewGeoClient(baseURL string, httpClient *http.Client, timeout time.Duration) *GeoClient {
	return &GeoClient{
		api:     newAPIClient(baseURL, httpClient, timeout),
		resolve: net.DefaultResolver.LookupIPAddr,
	}
}

// LocateIP looks up the location of an IP address.
func (c *GeoClient) LocateIP(ctx context.Context, ip string) (Geo, error) {
	var geo Geo
	if err := c.api.post(ctx, "geoip", geoIPPath, map[string]string{"ip_address": ip}, &geo); err != nil {
		return Geo{}, err
	}
	if geo.IPAddress == "" {
		geo.IPAddress = ip
	}
	return geo, nil
}

// LocateDomain lets the remote service resolve and locate domain.
func (c *GeoClient) LocateDomain(ctx context.Context, domain string) (Geo, error) {
	var geo Geo
	if err := c.api.post(ctx, "geoip", geoDomainPath, map[string]string{"domain": domain}, &geo); err != nil {
		return Geo{}, err
	}
	return geo, nil
}

// Locate resolves domain locally and looks up its first IPv4 address,
// falling back to the remote domain lookup when resolution fails.
func (c *GeoClient) Locate(ctx context.Context, domain string) (Geo, error) {
	ip, err := c.resolveIP(ctx, domain)
	if err != nil {
		return c.LocateDomain(ctx, domain)
	}
	return c.LocateIP(ctx, ip)
}

func (c *GeoClient) resolveIP(ctx context.Context, host string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.api.timeout)
	defer cancel()

	addrs, err := c.resolve(ctx, host)
	if err != nil {
		return "", err
	}
	if len(addrs) == 0 {
		return "", errors.New("no addresses")
	}
	for _, addr := range addrs {
		if addr.IP.To4() != nil {
			return addr.IP.String(), nil
		}
	}
	return addrs[0].IP.String(), nil
}
