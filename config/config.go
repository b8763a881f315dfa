package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// WHOIS sources.
const (
	WhoisSourceAPI      = "api"
	WhoisSourceRegistry = "registry"
)

// Page inspectors.
const (
	InspectorHTTP    = "http"
	InspectorBrowser = "browser"
)

// Config holds all settings of the grading service.
type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Lookups
	APIBaseURL    string        `env:"TRUST_API_BASE_URL" envDefault:"https://ndi2025.goubaud.com/api/v1"`
	LookupTimeout time.Duration `env:"LOOKUP_TIMEOUT" envDefault:"5s"`
	WhoisSource   string        `env:"WHOIS_SOURCE" envDefault:"api"`
	// CheckTimeout bounds one check, including page inspection.
	CheckTimeout time.Duration `env:"CHECK_TIMEOUT" envDefault:"20s"`

	// Page inspection
	PageInspector string `env:"PAGE_INSPECTOR" envDefault:"http"`
	ChromePath    string `env:"CHROME_PATH"`

	// Cache
	Freshness      time.Duration `env:"GRADE_FRESHNESS" envDefault:"5m"`
	RedisURL       string        `env:"REDIS_URL"`
	CacheKeyPrefix string        `env:"CACHE_KEY_PREFIX" envDefault:"grade_"`

	// Homograph analysis
	DecodePunycode bool `env:"DECODE_PUNYCODE" envDefault:"false"`
}

// Load reads .env (if present) and parses the environment into Config.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enum-like settings and durations.
func (c Config) Validate() error {
	switch c.WhoisSource {
	case WhoisSourceAPI, WhoisSourceRegistry:
	default:
		return fmt.Errorf("WHOIS_SOURCE must be %q or %q, got %q", WhoisSourceAPI, WhoisSourceRegistry, c.WhoisSource)
	}

	switch c.PageInspector {
	case InspectorHTTP, InspectorBrowser:
	default:
		return fmt.Errorf("PAGE_INSPECTOR must be %q or %q, got %q", InspectorHTTP, InspectorBrowser, c.PageInspector)
	}

	if c.LookupTimeout <= 0 {
		return fmt.Errorf("LOOKUP_TIMEOUT must be positive")
	}
	if c.Freshness <= 0 {
		return fmt.Errorf("GRADE_FRESHNESS must be positive")
	}
	if c.APIBaseURL == "" {
		return fmt.Errorf("TRUST_API_BASE_URL is required")
	}
	return nil
}
