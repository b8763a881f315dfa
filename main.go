package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"domain-trust-grader/config"
	"domain-trust-grader/grading"
	"domain-trust-grader/inspector"
	"domain-trust-grader/logging"
	"domain-trust-grader/lookup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("service stopped", logging.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cache, closeCache, err := openCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	grader := grading.NewGrader(grading.Deps{
		Phishing:     lookup.NewPhishingClient(cfg.APIBaseURL, nil, cfg.LookupTimeout),
		Registration: registrationLookup(cfg, logger),
		Pages:        pageInspector(cfg, logger),
		Locator:      lookup.NewGeoClient(cfg.APIBaseURL, nil, cfg.LookupTimeout),
		Cache:        cache,
		Logger:       logger.With("component", "grader"),
	},
		grading.WithFreshness(cfg.Freshness),
		grading.WithCheckTimeout(cfg.CheckTimeout),
		grading.WithPunycodeDecoding(cfg.DecodePunycode),
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           grading.NewHandler(grader, logger.With("component", "http")).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("trust grader listening",
			"addr", srv.Addr,
			"whois_source", cfg.WhoisSource,
			"page_inspector", cfg.PageInspector,
			"decode_punycode", cfg.DecodePunycode,
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openCache(ctx context.Context, cfg config.Config, logger *slog.Logger) (grading.Cache, func(), error) {
	if cfg.RedisURL == "" {
		logger.Info("using in-memory grade cache")
		return grading.NewMemoryCache(cfg.Freshness), func() {}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	client, err := grading.OpenRedis(connectCtx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("using redis grade cache", "key_prefix", cfg.CacheKeyPrefix)
	return grading.NewRedisCache(client, cfg.CacheKeyPrefix, cfg.Freshness), func() { _ = client.Close() }, nil
}

func registrationLookup(cfg config.Config, logger *slog.Logger) grading.RegistrationLookup {
	if cfg.WhoisSource == config.WhoisSourceRegistry {
		return lookup.NewRegistryWhois(cfg.LookupTimeout, logger.With("component", "whois"))
	}
	return lookup.NewWhoisClient(cfg.APIBaseURL, nil, cfg.LookupTimeout)
}

func pageInspector(cfg config.Config, logger *slog.Logger) grading.PageInspector {
	if cfg.PageInspector == config.InspectorBrowser {
		return inspector.NewBrowserInspector(cfg.ChromePath, logger.With("component", "browser"))
	}
	return inspector.NewHTTPInspector(nil)
}
