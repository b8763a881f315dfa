package grading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"domain-trust-grader/inspector"
	"domain-trust-grader/logging"
	"domain-trust-grader/lookup"
)

// DefaultCheckTimeout bounds each check so one slow upstream cannot stall
// a grading. It leaves room for a headless browser render.
const DefaultCheckTimeout = 20 * time.Second

var errNotConfigured = errors.New("check not configured")

// PhishingChecker reports phishing blocklist membership.
type PhishingChecker interface {
	CheckPhishing(ctx context.Context, domain string) (lookup.Phishing, error)
}

// RegistrationLookup returns registration data of a domain.
type RegistrationLookup interface {
	LookupRegistration(ctx context.Context, domain string) (lookup.Registration, error)
}

// Locator returns the location of a domain. Informational only.
type Locator interface {
	Locate(ctx context.Context, domain string) (lookup.Geo, error)
}

// PageInspector counts distinct third-party origins referenced by a page.
type PageInspector interface {
	CountThirdPartyOrigins(ctx context.Context, page inspector.Page) (int, error)
}

// Trigger is the event that caused a grading request.
type Trigger string

const (
	TriggerNavigation Trigger = "navigation" // page finished loading
	TriggerActivation Trigger = "activation" // tab switched to
	TriggerExplicit   Trigger = "explicit"   // UI asked for the grade
	TriggerRefresh    Trigger = "refresh"    // UI asked for a recheck; bypasses the cache
)

// ParseTrigger validates a trigger name; empty means explicit.
func ParseTrigger(s string) (Trigger, error) {
	switch t := Trigger(s); t {
	case "":
		return TriggerExplicit, nil
	case TriggerNavigation, TriggerActivation, TriggerExplicit, TriggerRefresh:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown trigger %q", ErrInvalidInput, s)
	}
}

// Stage is a step of a grading request.
type Stage string

const (
	StageDispatched Stage = "dispatched"
	StageCollecting Stage = "collecting"
	StageScored     Stage = "scored"
	StageCached     Stage = "cached"
	StageDone       Stage = "done"
	StageAborted    Stage = "aborted"
)

// Request asks for the grade of a page or domain.
type Request struct {
	// Target is a page URL or a bare host.
	Target string
	// HTML is the page's rendered document when the caller already has it.
	HTML    string
	Trigger Trigger
}

// Deps are the collaborators of a Grader. Locator and Cache are optional;
// a missing scored collaborator makes its check fail on every request.
type Deps struct {
	Phishing     PhishingChecker
	Registration RegistrationLookup
	Pages        PageInspector
	Locator      Locator
	Cache        Cache
	Logger       *slog.Logger
}

// Grader orchestrates the checks of a domain, scores them and writes the
// report through the cache.
type Grader struct {
	phishing     PhishingChecker
	registration RegistrationLookup
	pages        PageInspector
	locator      Locator
	cache        Cache
	logger       *slog.Logger

	now            func() time.Time
	freshness      time.Duration
	checkTimeout   time.Duration
	decodePunycode bool
}

// Option customizes a Grader.
type Option func(*Grader)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Grader) { g.now = now }
}

// WithFreshness sets how long cached reports are served.
func WithFreshness(d time.Duration) Option {
	return func(g *Grader) {
		if d > 0 {
			g.freshness = d
		}
	}
}

// WithCheckTimeout bounds each individual check.
func WithCheckTimeout(d time.Duration) Option {
	return func(g *Grader) {
		if d > 0 {
			g.checkTimeout = d
		}
	}
}

// WithPunycodeDecoding makes the homograph check decode xn-- labels first.
func WithPunycodeDecoding(enabled bool) Option {
	return func(g *Grader) { g.decodePunycode = enabled }
}

// NewGrader wires collaborators. Without a cache an in-memory one is used.
func NewGrader(deps Deps, opts ...Option) *Grader {
	g := &Grader{
		phishing:     deps.Phishing,
		registration: deps.Registration,
		pages:        deps.Pages,
		locator:      deps.Locator,
		cache:        deps.Cache,
		logger:       deps.Logger,
		now:          time.Now,
		freshness:    DefaultFreshness,
		checkTimeout: DefaultCheckTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = logging.Discard()
	}
	if g.cache == nil {
		g.cache = NewMemoryCache(g.freshness)
	}
	return g
}

// Grade returns the report for req's domain. A fresh cached report is
// returned unchanged unless the trigger is a refresh. Only an unusable
// target is an error; failing checks are recorded in the report.
//
// Checks keep running if ctx is cancelled, but their result is then
// discarded and ctx's error returned.
func (g *Grader) Grade(ctx context.Context, req Request) (GradeReport, error) {
	log := g.logger.With("request_id", uuid.NewString(), "trigger", string(req.Trigger))

	target, err := ResolveTarget(req.Target)
	if err != nil {
		log.Warn("grading aborted", "stage", StageAborted, logging.Error(err))
		return GradeReport{}, err
	}
	log = log.With("domain", target.Domain)

	if req.Trigger != TriggerRefresh {
		if entry, ok := g.lookupFresh(ctx, log, target.Domain); ok {
			log.Debug("serving cached report", "computed_at", entry.Report.ComputedAt)
			return entry.Report, nil
		}
	}

	start := g.now()
	report := g.evaluate(ctx, log, target, req.HTML)

	if err := ctx.Err(); err != nil {
		log.Info("grading discarded", logging.Error(err))
		return GradeReport{}, err
	}

	if err := g.cache.Put(ctx, target.Domain, report); err != nil {
		log.Warn("cache write failed", logging.Error(err))
	} else {
		log.Debug("grading stage", "stage", StageCached)
	}

	log.Info("grading completed",
		"stage", StageDone,
		"grade", report.Grade,
		"label", report.Label,
		"indeterminate", report.Indeterminate,
		logging.Duration(report.ComputedAt.Sub(start)),
	)
	return report, nil
}

// Cached returns the stored entry for domain regardless of freshness. It
// never triggers a grading.
func (g *Grader) Cached(ctx context.Context, domain string) (CacheEntry, error) {
	domain = NormalizeDomain(domain)
	if domain == "" {
		return CacheEntry{}, fmt.Errorf("%w: empty domain", ErrInvalidInput)
	}
	entry, ok, err := g.cache.Get(ctx, domain)
	if err != nil {
		return CacheEntry{}, fmt.Errorf("read cache: %w", err)
	}
	if !ok {
		return CacheEntry{}, ErrUnavailable
	}
	return entry, nil
}

// IsFresh reports whether entry would be served without regrading.
func (g *Grader) IsFresh(entry CacheEntry) bool {
	return entry.Fresh(g.now(), g.freshness)
}

func (g *Grader) lookupFresh(ctx context.Context, log *slog.Logger, domain string) (CacheEntry, bool) {
	entry, ok, err := g.cache.Get(ctx, domain)
	if err != nil {
		log.Warn("cache read failed, grading anew", logging.Error(err))
		return CacheEntry{}, false
	}
	if !ok || !g.IsFresh(entry) {
		return CacheEntry{}, false
	}
	return entry, true
}

// evaluate runs every check concurrently, joins them all and scores.
func (g *Grader) evaluate(ctx context.Context, log *slog.Logger, target Target, html string) GradeReport {
	checkCtx := context.WithoutCancel(ctx)
	domain := target.Domain

	var (
		checks   Checks
		location *CheckResult[lookup.Geo]
	)

	log.Debug("grading stage", "stage", StageDispatched)

	// Every check absorbs its own failure, so the group never cancels.
	eg, egCtx := errgroup.WithContext(checkCtx)

	eg.Go(func() error {
		if g.decodePunycode {
			checks.Homograph = AnalyzeDecoded(domain)
		} else {
			checks.Homograph = Analyze(domain)
		}
		return nil
	})

	eg.Go(func() error {
		checks.Phishing = runCheck(egCtx, g.checkTimeout, func(ctx context.Context) (lookup.Phishing, error) {
			if g.phishing == nil {
				return lookup.Phishing{}, errNotConfigured
			}
			return g.phishing.CheckPhishing(ctx, domain)
		})
		return nil
	})

	eg.Go(func() error {
		checks.Registration = runCheck(egCtx, g.checkTimeout, func(ctx context.Context) (lookup.Registration, error) {
			if g.registration == nil {
				return lookup.Registration{}, errNotConfigured
			}
			return g.registration.LookupRegistration(ctx, domain)
		})
		return nil
	})

	eg.Go(func() error {
		checks.ExternalOrigins = runCheck(egCtx, g.checkTimeout, func(ctx context.Context) (ExternalOrigins, error) {
			if g.pages == nil {
				return ExternalOrigins{}, errNotConfigured
			}
			n, err := g.pages.CountThirdPartyOrigins(ctx, inspector.Page{URL: target.PageURL, HTML: html})
			if err != nil {
				return ExternalOrigins{}, err
			}
			if n < 0 {
				return ExternalOrigins{}, fmt.Errorf("negative origin count %d", n)
			}
			return ExternalOrigins{Count: n}, nil
		})
		return nil
	})

	if g.locator != nil {
		eg.Go(func() error {
			res := runCheck(egCtx, g.checkTimeout, func(ctx context.Context) (lookup.Geo, error) {
				return g.locator.Locate(ctx, domain)
			})
			location = &res
			return nil
		})
	}

	log.Debug("grading stage", "stage", StageCollecting)
	_ = eg.Wait()

	logFailure(log, "homograph", checks.Homograph.Status, checks.Homograph.Reason)
	logFailure(log, "phishing", checks.Phishing.Status, checks.Phishing.Reason)
	logFailure(log, "registration", checks.Registration.Status, checks.Registration.Reason)
	logFailure(log, "external_origins", checks.ExternalOrigins.Status, checks.ExternalOrigins.Reason)
	if location != nil {
		logFailure(log, "location", location.Status, location.Reason)
	}

	computedAt := g.now()
	breakdown := Score(checks, computedAt)
	log.Debug("grading stage", "stage", StageScored, "grade", breakdown.FinalScore)

	return GradeReport{
		Domain:        domain,
		ComputedAt:    computedAt,
		Grade:         breakdown.FinalScore,
		Label:         Label(breakdown.FinalScore),
		Indeterminate: checks.AllFailed(),
		Checks:        checks,
		Location:      location,
		Breakdown:     breakdown,
		Reason:        buildReason(checks, breakdown),
	}
}

// runCheck runs fn under timeout and turns its outcome, including a panic,
// into a CheckResult.
func runCheck[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (res CheckResult[T]) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			res = Failed[T](fmt.Errorf("check panicked: %v", r))
		}
	}()

	v, err := fn(ctx)
	if err != nil {
		return Failed[T](err)
	}
	return Ok(v)
}

func logFailure(log *slog.Logger, check string, status CheckStatus, reason string) {
	if status == StatusFailed {
		log.Warn("check failed", "check", check, "reason", reason)
	}
}
