package grading

import (
	"context"
	"errors"
	"time"

	"domain-trust-grader/lookup"
)

// CheckStatus tags a CheckResult as succeeded or failed.
type CheckStatus string

const (
	StatusOK     CheckStatus = "ok"
	StatusFailed CheckStatus = "failed"
)

// CheckResult is the outcome of one signal: Ok with a payload, or Failed
// with a reason. Failed checks are recorded but never scored.
type CheckResult[T any] struct {
	Status CheckStatus `json:"status"`
	Value  *T          `json:"value,omitempty"`
	Kind   string      `json:"kind,omitempty"`
	Reason string      `json:"reason,omitempty"`
}

// Ok wraps a successful payload.
func Ok[T any](v T) CheckResult[T] {
	return CheckResult[T]{Status: StatusOK, Value: &v}
}

// Failed records err as the failure reason.
func Failed[T any](err error) CheckResult[T] {
	return CheckResult[T]{Status: StatusFailed, Kind: failureKind(err), Reason: err.Error()}
}

// Get returns the payload and whether the check succeeded.
func (r CheckResult[T]) Get() (T, bool) {
	if r.Status != StatusOK || r.Value == nil {
		var zero T
		return zero, false
	}
	return *r.Value, true
}

// OK reports whether the check succeeded.
func (r CheckResult[T]) OK() bool {
	_, ok := r.Get()
	return ok
}

func failureKind(err error) string {
	if kind, ok := lookup.KindOf(err); ok {
		return string(kind)
	}
	switch {
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, context.DeadlineExceeded):
		return string(lookup.KindTimeout)
	default:
		return "error"
	}
}

// OffendingChar is a character outside the ASCII range.
type OffendingChar struct {
	Char      string `json:"char"`
	Position  int    `json:"position"` // zero-based code point index
	CodePoint int    `json:"code_point"`
	Unicode   string `json:"unicode"` // U+XXXX
}

// Homograph is the payload of the IDN homograph check.
type Homograph struct {
	IsASCII   bool            `json:"is_ascii"`
	Offending []OffendingChar `json:"offending_chars"`
	// Decoded is the Unicode form analyzed when punycode decoding changed the input.
	Decoded string `json:"decoded,omitempty"`
}

// ExternalOrigins is the payload of the third-party origin count.
type ExternalOrigins struct {
	Count int `json:"count"`
}

// Checks holds the four scored signals of a report.
type Checks struct {
	Homograph       CheckResult[Homograph]           `json:"homograph"`
	Phishing        CheckResult[lookup.Phishing]     `json:"phishing"`
	Registration    CheckResult[lookup.Registration] `json:"registration"`
	ExternalOrigins CheckResult[ExternalOrigins]     `json:"external_origins"`
}

// AllFailed reports whether no scored signal is available.
func (c Checks) AllFailed() bool {
	return !c.Homograph.OK() && !c.Phishing.OK() && !c.Registration.OK() && !c.ExternalOrigins.OK()
}

// GradeReport is the aggregate result of grading a domain.
type GradeReport struct {
	Domain     string    `json:"domain"`
	ComputedAt time.Time `json:"computed_at"`
	Grade      int       `json:"grade"`
	Label      string    `json:"label"`
	// Indeterminate is set when every scored check failed; the grade then
	// stays at its starting value for lack of evidence.
	Indeterminate bool                     `json:"indeterminate,omitempty"`
	Checks        Checks                   `json:"checks"`
	Location      *CheckResult[lookup.Geo] `json:"location,omitempty"`
	Breakdown     PenaltyBreakdown         `json:"breakdown"`
	Reason        string                   `json:"reason"`
}

// CacheEntry is a stored report. Entries are overwritten, never merged.
type CacheEntry struct {
	Report      GradeReport `json:"report"`
	ExpiresHint time.Time   `json:"expires_hint"`
}

// Fresh reports whether the entry is within window of its report's
// completion time at now.
func (e CacheEntry) Fresh(now time.Time, window time.Duration) bool {
	return now.Sub(e.Report.ComputedAt) <= window
}
