package grading

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	startingGrade = 100

	penaltyNonASCII = 25
	penaltyPhishing = 70

	// Domains younger than this lose one point per missing day.
	youngDomainDays = 30
)

// originBands is a monotonic step function over the third-party origin
// count; each band's lower bound is inclusive.
var originBands = []struct {
	min     int
	penalty int
}{
	{50, 45},
	{30, 35},
	{10, 25},
	{5, 15},
}

// labelBands maps grade floors to display labels.
var labelBands = []struct {
	min   int
	label string
}{
	{90, "A+"},
	{80, "A"},
	{70, "B"},
	{60, "C"},
	{50, "D"},
	{40, "E"},
}

// PenaltyBreakdown shows which penalties were applied and their values.
type PenaltyBreakdown struct {
	StartingScore   int `json:"starting_score"`
	Homograph       int `json:"homograph,omitempty"`
	Phishing        int `json:"phishing,omitempty"`
	Registration    int `json:"registration,omitempty"`
	ExternalOrigins int `json:"external_origins,omitempty"`
	TotalPenalties  int `json:"total_penalties"`
	FinalScore      int `json:"final_score"`
}

// OriginPenalty returns the penalty for n distinct third-party origins.
func OriginPenalty(n int) int {
	for _, b := range originBands {
		if n >= b.min {
			return b.penalty
		}
	}
	return 0
}

// AgePenalty returns max(0, 30 - ageInDays) for a domain created at
// created. Creation dates in the future count as age zero.
func AgePenalty(created, now time.Time) int {
	days := int(math.Floor(now.Sub(created).Hours() / 24))
	if days < 0 {
		days = 0
	}
	return max(0, youngDomainDays-days)
}

// Label maps a grade to its display label.
func Label(grade int) string {
	for _, b := range labelBands {
		if grade >= b.min {
			return b.label
		}
	}
	return "F"
}

// Score applies the penalty of every successful check. Failed checks
// contribute nothing. The final score is clamped to [0, 100].
func Score(checks Checks, now time.Time) PenaltyBreakdown {
	breakdown := PenaltyBreakdown{StartingScore: startingGrade}
	score := startingGrade

	// Homograph
	if h, ok := checks.Homograph.Get(); ok && !h.IsASCII {
		breakdown.Homograph = penaltyNonASCII
		score -= penaltyNonASCII
	}

	// Phishing list
	if p, ok := checks.Phishing.Get(); ok && p.IsPhishing {
		breakdown.Phishing = penaltyPhishing
		score -= penaltyPhishing
	}

	// Registration age; an unknown creation date is not penalized
	if reg, ok := checks.Registration.Get(); ok && reg.CreationDate != nil {
		penalty := AgePenalty(*reg.CreationDate, now)
		breakdown.Registration = penalty
		score -= penalty
	}

	// Third-party origins
	if o, ok := checks.ExternalOrigins.Get(); ok {
		penalty := OriginPenalty(o.Count)
		breakdown.ExternalOrigins = penalty
		score -= penalty
	}

	breakdown.TotalPenalties = startingGrade - score

	// Keep the score within 0-100
	if score < 0 {
		score = 0
		breakdown.TotalPenalties = startingGrade
	}
	if score > 100 {
		score = 100
		breakdown.TotalPenalties = 0
	}

	breakdown.FinalScore = score
	return breakdown
}

// buildReason creates a short human-readable explanation of a report.
func buildReason(checks Checks, breakdown PenaltyBreakdown) string {
	issues := []string{}
	unavailable := []string{}

	if h, ok := checks.Homograph.Get(); !ok {
		unavailable = append(unavailable, "homograph")
	} else if !h.IsASCII {
		issues = append(issues, fmt.Sprintf("%d non-ASCII characters", len(h.Offending)))
	}

	if p, ok := checks.Phishing.Get(); !ok {
		unavailable = append(unavailable, "phishing")
	} else if p.IsPhishing {
		issues = append(issues, "listed as phishing")
	}

	if reg, ok := checks.Registration.Get(); !ok {
		unavailable = append(unavailable, "whois")
	} else if breakdown.Registration > 0 {
		days := youngDomainDays - breakdown.Registration
		issues = append(issues, fmt.Sprintf("registered %d days ago (%s)", days, reg.CreationDate.Format(time.DateOnly)))
	}

	if o, ok := checks.ExternalOrigins.Get(); !ok {
		unavailable = append(unavailable, "external origins")
	} else if breakdown.ExternalOrigins > 0 {
		issues = append(issues, fmt.Sprintf("%d third-party origins", o.Count))
	}

	var b strings.Builder
	if len(issues) == 0 {
		b.WriteString("No issues found")
	} else {
		fmt.Fprintf(&b, "Grade: %d, Label: %s. Issues: %s", breakdown.FinalScore, Label(breakdown.FinalScore), strings.Join(issues, ", "))
	}
	if len(unavailable) > 0 {
		fmt.Fprintf(&b, ". Unavailable: %s", strings.Join(unavailable, ", "))
	}
	return b.String()
}
