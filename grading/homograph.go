package grading

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"
)

const punycodePrefix = "xn--"

// Analyze classifies every character of domain by code point. Any code
// point above 127 makes the domain non-ASCII. Punycode labels are checked
// as the ASCII text they are.
func Analyze(domain string) CheckResult[Homograph] {
	if domain == "" {
		return Failed[Homograph](fmt.Errorf("%w: empty domain", ErrInvalidInput))
	}
	return Ok(analyzeChars(domain))
}

// AnalyzeDecoded decodes punycode labels to Unicode before running Analyze,
// so registered IDN homographs are flagged. Labels that fail to decode are
// analyzed as-is.
func AnalyzeDecoded(domain string) CheckResult[Homograph] {
	if domain == "" {
		return Failed[Homograph](fmt.Errorf("%w: empty domain", ErrInvalidInput))
	}

	decoded := decodePunycode(domain)
	h := analyzeChars(decoded)
	if decoded != domain {
		h.Decoded = decoded
	}
	return Ok(h)
}

func analyzeChars(s string) Homograph {
	h := Homograph{IsASCII: true, Offending: []OffendingChar{}}

	pos := 0
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		if r > 127 {
			h.IsASCII = false
			h.Offending = append(h.Offending, OffendingChar{
				Char:      string(r),
				Position:  pos,
				CodePoint: int(r),
				Unicode:   fmt.Sprintf("U+%04X", r),
			})
		}
		s = s[size:]
		pos++
	}
	return h
}

func decodePunycode(domain string) string {
	labels := strings.Split(domain, ".")
	for i, label := range labels {
		if !strings.HasPrefix(strings.ToLower(label), punycodePrefix) {
			continue
		}
		if u, err := idna.Punycode.ToUnicode(label); err == nil {
			labels[i] = u
		}
	}
	return strings.Join(labels, ".")
}
