package alert

import (
	"fmt"
	"math"

	"github.com/wonny/findash/internal/contracts"
)

// Band is a named open interval (Lower, Upper) with a severity.
// A nil bound is unbounded on that side.
type Band struct {
	Name     string             `yaml:"name" json:"name"`
	Lower    *float64           `yaml:"lower,omitempty" json:"lower,omitempty"`
	Upper    *float64           `yaml:"upper,omitempty" json:"upper,omitempty"`
	Severity contracts.Severity `yaml:"severity" json:"severity"`
	// Message may use {subject}, {value}, {lower}, {upper} and {change}
	Message string `yaml:"message" json:"message"`
}

// Contains reports whether v lies strictly inside the band
func (b Band) Contains(v float64) bool {
	if b.Lower != nil && !(v > *b.Lower) {
		return false
	}
	if b.Upper != nil && !(v < *b.Upper) {
		return false
	}
	return true
}

func (b Band) lo() float64 {
	if b.Lower == nil {
		return math.Inf(-1)
	}
	return *b.Lower
}

func (b Band) hi() float64 {
	if b.Upper == nil {
		return math.Inf(1)
	}
	return *b.Upper
}

// Rule holds the bands of one monitored subject.
// Bands are checked in order, most extreme first; values matching none fall to Neutral.
type Rule struct {
	Subject  string `yaml:"subject" json:"subject"`
	Decimals int    `yaml:"decimals" json:"decimals"`
	Bands    []Band `yaml:"bands" json:"bands"`
	Neutral  Band   `yaml:"neutral" json:"neutral"`
}

// Validate checks bounds, severities and that no two bands overlap
func (r Rule) Validate() error {
	if r.Subject == "" {
		return fmt.Errorf("rule subject is required")
	}
	if r.Decimals < 0 || r.Decimals > 8 {
		return fmt.Errorf("rule %q: decimals must be between 0 and 8", r.Subject)
	}

	for i, b := range r.Bands {
		if b.Name == "" {
			return fmt.Errorf("rule %q: band %d has no name", r.Subject, i)
		}
		if b.Lower == nil && b.Upper == nil {
			return fmt.Errorf("rule %q: band %q needs at least one bound", r.Subject, b.Name)
		}
		if !(b.lo() < b.hi()) {
			return fmt.Errorf("rule %q: band %q lower bound must be below upper bound", r.Subject, b.Name)
		}
		if !b.Severity.Configurable() {
			return fmt.Errorf("rule %q: band %q has invalid severity %q", r.Subject, b.Name, b.Severity)
		}
		for _, other := range r.Bands[:i] {
			if overlaps(b, other) {
				return fmt.Errorf("rule %q: bands %q and %q overlap", r.Subject, other.Name, b.Name)
			}
		}
	}

	if r.Neutral.Severity != "" && !r.Neutral.Severity.Configurable() {
		return fmt.Errorf("rule %q: neutral band has invalid severity %q", r.Subject, r.Neutral.Severity)
	}

	return nil
}

// overlaps treats bands as open intervals: touching bounds do not overlap
func overlaps(a, b Band) bool {
	return math.Max(a.lo(), b.lo()) < math.Min(a.hi(), b.hi())
}

// neutral returns the gap band with defaults filled in
func (r Rule) neutral() Band {
	n := r.Neutral
	if n.Name == "" {
		n.Name = "neutral"
	}
	if n.Severity == "" {
		n.Severity = contracts.SeverityNormal
	}
	if n.Message == "" {
		n.Message = "{subject} at {value}"
	}
	n.Lower, n.Upper = nil, nil
	return n
}

// Bound is a helper for building bands in code
func Bound(v float64) *float64 {
	return &v
}
