package contracts

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Lookback is a calendar window ending now, written like "5y", "6mo", "2wk" or "30d"
type Lookback struct {
	Years  int
	Months int
	Days   int
	raw    string
}

var lookbackUnits = []struct {
	suffix string
	apply  func(l *Lookback, n int)
}{
	{"mo", func(l *Lookback, n int) { l.Months = n }},
	{"wk", func(l *Lookback, n int) { l.Days = n * 7 }},
	{"y", func(l *Lookback, n int) { l.Years = n }},
	{"d", func(l *Lookback, n int) { l.Days = n }},
}

// ParseLookback parses a positive count followed by y, mo, wk or d
func ParseLookback(s string) (Lookback, error) {
	raw := strings.TrimSpace(strings.ToLower(s))
	for _, u := range lookbackUnits {
		if !strings.HasSuffix(raw, u.suffix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(raw, u.suffix))
		if err != nil || n <= 0 {
			return Lookback{}, fmt.Errorf("invalid lookback %q", s)
		}
		l := Lookback{raw: raw}
		u.apply(&l, n)
		return l, nil
	}
	return Lookback{}, fmt.Errorf("invalid lookback %q: unit must be y, mo, wk or d", s)
}

// MustLookback panics on invalid input; for constants and tests
func MustLookback(s string) Lookback {
	l, err := ParseLookback(s)
	if err != nil {
		panic(err)
	}
	return l
}

func (l Lookback) String() string {
	return l.raw
}

// Window returns [now - lookback, now]
func (l Lookback) Window(now time.Time) (time.Time, time.Time) {
	return now.AddDate(-l.Years, -l.Months, -l.Days), now
}
