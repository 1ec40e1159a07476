package alert

import (
	"strconv"

	"github.com/guregu/null/v6"

	"github.com/wonny/findash/internal/contracts"
)

// Threshold is the reference card of one subject's bands
type Threshold struct {
	Subject string          `json:"subject"`
	Bands   []ThresholdBand `json:"bands"`
}

type ThresholdBand struct {
	Name     string             `json:"name"`
	Severity contracts.Severity `json:"severity"`
	Lower    null.Float         `json:"lower"`
	Upper    null.Float         `json:"upper"`
	Label    string             `json:"label"`
}

// Thresholds lists the configured bands of every rule, neutral band last
func Thresholds(rules []Rule) []Threshold {
	out := make([]Threshold, 0, len(rules))
	for _, r := range rules {
		th := Threshold{Subject: r.Subject}
		for _, b := range r.Bands {
			th.Bands = append(th.Bands, ThresholdBand{
				Name:     b.Name,
				Severity: b.Severity,
				Lower:    null.FloatFromPtr(b.Lower),
				Upper:    null.FloatFromPtr(b.Upper),
				Label:    label(b, r.Decimals),
			})
		}
		n := r.neutral()
		th.Bands = append(th.Bands, ThresholdBand{
			Name:     n.Name,
			Severity: n.Severity,
			Label:    "otherwise",
		})
		out = append(out, th)
	}
	return out
}

func label(b Band, decimals int) string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', decimals, 64) }
	switch {
	case b.Lower == nil:
		return "below " + f(*b.Upper)
	case b.Upper == nil:
		return "above " + f(*b.Lower)
	default:
		return "between " + f(*b.Lower) + " and " + f(*b.Upper)
	}
}
