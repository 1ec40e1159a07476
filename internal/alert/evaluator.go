package alert

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/guregu/null/v6"

	"github.com/wonny/findash/internal/contracts"
)

// MinObservations is the history a subject needs before it can be classified
const MinObservations = 2

// Evaluate classifies the latest of obs against rule.
// obs are the non-missing observations in date order. With fewer than
// MinObservations the alert is "unavailable"; Evaluate never panics on short input.
func Evaluate(rule Rule, obs []float64) contracts.Alert {
	if len(obs) < MinObservations {
		return Unavailable(rule.Subject, fmt.Errorf("%w: need %d observations, have %d",
			contracts.ErrInsufficientData, MinObservations, len(obs)))
	}

	current := obs[len(obs)-1]
	previous := obs[len(obs)-2]
	if math.IsNaN(current) || math.IsInf(current, 0) {
		return Unavailable(rule.Subject, fmt.Errorf("%w: latest value is not finite", contracts.ErrDomain))
	}

	a := contracts.Alert{
		Subject:  rule.Subject,
		Value:    null.FloatFrom(current),
		Previous: null.FloatFrom(previous),
	}
	if previous != 0 && !math.IsNaN(previous) {
		a.Change = null.FloatFrom(current/previous - 1)
	}

	band := rule.neutral()
	for _, b := range rule.Bands {
		if b.Contains(current) {
			band = b
			break
		}
	}

	a.Band = band.Name
	a.Severity = band.Severity
	a.Message = render(band.Message, rule, band, a)
	return a
}

// EvaluateAll evaluates every rule against its column of prices.
// Subjects are isolated: a missing column or a panic turns into an
// "unavailable" alert for that subject only.
func EvaluateAll(rules []Rule, prices contracts.Table) []contracts.Alert {
	alerts := make([]contracts.Alert, 0, len(rules))
	for _, rule := range rules {
		alerts = append(alerts, evaluateIsolated(rule, prices))
	}
	return alerts
}

func evaluateIsolated(rule Rule, prices contracts.Table) (a contracts.Alert) {
	defer func() {
		if r := recover(); r != nil {
			a = Unavailable(rule.Subject, fmt.Errorf("evaluation panicked: %v", r))
		}
	}()

	obs, err := prices.Observations(rule.Subject)
	if err != nil {
		return Unavailable(rule.Subject, err)
	}
	return Evaluate(rule, obs)
}

// Unavailable is the alert emitted when a subject cannot be classified
func Unavailable(subject string, err error) contracts.Alert {
	return contracts.Alert{
		Subject:  subject,
		Severity: contracts.SeverityUnavailable,
		Message:  fmt.Sprintf("data unavailable for %s", subject),
		Reason:   contracts.Kind(err),
	}
}

func render(tmpl string, rule Rule, band Band, a contracts.Alert) string {
	format := func(p *float64) string {
		if p == nil {
			return ""
		}
		return strconv.FormatFloat(*p, 'f', rule.Decimals, 64)
	}
	change := ""
	if a.Change.Valid {
		change = strconv.FormatFloat(a.Change.Float64*100, 'f', 2, 64) + "%"
	}

	return strings.NewReplacer(
		"{subject}", rule.Subject,
		"{value}", strconv.FormatFloat(a.Value.Float64, 'f', rule.Decimals, 64),
		"{lower}", format(band.Lower),
		"{upper}", format(band.Upper),
		"{change}", change,
	).Replace(tmpl)
}
