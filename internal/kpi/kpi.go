package kpi

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/wonny/findash/internal/contracts"
)

// NotAvailable is shown in place of a value that could not be computed
const NotAvailable = "N/A"

// Spec configures one KPI card
type Spec struct {
	Subject  string `yaml:"subject" json:"subject"`
	Label    string `yaml:"label" json:"label"`
	Decimals int    `yaml:"decimals" json:"decimals"`
	Prefix   string `yaml:"prefix" json:"prefix"`
}

// Card is the latest value of a series and its change against the previous observation
type Card struct {
	Subject      string          `json:"subject"`
	Label        string          `json:"label"`
	Value        decimal.Decimal `json:"value"`
	Previous     decimal.Decimal `json:"previous"`
	Change       decimal.Decimal `json:"change"` // fraction, 0.0123 = 1.23%
	Display      string          `json:"display"`
	DeltaDisplay string          `json:"delta_display"`
}

// Compute builds the card of spec from the full price table.
// Failures are returned inside the Result so one card never blocks the others.
func Compute(prices contracts.Table, spec Spec) contracts.Result[Card] {
	obs, err := prices.Observations(spec.Subject)
	if err != nil {
		return Unavailable(spec, err)
	}
	if len(obs) < 2 {
		return Unavailable(spec, fmt.Errorf("%w: %s has %d observations", contracts.ErrInsufficientData, spec.Subject, len(obs)))
	}

	current := decimal.NewFromFloat(obs[len(obs)-1])
	previous := decimal.NewFromFloat(obs[len(obs)-2])
	if previous.IsZero() {
		return Unavailable(spec, fmt.Errorf("%w: %s previous close is zero", contracts.ErrDomain, spec.Subject))
	}

	change := current.Div(previous).Sub(decimal.NewFromInt(1))

	return contracts.OK(Card{
		Subject:      spec.Subject,
		Label:        labelOf(spec),
		Value:        current,
		Previous:     previous,
		Change:       change,
		Display:      spec.Prefix + current.StringFixed(int32(spec.Decimals)),
		DeltaDisplay: change.Shift(2).StringFixed(2) + "%",
	})
}

// Unavailable is the N/A card of spec carrying err
func Unavailable(spec Spec, err error) contracts.Result[Card] {
	return contracts.FailWith(Card{
		Subject:      spec.Subject,
		Label:        labelOf(spec),
		Display:      NotAvailable,
		DeltaDisplay: NotAvailable,
	}, err)
}

func labelOf(spec Spec) string {
	if spec.Label == "" {
		return spec.Subject
	}
	return spec.Label
}

// ComputeAll computes every card independently, in spec order
func ComputeAll(prices contracts.Table, specs []Spec) []contracts.Result[Card] {
	out := make([]contracts.Result[Card], 0, len(specs))
	for _, s := range specs {
		out = append(out, Compute(prices, s))
	}
	return out
}

// Display returns the value and delta strings of r, or N/A for both on failure
func Display(r contracts.Result[Card]) (value, delta string) {
	if !r.Ok() {
		return NotAvailable, NotAvailable
	}
	return r.Value.Display, r.Value.DeltaDisplay
}
