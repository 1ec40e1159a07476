package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wonny/findash/internal/alert"
	"github.com/wonny/findash/internal/contracts"
	"github.com/wonny/findash/internal/correlation"
	"github.com/wonny/findash/internal/dashboardconfig"
	"github.com/wonny/findash/internal/filter"
	"github.com/wonny/findash/internal/kpi"
	"github.com/wonny/findash/internal/transform"
)

// Status summarises a run
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusHalted   Status = "halted"
)

// Filters is what the caller chooses on every interaction
type Filters struct {
	// Assets are display labels. nil selects the default category, an empty slice selects nothing.
	Assets []string
	// Range nil means the full table; zero bounds default to the table bounds.
	Range *filter.Range
}

// Input is everything a run depends on; Run reads nothing else
type Input struct {
	Raw     contracts.FetchResult
	Config  *dashboardconfig.Config
	Filters Filters
}

// Output is the full set of derived views handed to the presentation layer.
// Each independent view is its own Result so one failure never hides the others.
type Output struct {
	Status      Status                        `json:"status"`
	Diagnostics []string                      `json:"diagnostics"`
	Quality     contracts.DataQualitySnapshot `json:"quality"`
	Prices      contracts.Table               `json:"-"`
	Err         error                         `json:"-"`

	Range         filter.Range `json:"range"`
	RangeFellBack bool         `json:"range_fell_back"`
	Assets        []string     `json:"assets"`
	Missing       []string     `json:"missing_assets,omitempty"`

	Growth      contracts.Result[contracts.Table]     `json:"growth"`
	Returns     contracts.Result[contracts.Table]     `json:"returns"`
	Histogram   contracts.Result[transform.Histogram] `json:"histogram"`
	Correlation contracts.Result[correlation.Matrix]  `json:"correlation"`
	Tail        contracts.Result[contracts.Table]     `json:"tail"`
	KPIs        []contracts.Result[kpi.Card]          `json:"kpis"`
	Alerts      []contracts.Alert                     `json:"alerts"`
	Thresholds  []alert.Threshold                     `json:"thresholds"`
}

// Halted reports whether the price table was unusable
func (o Output) Halted() bool {
	return o.Err != nil
}

// Run is the pure pipeline: (raw fetch, config, filters) → derived views.
// It has no side effects and no hidden state.
func Run(in Input) Output {
	cfg := in.Config
	out := Output{
		Quality:    contracts.Assess(in.Raw, len(cfg.Symbols())),
		Thresholds: alert.Thresholds(cfg.Alerts),
	}
	if in.Raw.Diagnostic != "" {
		out.Diagnostics = append(out.Diagnostics, in.Raw.Diagnostic)
	}

	if !in.Raw.OK() {
		err := fmt.Errorf("%w: %s", contracts.ErrEmptyResult, orDefault(in.Raw.Diagnostic, "no price data"))
		return halt(out, cfg, err)
	}

	prices, err := transform.Normalize(in.Raw.Table, cfg.RenameMap())
	if err != nil {
		return halt(out, cfg, err)
	}
	out.Prices = prices

	// full-table views: independent of the selection
	out.Alerts = alert.EvaluateAll(cfg.Alerts, prices)
	out.KPIs = kpi.ComputeAll(prices, cfg.KPIs)

	// selection
	requested := in.Filters.Assets
	if requested == nil {
		requested = cfg.DefaultAssets()
	}
	out.Assets, out.Missing = filter.Partition(prices, dedupe(requested))
	if out.Assets == nil {
		out.Assets = []string{}
	}
	if len(out.Missing) > 0 {
		out.Diagnostics = append(out.Diagnostics, fmt.Sprintf("%v: %s",
			contracts.ErrMissingColumn, strings.Join(out.Missing, ", ")))
	}
	selected, err := filter.Columns(prices, out.Assets)
	if err != nil {
		return halt(out, cfg, err)
	}

	out.Tail = contracts.OK(selected.Tail(cfg.View.TailRows))

	// range
	effective, fellBack, rangeErr := filter.Resolve(prices, in.Filters.Range, cfg.View.RangePolicy)
	out.Range, out.RangeFellBack = effective, fellBack
	if fellBack {
		out.Diagnostics = append(out.Diagnostics, fmt.Sprintf("%v: showing the full range %s to %s",
			contracts.ErrInvalidRange, effective.Start.Format(contracts.DateLayout), effective.End.Format(contracts.DateLayout)))
	}
	if rangeErr != nil {
		out.Diagnostics = append(out.Diagnostics, rangeErr.Error())
		out.Growth = contracts.Fail[contracts.Table](rangeErr)
		out.Returns = contracts.Fail[contracts.Table](rangeErr)
		out.Histogram = contracts.Fail[transform.Histogram](rangeErr)
		out.Correlation = contracts.Fail[correlation.Matrix](rangeErr)
		return finish(out)
	}

	// growth and returns are derived from the full history, then narrowed to the range
	out.Growth = growth(selected, effective)
	returns := returnsFor(selected, effective)
	out.Returns = returns

	if r, err := returns.Get(); err != nil {
		out.Histogram = contracts.Fail[transform.Histogram](err)
		out.Correlation = contracts.Fail[correlation.Matrix](err)
	} else {
		out.Histogram = result(transform.BuildHistogram(r, cfg.View.HistogramBins))
		out.Correlation = result(correlation.Compute(r))
	}

	return finish(out)
}

func growth(selected contracts.Table, r filter.Range) contracts.Result[contracts.Table] {
	idx, err := transform.GrowthIndexByColumn(selected)
	if err != nil {
		return contracts.Fail[contracts.Table](err)
	}
	return result(filter.Rows(idx, r))
}

func returnsFor(selected contracts.Table, r filter.Range) contracts.Result[contracts.Table] {
	return result(filter.Rows(transform.DailyReturns(selected), r))
}

func result[T any](v T, err error) contracts.Result[T] {
	if err != nil {
		return contracts.Fail[T](err)
	}
	return contracts.OK(v)
}

// halt fails every view that needs the price table; alerts and KPIs still
// name their subjects so each one shows as unavailable
func halt(out Output, cfg *dashboardconfig.Config, err error) Output {
	out.Err = err
	out.Status = StatusHalted
	out.Prices = contracts.EmptyTable()
	out.Assets = []string{}
	for _, r := range []*contracts.Result[contracts.Table]{&out.Growth, &out.Returns, &out.Tail} {
		*r = contracts.Fail[contracts.Table](err)
	}
	out.Histogram = contracts.Fail[transform.Histogram](err)
	out.Correlation = contracts.Fail[correlation.Matrix](err)

	out.Alerts = make([]contracts.Alert, 0, len(cfg.Alerts))
	for _, rule := range cfg.Alerts {
		out.Alerts = append(out.Alerts, alert.Unavailable(rule.Subject, err))
	}
	out.KPIs = make([]contracts.Result[kpi.Card], 0, len(cfg.KPIs))
	for _, spec := range cfg.KPIs {
		out.KPIs = append(out.KPIs, kpi.Unavailable(spec, err))
	}

	if !containsDiagnostic(out.Diagnostics, err) {
		out.Diagnostics = append(out.Diagnostics, err.Error())
	}
	return out
}

// finish derives the status from the individual results
func finish(out Output) Output {
	out.Status = StatusOK

	degraded := len(out.Quality.Failed) > 0 || len(out.Missing) > 0
	for _, k := range out.KPIs {
		if !k.Ok() {
			degraded = true
		}
	}
	for _, a := range out.Alerts {
		if a.Severity == contracts.SeverityUnavailable {
			degraded = true
		}
	}
	// "not computable" from a small selection is not a failure
	for _, err := range []error{out.Growth.Err, out.Returns.Err, out.Histogram.Err, out.Correlation.Err} {
		if err != nil && !errors.Is(err, contracts.ErrInsufficientData) {
			degraded = true
		}
	}

	if degraded {
		out.Status = StatusDegraded
	}
	return out
}

func containsDiagnostic(diags []string, err error) bool {
	for _, d := range diags {
		if strings.Contains(err.Error(), d) {
			return true
		}
	}
	return false
}

func dedupe(labels []string) []string {
	out := make([]string, 0, len(labels))
	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
