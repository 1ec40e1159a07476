package transform

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/wonny/findash/internal/contracts"
)

// DefaultBins matches the returns distribution chart
const DefaultBins = 100

// Histogram is an overlay histogram: every series shares the same bin edges
type Histogram struct {
	Edges  []float64         `json:"edges"` // len(bins)+1
	Series []HistogramSeries `json:"series"`
}

// HistogramSeries holds the bin counts of one column
type HistogramSeries struct {
	Label  string    `json:"label"`
	Counts []float64 `json:"counts"`
	N      int       `json:"n"`
}

// BuildHistogram bins every column of t over the common [min, max] range
func BuildHistogram(t contracts.Table, bins int) (Histogram, error) {
	if bins < 1 {
		return Histogram{}, fmt.Errorf("%w: bins must be positive, got %d", contracts.ErrDomain, bins)
	}

	samples := make([][]float64, t.Width())
	lo, hi := math.Inf(1), math.Inf(-1)
	total := 0
	for c, col := range t.Values {
		for _, v := range col {
			if contracts.IsMissing(v) || math.IsInf(v, 0) {
				continue
			}
			samples[c] = append(samples[c], v)
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		total += len(samples[c])
	}
	if total == 0 {
		return Histogram{}, fmt.Errorf("%w: no observations to bin", contracts.ErrInsufficientData)
	}
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}

	edges := floats.Span(make([]float64, bins+1), lo, hi)
	// stat.Histogram requires every sample strictly below the last divider
	dividers := append([]float64(nil), edges...)
	dividers[bins] = math.Nextafter(hi, math.Inf(1))

	h := Histogram{Edges: edges, Series: make([]HistogramSeries, t.Width())}
	for c, label := range t.Columns {
		counts := make([]float64, bins)
		if len(samples[c]) > 0 {
			sort.Float64s(samples[c])
			stat.Histogram(counts, dividers, samples[c], nil)
		}
		h.Series[c] = HistogramSeries{Label: label, Counts: counts, N: len(samples[c])}
	}

	return h, nil
}
