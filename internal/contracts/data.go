package contracts

import "time"

// FetchResult is what the market data fetcher hands to the cache.
// It is never an error: an empty Table plus Diagnostic means "no data".
type FetchResult struct {
	Table      Table             `json:"table"`
	Diagnostic string            `json:"diagnostic,omitempty"`
	Failed     map[string]string `json:"failed,omitempty"` // symbol → reason
	FetchedAt  time.Time         `json:"fetched_at"`
}

// OK reports whether any data came back
func (r FetchResult) OK() bool {
	return !r.Table.IsEmpty()
}

// Clone deep-copies the result so cached snapshots stay immutable
func (r FetchResult) Clone() FetchResult {
	out := r
	out.Table = r.Table.Clone()
	if r.Failed != nil {
		out.Failed = make(map[string]string, len(r.Failed))
		for k, v := range r.Failed {
			out.Failed[k] = v
		}
	}
	return out
}

// DataQualitySnapshot summarises how complete a fetched price table is
type DataQualitySnapshot struct {
	AsOf         time.Time          `json:"as_of"`
	Requested    int                `json:"requested"`
	Fetched      int                `json:"fetched"`
	Rows         int                `json:"rows"`
	Coverage     map[string]float64 `json:"coverage"` // share of non-missing cells per column
	Failed       map[string]string  `json:"failed,omitempty"`
	QualityScore float64            `json:"quality_score"` // 0.0 ~ 1.0
}

// IsComplete is true when every requested symbol was fetched
func (d *DataQualitySnapshot) IsComplete() bool {
	return d.Requested > 0 && d.Fetched == d.Requested
}

// CoverageRate returns the average coverage across columns
func (d *DataQualitySnapshot) CoverageRate() float64 {
	if len(d.Coverage) == 0 {
		return 0.0
	}

	total := 0.0
	for _, rate := range d.Coverage {
		total += rate
	}

	return total / float64(len(d.Coverage))
}

// Assess builds the quality snapshot of a fetch for the requested symbols
func Assess(result FetchResult, requested int) DataQualitySnapshot {
	t := result.Table
	snap := DataQualitySnapshot{
		Requested: requested,
		Fetched:   t.Width(),
		Rows:      t.Rows(),
		Coverage:  make(map[string]float64, t.Width()),
		Failed:    result.Failed,
	}
	if t.Rows() > 0 {
		snap.AsOf = t.Dates[t.Rows()-1]
	}
	for c, label := range t.Columns {
		present := 0
		for _, v := range t.Values[c] {
			if !IsMissing(v) {
				present++
			}
		}
		if t.Rows() > 0 {
			snap.Coverage[label] = float64(present) / float64(t.Rows())
		}
	}
	if requested > 0 {
		snap.QualityScore = float64(snap.Fetched) / float64(requested) * snap.CoverageRate()
	}
	return snap
}
