package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/wonny/findash/internal/contracts"
)

// Range is a closed date interval [Start, End]
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewRange truncates both bounds to calendar dates
func NewRange(start, end time.Time) Range {
	return Range{Start: contracts.Day(start), End: contracts.Day(end)}
}

// Validate signals ErrInvalidRange when Start is after End
func (r Range) Validate() error {
	if r.Start.After(r.End) {
		return fmt.Errorf("%w: start %s is after end %s", contracts.ErrInvalidRange,
			r.Start.Format(contracts.DateLayout), r.End.Format(contracts.DateLayout))
	}
	return nil
}

// Contains is inclusive on both ends
func (r Range) Contains(d time.Time) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// FullRange spans every row of t
func FullRange(t contracts.Table) Range {
	if t.Rows() == 0 {
		return Range{}
	}
	return Range{Start: t.Dates[0], End: t.Dates[t.Rows()-1]}
}

// Policy decides what an invalid range turns into
type Policy string

const (
	// PolicyFallback replaces an invalid range by the full table range
	PolicyFallback Policy = "fallback"
	// PolicyReject surfaces ErrInvalidRange
	PolicyReject Policy = "reject"
)

// Valid reports whether p is a known policy
func (p Policy) Valid() bool {
	return p == PolicyFallback || p == PolicyReject
}

// Resolve turns a caller range into the effective range for t.
// nil or zero bounds default to the table bounds. fellBack is true when an
// invalid range was replaced under PolicyFallback.
func Resolve(t contracts.Table, requested *Range, policy Policy) (effective Range, fellBack bool, err error) {
	full := FullRange(t)
	if requested == nil {
		return full, false, nil
	}

	r := *requested
	if r.Start.IsZero() {
		r.Start = full.Start
	}
	if r.End.IsZero() {
		r.End = full.End
	}

	if err := r.Validate(); err != nil {
		if policy == PolicyReject {
			return Range{}, false, err
		}
		return full, true, nil
	}

	return r, false, nil
}

// Rows keeps the rows of t whose date lies in r, in order
func Rows(t contracts.Table, r Range) (contracts.Table, error) {
	if err := r.Validate(); err != nil {
		return contracts.Table{}, err
	}

	from, to := -1, -1
	for i, d := range t.Dates {
		if r.Contains(d) {
			if from < 0 {
				from = i
			}
			to = i + 1
		}
	}
	if from < 0 {
		return contracts.EmptyTable(t.Columns...), nil
	}

	out := contracts.NewTable(t.Dates[from:to], t.Columns)
	for c := range t.Values {
		copy(out.Values[c], t.Values[c][from:to])
	}
	return out, nil
}

// Columns keeps the requested labels in request order.
// An empty request is not an error: it yields a table with zero columns.
func Columns(t contracts.Table, assets []string) (contracts.Table, error) {
	labels := make([]string, 0, len(assets))
	seen := make(map[string]struct{}, len(assets))
	var missing []string
	for _, a := range assets {
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		if !t.Has(a) {
			missing = append(missing, a)
			continue
		}
		labels = append(labels, a)
	}
	if len(missing) > 0 {
		return contracts.Table{}, fmt.Errorf("%w: %s", contracts.ErrMissingColumn, strings.Join(missing, ", "))
	}

	out := contracts.NewTable(t.Dates, labels)
	for c, label := range labels {
		copy(out.Values[c], t.Values[t.Index(label)])
	}
	return out, nil
}

// Apply narrows t to r and assets
func Apply(t contracts.Table, r Range, assets []string) (contracts.Table, error) {
	rows, err := Rows(t, r)
	if err != nil {
		return contracts.Table{}, err
	}
	return Columns(rows, assets)
}

// Partition splits assets into the labels present in t and the missing ones
func Partition(t contracts.Table, assets []string) (present, missing []string) {
	for _, a := range assets {
		if t.Has(a) {
			present = append(present, a)
		} else {
			missing = append(missing, a)
		}
	}
	return present, missing
}
