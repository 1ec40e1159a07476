package contracts

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/guregu/null/v6"
)

// DateLayout is the wire format of table dates
const DateLayout = "2006-01-02"

// Table is a date-indexed, label-columned matrix of floats.
// ⭐ SSOT: 가격/지수/수익률 테이블은 모두 이 타입
// Values is column-major: Values[c][r] is column c at Dates[r]. NaN marks a missing cell.
// Dates are UTC midnights, strictly ascending.
type Table struct {
	Dates   []time.Time
	Columns []string
	Values  [][]float64
}

// Missing is the value of an absent cell
var Missing = math.NaN()

// IsMissing reports whether v is an absent cell
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// Day truncates t to its UTC calendar date
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NewTable allocates a table with every cell missing
func NewTable(dates []time.Time, columns []string) Table {
	t := Table{
		Dates:   append([]time.Time(nil), dates...),
		Columns: append([]string(nil), columns...),
		Values:  make([][]float64, len(columns)),
	}
	for c := range t.Values {
		col := make([]float64, len(dates))
		for r := range col {
			col[r] = Missing
		}
		t.Values[c] = col
	}
	return t
}

// EmptyTable has the given columns and no rows
func EmptyTable(columns ...string) Table {
	return NewTable(nil, columns)
}

func (t Table) Rows() int  { return len(t.Dates) }
func (t Table) Width() int { return len(t.Columns) }

// IsEmpty is true when there is nothing to display
func (t Table) IsEmpty() bool {
	return t.Rows() == 0 || t.Width() == 0
}

// Index returns the position of label or -1
func (t Table) Index(label string) int {
	for i, c := range t.Columns {
		if c == label {
			return i
		}
	}
	return -1
}

func (t Table) Has(label string) bool {
	return t.Index(label) >= 0
}

// Column returns the backing slice of label; callers must not mutate it
func (t Table) Column(label string) ([]float64, error) {
	i := t.Index(label)
	if i < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, label)
	}
	return t.Values[i], nil
}

// Observations returns the non-missing values of label in date order
func (t Table) Observations(label string) ([]float64, error) {
	col, err := t.Column(label)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(col))
	for _, v := range col {
		if !IsMissing(v) {
			out = append(out, v)
		}
	}
	return out, nil
}

// Clone deep-copies the table
func (t Table) Clone() Table {
	out := Table{
		Dates:   append([]time.Time(nil), t.Dates...),
		Columns: append([]string(nil), t.Columns...),
		Values:  make([][]float64, len(t.Values)),
	}
	for c, col := range t.Values {
		out.Values[c] = append([]float64(nil), col...)
	}
	return out
}

// Tail returns a copy of the last n rows
func (t Table) Tail(n int) Table {
	if n < 0 {
		n = 0
	}
	start := t.Rows() - n
	if start < 0 {
		start = 0
	}
	return t.slice(start, t.Rows())
}

func (t Table) slice(from, to int) Table {
	out := NewTable(t.Dates[from:to], t.Columns)
	for c := range t.Values {
		copy(out.Values[c], t.Values[c][from:to])
	}
	return out
}

// Validate checks shape, ascending unique dates and unique labels
func (t Table) Validate() error {
	if len(t.Values) != len(t.Columns) {
		return fmt.Errorf("table has %d columns but %d value columns", len(t.Columns), len(t.Values))
	}
	seen := make(map[string]struct{}, len(t.Columns))
	for c, label := range t.Columns {
		if _, dup := seen[label]; dup {
			return fmt.Errorf("duplicate column %q", label)
		}
		seen[label] = struct{}{}
		if len(t.Values[c]) != len(t.Dates) {
			return fmt.Errorf("column %q has %d rows, index has %d", label, len(t.Values[c]), len(t.Dates))
		}
	}
	for r := 1; r < len(t.Dates); r++ {
		if !t.Dates[r].After(t.Dates[r-1]) {
			return fmt.Errorf("dates not strictly ascending at row %d (%s)", r, t.Dates[r].Format(DateLayout))
		}
	}
	return nil
}

type tableJSON struct {
	Dates   []string       `json:"dates"`
	Columns []string       `json:"columns"`
	Values  [][]null.Float `json:"values"` // column-major, null = missing
}

// MarshalJSON writes dates as YYYY-MM-DD and missing cells as null
func (t Table) MarshalJSON() ([]byte, error) {
	out := tableJSON{
		Dates:   make([]string, len(t.Dates)),
		Columns: t.Columns,
		Values:  make([][]null.Float, len(t.Values)),
	}
	if out.Columns == nil {
		out.Columns = []string{}
	}
	for r, d := range t.Dates {
		out.Dates[r] = d.Format(DateLayout)
	}
	for c, col := range t.Values {
		cells := make([]null.Float, len(col))
		for r, v := range col {
			cells[r] = null.NewFloat(v, !IsMissing(v) && !math.IsInf(v, 0))
		}
		out.Values[c] = cells
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON
func (t *Table) UnmarshalJSON(data []byte) error {
	var in tableJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	dates := make([]time.Time, len(in.Dates))
	for r, s := range in.Dates {
		d, err := time.Parse(DateLayout, s)
		if err != nil {
			return fmt.Errorf("parse table date: %w", err)
		}
		dates[r] = d
	}
	out := NewTable(dates, in.Columns)
	if len(in.Values) != len(in.Columns) {
		return fmt.Errorf("table has %d columns but %d value columns", len(in.Columns), len(in.Values))
	}
	for c, cells := range in.Values {
		if len(cells) != len(dates) {
			return fmt.Errorf("column %q has %d rows, index has %d", in.Columns[c], len(cells), len(dates))
		}
		for r, cell := range cells {
			if cell.Valid {
				out.Values[c][r] = cell.Float64
			}
		}
	}
	*t = out
	return nil
}
