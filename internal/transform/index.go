package transform

import (
	"fmt"

	"github.com/wonny/findash/internal/contracts"
)

// IndexBase is the value every growth index starts from
const IndexBase = 100.0

// GrowthIndex rescales every column so its first row equals 100.
// A zero or missing first value makes the whole index undefined.
func GrowthIndex(t contracts.Table) (contracts.Table, error) {
	if t.Rows() == 0 {
		return contracts.Table{}, fmt.Errorf("%w: growth index needs at least 1 row", contracts.ErrInsufficientData)
	}

	out := contracts.NewTable(t.Dates, t.Columns)
	for c, col := range t.Values {
		base := col[0]
		if contracts.IsMissing(base) || base == 0 {
			return contracts.Table{}, fmt.Errorf("%w: column %q has base value %v on %s",
				contracts.ErrDomain, t.Columns[c], base, t.Dates[0].Format(contracts.DateLayout))
		}
		for r, v := range col {
			if !contracts.IsMissing(v) {
				out.Values[c][r] = v / base * IndexBase
			}
		}
	}

	return out, nil
}

// DailyReturns is the row-over-row fractional change with the undefined first row dropped.
// Fewer than 2 rows yields an empty table with the same columns.
// A cell is missing when either price is missing or the previous price is zero.
func DailyReturns(t contracts.Table) contracts.Table {
	if t.Rows() < 2 {
		return contracts.EmptyTable(t.Columns...)
	}

	out := contracts.NewTable(t.Dates[1:], t.Columns)
	for c, col := range t.Values {
		for r := 1; r < len(col); r++ {
			prev, cur := col[r-1], col[r]
			if contracts.IsMissing(prev) || contracts.IsMissing(cur) || prev == 0 {
				continue
			}
			out.Values[c][r-1] = cur/prev - 1
		}
	}

	return out
}

// GrowthIndexByColumn rescales each column by its own first non-missing value.
// Cells before that value stay missing, so a late listing never shortens the
// other columns. A column with no value at all stays missing; a zero base is ErrDomain.
func GrowthIndexByColumn(t contracts.Table) (contracts.Table, error) {
	if t.Rows() == 0 {
		return contracts.Table{}, fmt.Errorf("%w: growth index needs at least 1 row", contracts.ErrInsufficientData)
	}

	out := contracts.NewTable(t.Dates, t.Columns)
	for c, col := range t.Values {
		first := -1
		for r, v := range col {
			if !contracts.IsMissing(v) {
				first = r
				break
			}
		}
		if first < 0 {
			continue
		}
		base := col[first]
		if base == 0 {
			return contracts.Table{}, fmt.Errorf("%w: column %q has base value 0 on %s",
				contracts.ErrDomain, t.Columns[c], t.Dates[first].Format(contracts.DateLayout))
		}
		for r := first; r < len(col); r++ {
			if !contracts.IsMissing(col[r]) {
				out.Values[c][r] = col[r] / base * IndexBase
			}
		}
	}

	return out, nil
}
