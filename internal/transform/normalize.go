package transform

import (
	"fmt"

	"github.com/wonny/findash/internal/contracts"
)

// Normalize renames provider symbols to display labels and forward-fills gaps.
// Unmapped symbols keep their name. Leading gaps (before a column's first
// observation) stay missing. The input is not modified.
func Normalize(raw contracts.Table, renames map[string]string) (contracts.Table, error) {
	if err := raw.Validate(); err != nil {
		return contracts.Table{}, fmt.Errorf("%w: %v", contracts.ErrDomain, err)
	}

	out := ForwardFill(raw)
	seen := make(map[string]string, out.Width())
	for c, symbol := range out.Columns {
		label := symbol
		if mapped, ok := renames[symbol]; ok && mapped != "" {
			label = mapped
		}
		if prev, dup := seen[label]; dup {
			return contracts.Table{}, fmt.Errorf("%w: %q and %q both map to %q", contracts.ErrDomain, prev, symbol, label)
		}
		seen[label] = symbol
		out.Columns[c] = label
	}

	return out, nil
}

// ForwardFill propagates the last known value of each column into later gaps
func ForwardFill(t contracts.Table) contracts.Table {
	out := t.Clone()
	for _, col := range out.Values {
		last := contracts.Missing
		for r, v := range col {
			if contracts.IsMissing(v) {
				col[r] = last
				continue
			}
			last = v
		}
	}
	return out
}
