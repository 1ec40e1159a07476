package yahoo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/findash/internal/contracts"
)

// Fetch downloads closes for every symbol over lookback and merges them into one table.
// It never returns an error: failed symbols are listed in Failed, and when nothing
// could be fetched the table is empty and Diagnostic says why.
// A single symbol yields the same shape as many: a one-column table.
func (c *Client) Fetch(ctx context.Context, symbols []string, lookback contracts.Lookback) contracts.FetchResult {
	symbols = dedupe(symbols)
	now := c.now()
	result := contracts.FetchResult{
		Table:     contracts.EmptyTable(),
		Failed:    make(map[string]string),
		FetchedAt: now,
	}

	if len(symbols) == 0 {
		result.Diagnostic = "no symbols requested"
		return result
	}

	from, to := lookback.Window(now)

	var (
		mu     sync.Mutex
		series = make(map[string]Series, len(symbols))
	)

	g := new(errgroup.Group)
	g.SetLimit(c.concurrency)
	for _, sym := range symbols {
		sym := sym
		g.Go(func() error {
			s, err := c.FetchCloses(ctx, sym, from, to)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed[sym] = err.Error()
				c.logger.WithFields(map[string]interface{}{
					"symbol": sym,
					"kind":   contracts.Kind(err),
				}).WithError(err).Warn("Symbol fetch failed")
				return nil
			}
			series[sym] = s
			return nil
		})
	}
	_ = g.Wait()

	result.Table = merge(symbols, series)

	switch {
	case len(series) == 0:
		result.Diagnostic = fmt.Sprintf("no data returned for any of %d symbols: %s",
			len(symbols), describeFailures(symbols, result.Failed))
	case len(result.Failed) > 0:
		result.Diagnostic = fmt.Sprintf("%d of %d symbols unavailable: %s",
			len(result.Failed), len(symbols), describeFailures(symbols, result.Failed))
	}
	if len(result.Failed) == 0 {
		result.Failed = nil
	}

	c.logger.WithFields(map[string]interface{}{
		"requested": len(symbols),
		"fetched":   len(series),
		"rows":      result.Table.Rows(),
		"lookback":  lookback.String(),
	}).Info("Fetched close prices")

	return result
}

// merge aligns the series on the union of their dates, columns in request order
func merge(symbols []string, series map[string]Series) contracts.Table {
	if len(series) == 0 {
		return contracts.EmptyTable()
	}

	seen := make(map[time.Time]struct{})
	var dates []time.Time
	var columns []string
	for _, sym := range symbols {
		s, ok := series[sym]
		if !ok {
			continue
		}
		columns = append(columns, sym)
		for _, d := range s.Dates {
			if _, dup := seen[d]; !dup {
				seen[d] = struct{}{}
				dates = append(dates, d)
			}
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	row := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		row[d] = i
	}

	t := contracts.NewTable(dates, columns)
	for c, sym := range columns {
		s := series[sym]
		for i, d := range s.Dates {
			t.Values[c][row[d]] = s.Closes[i]
		}
	}
	return t
}

func dedupe(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	seen := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func describeFailures(symbols []string, failed map[string]string) string {
	parts := make([]string, 0, len(failed))
	for _, sym := range symbols {
		if reason, ok := failed[sym]; ok {
			parts = append(parts, reason)
		}
	}
	return strings.Join(parts, "; ")
}
