package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/wonny/findash/internal/contracts"
	"github.com/wonny/findash/pkg/httputil"
)

// chartResponse mirrors the subset of /v8/finance/chart we read
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Symbol    string `json:"symbol"`
		Currency  string `json:"currency"`
		GMTOffset int64  `json:"gmtoffset"`
	} `json:"meta"`
	Timestamps []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Series is the daily close history of one symbol, dates ascending
type Series struct {
	Symbol   string
	Currency string
	Dates    []time.Time
	Closes   []float64
}

// Len returns the number of observations
func (s Series) Len() int {
	return len(s.Dates)
}

// FetchCloses fetches daily closes of symbol between from and to.
// Every failure is wrapped in ErrFetchFailure or ErrEmptyResult.
func (c *Client) FetchCloses(ctx context.Context, symbol string, from, to time.Time) (Series, error) {
	params := url.Values{}
	params.Set("period1", strconv.FormatInt(from.Unix(), 10))
	params.Set("period2", strconv.FormatInt(to.Unix(), 10))
	params.Set("interval", "1d")
	params.Set("events", "history")

	fullURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(symbol), params.Encode())

	var resp chartResponse
	if err := c.httpClient.GetJSON(ctx, fullURL, &resp); err != nil {
		var statusErr *httputil.StatusError
		if errors.As(err, &statusErr) {
			// Yahoo answers unknown symbols with 404 and a chart.error body
			return Series{}, fmt.Errorf("%w: %s: HTTP %d", contracts.ErrFetchFailure, symbol, statusErr.StatusCode)
		}
		return Series{}, fmt.Errorf("%w: %s: %v", contracts.ErrFetchFailure, symbol, err)
	}

	return parseChartResponse(symbol, resp)
}

// parseChartResponse converts a chart payload into a Series.
// Null closes are skipped; timestamps are shifted into exchange time before truncating to a date.
func parseChartResponse(symbol string, resp chartResponse) (Series, error) {
	if resp.Chart.Error != nil {
		return Series{}, fmt.Errorf("%w: %s: %s (%s)", contracts.ErrFetchFailure, symbol,
			resp.Chart.Error.Description, resp.Chart.Error.Code)
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return Series{}, fmt.Errorf("%w: %s: no chart data", contracts.ErrEmptyResult, symbol)
	}

	result := resp.Chart.Result[0]
	closes := result.Indicators.Quote[0].Close
	n := len(result.Timestamps)
	if len(closes) < n {
		n = len(closes)
	}

	// one close per calendar date, the latest timestamp wins
	byDay := make(map[time.Time]float64, n)
	for i := 0; i < n; i++ {
		if closes[i] == nil {
			continue
		}
		ts := time.Unix(result.Timestamps[i]+result.Meta.GMTOffset, 0).UTC()
		byDay[contracts.Day(ts)] = *closes[i]
	}
	if len(byDay) == 0 {
		return Series{}, fmt.Errorf("%w: %s: all closes are null", contracts.ErrEmptyResult, symbol)
	}

	s := Series{
		Symbol:   symbol,
		Currency: result.Meta.Currency,
		Dates:    make([]time.Time, 0, len(byDay)),
		Closes:   make([]float64, 0, len(byDay)),
	}
	for d := range byDay {
		s.Dates = append(s.Dates, d)
	}
	sort.Slice(s.Dates, func(i, j int) bool { return s.Dates[i].Before(s.Dates[j]) })
	for _, d := range s.Dates {
		s.Closes = append(s.Closes, byDay[d])
	}

	return s, nil
}
