package export

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/wonny/findash/internal/contracts"
	"github.com/wonny/findash/internal/dashboard"
	"github.com/wonny/findash/internal/dashboardconfig"
	"github.com/wonny/findash/internal/pipeline"
)

func snapshot(raw contracts.FetchResult) *dashboard.Snapshot {
	cfg := dashboardconfig.Default()
	return &dashboard.Snapshot{
		RunID:       "run-1",
		DashboardID: cfg.Meta.DashboardID,
		GeneratedAt: time.Date(2024, 4, 3, 12, 0, 0, 0, time.UTC),
		FetchedAt:   time.Date(2024, 4, 3, 11, 0, 0, 0, time.UTC),
		Output:      pipeline.Run(pipeline.Input{Raw: raw, Config: cfg}),
	}
}

func fetch() contracts.FetchResult {
	symbols := dashboardconfig.Default().Symbols()
	dates := []time.Time{
		time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 3, 0, 0, 0, 0, time.UTC),
	}
	tbl := contracts.NewTable(dates, symbols)
	for c, sym := range symbols {
		base := 100 + float64(c)
		if sym == "NVDA" {
			base = 800
		}
		tbl.Values[c] = []float64{base, base * (1 + 0.01*float64(c+1)), base}
	}
	// AAPL starts trading a day late
	tbl.Values[0][0] = contracts.Missing
	return contracts.FetchResult{Table: tbl, FetchedAt: dates[2]}
}

func open(t *testing.T, s *dashboard.Snapshot) *excelize.File {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, s))
	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestWrite_Sheets(t *testing.T) {
	f := open(t, snapshot(fetch()))

	assert.Equal(t,
		[]string{SheetSummary, SheetKPIs, SheetAlerts, SheetPrices, SheetGrowth, SheetReturns, SheetCorrelation},
		f.GetSheetList())

	summary, err := f.GetRows(SheetSummary)
	require.NoError(t, err)
	assert.Equal(t, []string{"Dashboard", "findash_default"}, summary[0])
	assert.Equal(t, []string{"Status", "ok"}, summary[2])

	prices, err := f.GetRows(SheetPrices)
	require.NoError(t, err)
	require.Len(t, prices, 4)
	assert.Equal(t, []string{"Date", "AAPL", "MSFT", "NVDA", "GOOGL", "AMZN", "META", "TSLA"}, prices[0])
	assert.Equal(t, "2024-04-01", prices[1][0])
	assert.Equal(t, "", prices[1][1], "missing cell stays blank")
	assert.Equal(t, "800", prices[1][3])

	alerts, err := f.GetRows(SheetAlerts)
	require.NoError(t, err)
	require.Len(t, alerts, 3)
	assert.Equal(t, []string{"NVDA", "opportunity", "euphoria"}, alerts[1][:3])

	corr, err := f.GetRows(SheetCorrelation)
	require.NoError(t, err)
	require.Len(t, corr, 8)
	assert.Equal(t, "AAPL", corr[1][0])
	assert.Equal(t, "1", corr[2][2], "diagonal")
}

func TestWrite_HaltedSnapshot(t *testing.T) {
	f := open(t, snapshot(contracts.FetchResult{Diagnostic: "no data returned"}))

	for _, sheet := range []string{SheetPrices, SheetGrowth, SheetReturns, SheetCorrelation} {
		rows, err := f.GetRows(sheet)
		require.NoError(t, err)
		require.NotEmpty(t, rows, sheet)
		assert.Equal(t, "Not available", rows[0][0], sheet)
		assert.Equal(t, "empty_result", rows[0][2], sheet)
	}

	kpis, err := f.GetRows(SheetKPIs)
	require.NoError(t, err)
	require.Len(t, kpis, 5)
	assert.Equal(t, "Apple (AAPL)", kpis[1][0])
	assert.Equal(t, []string{"N/A", "N/A"}, kpis[1][5:7])

	summary, err := f.GetRows(SheetSummary)
	require.NoError(t, err)
	assert.Equal(t, []string{"Status", "halted"}, summary[2])
}

func TestSaveAs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashboard.xlsx")
	require.NoError(t, SaveAs(path, snapshot(fetch())))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Len(t, f.GetSheetList(), 7)
}
