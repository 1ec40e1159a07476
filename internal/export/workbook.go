package export

import (
	"fmt"
	"io"
	"math"

	"github.com/guregu/null/v6"
	"github.com/xuri/excelize/v2"

	"github.com/wonny/findash/internal/contracts"
	"github.com/wonny/findash/internal/dashboard"
	"github.com/wonny/findash/internal/kpi"
)

// Sheet names, in workbook order
const (
	SheetSummary     = "Summary"
	SheetKPIs        = "KPIs"
	SheetAlerts      = "Alerts"
	SheetPrices      = "Prices"
	SheetGrowth      = "Growth"
	SheetReturns     = "Returns"
	SheetCorrelation = "Correlation"
)

// ContentType is the MIME type of the written workbook
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Workbook builds an xlsx file of s. The caller closes the file.
// A view that failed gets its sheet anyway, holding the error in A1.
func Workbook(s *dashboard.Snapshot) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		f.Close()
		return nil, err
	}
	for _, name := range []string{SheetKPIs, SheetAlerts, SheetPrices, SheetGrowth, SheetReturns, SheetCorrelation} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	w := &writer{f: f}
	w.summary(s)
	w.kpis(s)
	w.alerts(s)
	w.table(SheetPrices, s.Tail)
	w.table(SheetGrowth, s.Growth)
	w.table(SheetReturns, s.Returns)
	w.correlation(s)

	if w.err != nil {
		f.Close()
		return nil, w.err
	}
	return f, nil
}

// Write streams the workbook of s to out
func Write(out io.Writer, s *dashboard.Snapshot) error {
	f, err := Workbook(s)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// SaveAs writes the workbook of s to path
func SaveAs(path string, s *dashboard.Snapshot) error {
	f, err := Workbook(s)
	if err != nil {
		return err
	}
	defer f.Close()

	return f.SaveAs(path)
}

// writer keeps the first error so sheet builders stay linear
type writer struct {
	f   *excelize.File
	err error
}

func (w *writer) row(sheet string, r int, values ...interface{}) {
	if w.err != nil {
		return
	}
	start, err := excelize.CoordinatesToCellName(1, r)
	if err != nil {
		w.err = err
		return
	}
	if err := w.f.SetSheetRow(sheet, start, &values); err != nil {
		w.err = fmt.Errorf("%s row %d: %w", sheet, r, err)
	}
}

// cell leaves null values blank
func cell(v null.Float) interface{} {
	if !v.Valid {
		return nil
	}
	return v.Float64
}

func (w *writer) unavailable(sheet string, err error) {
	w.row(sheet, 1, "Not available", err.Error(), contracts.Kind(err))
}

func (w *writer) summary(s *dashboard.Snapshot) {
	rows := [][]interface{}{
		{"Dashboard", s.DashboardID},
		{"Run", s.RunID},
		{"Status", string(s.Status)},
		{"Generated", s.GeneratedAt.UTC()},
		{"Data as of", s.FetchedAt.UTC()},
		{"Config hash", s.ConfigHash},
		{"Range fallback", s.RangeFellBack},
	}
	if !s.Range.Start.IsZero() {
		rows = append(rows,
			[]interface{}{"Range start", s.Range.Start.Format(contracts.DateLayout)},
			[]interface{}{"Range end", s.Range.End.Format(contracts.DateLayout)},
		)
	}
	for i, r := range rows {
		w.row(SheetSummary, i+1, r...)
	}
	next := len(rows) + 2
	for i, d := range s.Diagnostics {
		label := ""
		if i == 0 {
			label = "Diagnostics"
		}
		w.row(SheetSummary, next+i, label, d)
	}
}

func (w *writer) kpis(s *dashboard.Snapshot) {
	w.row(SheetKPIs, 1, "Indicator", "Subject", "Value", "Previous", "Change", "Display", "Delta")
	for i, r := range s.KPIs {
		value, delta := kpi.Display(r)
		c := r.Value
		if !r.Ok() {
			w.row(SheetKPIs, i+2, c.Label, c.Subject, nil, nil, nil, value, delta)
			continue
		}
		w.row(SheetKPIs, i+2, c.Label, c.Subject,
			c.Value.InexactFloat64(), c.Previous.InexactFloat64(), c.Change.InexactFloat64(), value, delta)
	}
}

func (w *writer) alerts(s *dashboard.Snapshot) {
	w.row(SheetAlerts, 1, "Subject", "Severity", "Band", "Value", "Previous", "Change", "Message")
	for i, a := range s.Alerts {
		w.row(SheetAlerts, i+2, a.Subject, string(a.Severity), a.Band,
			cell(a.Value), cell(a.Previous), cell(a.Change), a.Message)
	}
}

func (w *writer) table(sheet string, r contracts.Result[contracts.Table]) {
	t, err := r.Get()
	if err != nil {
		w.unavailable(sheet, err)
		return
	}

	header := make([]interface{}, 0, t.Width()+1)
	header = append(header, "Date")
	for _, c := range t.Columns {
		header = append(header, c)
	}
	w.row(sheet, 1, header...)

	for i, d := range t.Dates {
		values := make([]interface{}, 0, t.Width()+1)
		values = append(values, d.Format(contracts.DateLayout))
		for c := range t.Columns {
			v := t.Values[c][i]
			if contracts.IsMissing(v) {
				values = append(values, nil)
				continue
			}
			values = append(values, v)
		}
		w.row(sheet, i+2, values...)
	}
}

func (w *writer) correlation(s *dashboard.Snapshot) {
	m, err := s.Correlation.Get()
	if err != nil {
		w.unavailable(SheetCorrelation, err)
		return
	}

	header := make([]interface{}, 0, m.Size()+1)
	header = append(header, "")
	for _, l := range m.Labels {
		header = append(header, l)
	}
	w.row(SheetCorrelation, 1, header...)

	for i, label := range m.Labels {
		values := make([]interface{}, 0, m.Size()+1)
		values = append(values, label)
		for j := 0; j < m.Size(); j++ {
			v := m.At(i, j)
			if math.IsNaN(v) {
				values = append(values, nil)
				continue
			}
			values = append(values, v)
		}
		w.row(SheetCorrelation, i+2, values...)
	}
}
