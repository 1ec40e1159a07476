package report

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/wonny/findash/internal/contracts"
	"github.com/wonny/findash/internal/dashboard"
	"github.com/wonny/findash/internal/kpi"
)

// TopPairs is how many correlation pairs the report lists from each end
const TopPairs = 3

// Markdown renders a snapshot as a markdown document.
// Failed views are rendered as a one-line notice instead of being dropped.
func Markdown(s *dashboard.Snapshot) string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", s.DashboardID)
	table(&buf, []string{"", ""}, [][]string{
		{"Status", string(s.Status)},
		{"Generated", s.GeneratedAt.UTC().Format("2006-01-02 15:04:05 MST")},
		{"Data as of", s.FetchedAt.UTC().Format("2006-01-02 15:04:05 MST")},
		{"Range", rangeLabel(s)},
		{"Assets", strings.Join(s.Assets, ", ")},
		{"Run", s.RunID},
	})

	if len(s.Diagnostics) > 0 {
		buf.WriteString("## Diagnostics\n\n")
		for _, d := range s.Diagnostics {
			fmt.Fprintf(&buf, "- %s\n", d)
		}
		buf.WriteString("\n")
	}

	kpis(&buf, s)
	alerts(&buf, s)
	thresholds(&buf, s)
	correlations(&buf, s)
	tail(&buf, s)

	return buf.String()
}

func rangeLabel(s *dashboard.Snapshot) string {
	if s.Range.Start.IsZero() {
		return "-"
	}
	label := s.Range.Start.Format(contracts.DateLayout) + " to " + s.Range.End.Format(contracts.DateLayout)
	if s.RangeFellBack {
		label += " (fallback)"
	}
	return label
}

func kpis(w io.Writer, s *dashboard.Snapshot) {
	if len(s.KPIs) == 0 {
		return
	}
	fmt.Fprint(w, "## Key Figures\n\n")
	rows := make([][]string, 0, len(s.KPIs))
	for _, r := range s.KPIs {
		value, delta := kpi.Display(r)
		rows = append(rows, []string{r.Value.Label, value, delta})
	}
	table(w, []string{"Indicator", "Value", "Change"}, rows)
}

func alerts(w io.Writer, s *dashboard.Snapshot) {
	if len(s.Alerts) == 0 {
		return
	}
	fmt.Fprint(w, "## Alerts\n\n")
	rows := make([][]string, 0, len(s.Alerts))
	for _, a := range s.Alerts {
		value := kpi.NotAvailable
		if a.Value.Valid {
			value = strconv.FormatFloat(a.Value.Float64, 'f', 2, 64)
		}
		rows = append(rows, []string{a.Subject, strings.ToUpper(string(a.Severity)), value, a.Message})
	}
	table(w, []string{"Subject", "Severity", "Value", "Message"}, rows)
}

func thresholds(w io.Writer, s *dashboard.Snapshot) {
	if len(s.Thresholds) == 0 {
		return
	}
	fmt.Fprint(w, "## Thresholds\n\n")
	var rows [][]string
	for _, th := range s.Thresholds {
		for _, b := range th.Bands {
			rows = append(rows, []string{th.Subject, b.Name, string(b.Severity), b.Label})
		}
	}
	table(w, []string{"Subject", "Band", "Severity", "Condition"}, rows)
}

func correlations(w io.Writer, s *dashboard.Snapshot) {
	fmt.Fprint(w, "## Correlation\n\n")
	m, err := s.Correlation.Get()
	if err != nil {
		fmt.Fprintf(w, "_Not available: %v_\n\n", err)
		return
	}
	pairs := m.Pairs()
	if len(pairs) == 0 {
		fmt.Fprint(w, "_No pair has enough overlapping returns._\n\n")
		return
	}

	// strongest first, then the weakest that were not already listed
	picked := pairs
	if len(pairs) > 2*TopPairs {
		picked = append(append(picked[:0:0], pairs[:TopPairs]...), pairs[len(pairs)-TopPairs:]...)
	}
	rows := make([][]string, 0, len(picked))
	for _, p := range picked {
		rows = append(rows, []string{p.A, p.B, strconv.FormatFloat(p.Value, 'f', 2, 64)})
	}
	table(w, []string{"Asset", "Asset", "Correlation"}, rows)
}

func tail(w io.Writer, s *dashboard.Snapshot) {
	fmt.Fprint(w, "## Latest Prices\n\n")
	t, err := s.Tail.Get()
	if err != nil {
		fmt.Fprintf(w, "_Not available: %v_\n\n", err)
		return
	}
	if t.IsEmpty() {
		fmt.Fprint(w, "_No rows for the current selection._\n\n")
		return
	}

	header := append([]string{"Date"}, t.Columns...)
	rows := make([][]string, t.Rows())
	for r, d := range t.Dates {
		row := make([]string, 0, len(header))
		row = append(row, d.Format(contracts.DateLayout))
		for c := range t.Columns {
			v := t.Values[c][r]
			if contracts.IsMissing(v) {
				row = append(row, "")
				continue
			}
			row = append(row, strconv.FormatFloat(v, 'f', 2, 64))
		}
		rows[r] = row
	}
	table(w, header, rows)
}

// table writes a GitHub flavoured markdown table; every column after the first is right aligned
func table(w io.Writer, header []string, rows [][]string) {
	fmt.Fprintf(w, "| %s |\n", strings.Join(escape(header), " | "))
	align := make([]string, len(header))
	for i := range align {
		align[i] = "---:"
		if i == 0 {
			align[i] = ":---"
		}
	}
	fmt.Fprintf(w, "|%s|\n", strings.Join(align, "|"))
	for _, row := range rows {
		fmt.Fprintf(w, "| %s |\n", strings.Join(escape(row), " | "))
	}
	fmt.Fprintln(w)
}

func escape(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.ReplaceAll(c, "|", `\|`)
	}
	return out
}
