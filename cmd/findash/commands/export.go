package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/findash/internal/export"
)

// exportCmd writes the dashboard to an xlsx workbook
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the dashboard to an xlsx workbook",
	Long: `Runs the pipeline once and writes every view to its own sheet:
Summary, KPIs, Alerts, Prices, Growth, Returns and Correlation.

A halted run still writes the workbook so the diagnostics are kept.

Example:
  go run ./cmd/findash export
  go run ./cmd/findash export --category tech --out tech.xlsx`,
	RunE: runExport,
}

var (
	exportSel     selection
	exportOut     string
	exportTimeout time.Duration
)

func init() {
	rootCmd.AddCommand(exportCmd)

	exportSel.register(exportCmd)
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default is <dashboard>_<timestamp>.xlsx)")
	exportCmd.Flags().DurationVar(&exportTimeout, "timeout", 2*time.Minute, "fetch timeout")
}

func runExport(cmd *cobra.Command, args []string) error {
	a, err := newApp(appOptions{logOut: os.Stderr})
	if err != nil {
		return err
	}
	defer a.close()

	filters, err := exportSel.filters(cmd, a.service.Config())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), exportTimeout)
	defer cancel()
	snap := a.service.Snapshot(ctx, filters)

	path := exportOut
	if path == "" {
		path = fmt.Sprintf("%s_%s.xlsx", snap.DashboardID, snap.GeneratedAt.UTC().Format("20060102_150405"))
	}
	if err := export.SaveAs(path, snap); err != nil {
		return fmt.Errorf("export workbook: %w", err)
	}

	out := cmd.OutOrStdout()
	if snap.Halted() {
		PrintWarning(out, fmt.Sprintf("Pipeline halted: %v", snap.Err))
	}
	PrintSuccess(out, fmt.Sprintf("Workbook written to %s (status %s)", path, snap.Status))
	return nil
}
