package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/wonny/findash/internal/dashboard"
	"github.com/wonny/findash/internal/report"
)

// snapshotCmd runs the pipeline once and prints the result
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Run the pipeline once and print the dashboard",
	Long: `Fetches prices (or reuses the shared cache), runs the pipeline once
and prints the result.

Formats:
  markdown  - rendered for the terminal (default)
  raw       - markdown source
  json      - the full snapshot

Example:
  go run ./cmd/findash snapshot
  go run ./cmd/findash snapshot --category fx --start 2024-01-01
  go run ./cmd/findash snapshot --assets "Apple (AAPL),NVDA" --format json`,
	RunE: runSnapshot,
}

var (
	snapshotSel     selection
	snapshotFormat  string
	snapshotWidth   int
	snapshotTimeout time.Duration
)

func init() {
	rootCmd.AddCommand(snapshotCmd)

	snapshotSel.register(snapshotCmd)
	snapshotCmd.Flags().StringVar(&snapshotFormat, "format", "markdown", "output format (markdown|raw|json)")
	snapshotCmd.Flags().IntVar(&snapshotWidth, "width", 100, "word wrap width for markdown")
	snapshotCmd.Flags().DurationVar(&snapshotTimeout, "timeout", 2*time.Minute, "fetch timeout")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	a, err := newApp(appOptions{logOut: os.Stderr})
	if err != nil {
		return err
	}
	defer a.close()

	filters, err := snapshotSel.filters(cmd, a.service.Config())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), snapshotTimeout)
	defer cancel()
	snap := a.service.Snapshot(ctx, filters)

	if err := renderSnapshot(cmd.OutOrStdout(), snap, snapshotFormat, snapshotWidth); err != nil {
		return err
	}
	if snap.Halted() {
		return fmt.Errorf("pipeline halted: %w", snap.Err)
	}
	return nil
}

func renderSnapshot(w io.Writer, snap *dashboard.Snapshot, format string, width int) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	case "raw":
		_, err := io.WriteString(w, report.Markdown(snap))
		return err
	case "markdown":
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return fmt.Errorf("create renderer: %w", err)
		}
		out, err := r.Render(report.Markdown(snap))
		if err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		_, err = io.WriteString(w, out)
		return err
	default:
		return fmt.Errorf("unknown format %q (markdown|raw|json)", format)
	}
}
