package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wonny/findash/internal/dashboardconfig"
)

// configCmd groups the dashboard definition commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and validate a dashboard definition",
	Long: `Inspect and validate a dashboard YAML.

The file is taken from the argument, then --dashboard, then the embedded default.

Commands:
  validate  - Check a file and print its summary and warnings
  print     - Print the YAML source
  hash      - Print the config hash stamped on every snapshot

Example:
  go run ./cmd/findash config validate dashboard.yaml
  go run ./cmd/findash config print
  go run ./cmd/findash config hash --dashboard dashboard.yaml`,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a dashboard definition",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigValidate,
}

var configPrintCmd = &cobra.Command{
	Use:   "print [file]",
	Short: "Print the dashboard YAML",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigPrint,
}

var configHashCmd = &cobra.Command{
	Use:   "hash [file]",
	Short: "Print the dashboard config hash",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigHash,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configPrintCmd)
	configCmd.AddCommand(configHashCmd)
}

func dashboardPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return dashboardFile
}

func sourceName(path string) string {
	if path == "" {
		return "(embedded default)"
	}
	return path
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	path := dashboardPath(args)

	cfg, _, err := dashboardconfig.Load(path)
	if err != nil {
		PrintError(out, fmt.Sprintf("%s: %v", sourceName(path), err))
		return err
	}
	hash, err := dashboardconfig.Hash(cfg)
	if err != nil {
		return fmt.Errorf("hash dashboard: %w", err)
	}

	PrintDoubleSeparator(out)
	fmt.Fprintf(out, "  %s\n", cfg.Meta.Title)
	PrintSeparator(out)
	PrintKeyValue(out, "Source", sourceName(path), 12)
	PrintKeyValue(out, "Dashboard", cfg.Meta.DashboardID, 12)
	PrintKeyValue(out, "Version", cfg.Meta.Version, 12)
	PrintKeyValue(out, "Lookback", cfg.Data.Lookback, 12)
	PrintKeyValue(out, "Symbols", strconv.Itoa(len(cfg.Symbols())), 12)
	PrintKeyValue(out, "Categories", strconv.Itoa(len(cfg.Universe.Categories)), 12)
	PrintKeyValue(out, "KPIs", strconv.Itoa(len(cfg.KPIs)), 12)
	PrintKeyValue(out, "Alerts", strconv.Itoa(len(cfg.Alerts)), 12)
	PrintKeyValue(out, "Hash", hash, 12)
	PrintSeparator(out)

	warnings := dashboardconfig.Warn(cfg)
	if len(warnings) > 0 {
		items := make([]string, 0, len(warnings))
		for _, w := range warnings {
			items = append(items, fmt.Sprintf("[%s] %s", w.Code, w.Message))
		}
		PrintWarning(out, fmt.Sprintf("%d warning(s)", len(warnings)))
		PrintList(out, items)
		fmt.Fprintln(out)
	}

	PrintSuccess(out, "Dashboard definition is valid")
	return nil
}

func runConfigPrint(cmd *cobra.Command, args []string) error {
	path := dashboardPath(args)
	_, raw, err := dashboardconfig.Load(path)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(raw)
	return err
}

func runConfigHash(cmd *cobra.Command, args []string) error {
	cfg, _, err := dashboardconfig.Load(dashboardPath(args))
	if err != nil {
		return err
	}
	hash, err := dashboardconfig.Hash(cfg)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), hash)
	return nil
}
