package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/findash/internal/contracts"
	"github.com/wonny/findash/internal/dashboard"
	"github.com/wonny/findash/internal/dashboardconfig"
	"github.com/wonny/findash/internal/pipeline"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		dashboardFile = ""
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestConfigValidate(t *testing.T) {
	valid := writeFile(t, "dashboard.yaml", dashboardconfig.DefaultYAML())
	invalid := writeFile(t, "broken.yaml", []byte("meta:\n  version: \"1\"\n"))
	typo := writeFile(t, "typo.yaml", []byte("meta:\n  dashbord_id: x\n"))

	tests := []struct {
		name    string
		args    []string
		wantErr bool
		want    string
	}{
		{name: "embedded default", args: []string{"config", "validate"}, want: "(embedded default)"},
		{name: "file argument", args: []string{"config", "validate", valid}, want: "findash_default"},
		{name: "dashboard flag", args: []string{"config", "validate", "--dashboard", valid}, want: valid},
		{name: "missing id", args: []string{"config", "validate", invalid}, wantErr: true, want: "meta.dashboard_id"},
		{name: "unknown field", args: []string{"config", "validate", typo}, wantErr: true, want: "dashbord_id"},
		{name: "missing file", args: []string{"config", "validate", filepath.Join(t.TempDir(), "nope.yaml")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Contains(t, out, "Dashboard definition is valid")
			}
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestConfigHash_MatchesService(t *testing.T) {
	out, err := execute(t, "config", "hash")
	require.NoError(t, err)

	want, err := dashboardconfig.Hash(dashboardconfig.Default())
	require.NoError(t, err)
	assert.Equal(t, want+"\n", out)
}

func TestConfigPrint(t *testing.T) {
	out, err := execute(t, "config", "print")
	require.NoError(t, err)
	assert.Equal(t, string(dashboardconfig.DefaultYAML()), out)
}

func TestSelection_Filters(t *testing.T) {
	cfg := dashboardconfig.Default()

	tests := []struct {
		name       string
		args       []string
		wantErr    string
		wantAssets []string
		wantRange  bool
	}{
		{name: "defaults", args: nil, wantAssets: nil},
		{name: "explicit assets", args: []string{"--assets", "NVDA, Apple (AAPL)"}, wantAssets: []string{"NVDA", "Apple (AAPL)"}},
		{name: "empty assets selects nothing", args: []string{"--assets", ""}, wantAssets: []string{}},
		{name: "category", args: []string{"--category", "fx"}, wantAssets: mustCategory(t, cfg, "fx")},
		{name: "range", args: []string{"--start", "2024-01-01", "--end", "2024-02-01"}, wantRange: true},
		{name: "bad date", args: []string{"--start", "01/02/2024"}, wantErr: "start must be a date"},
		{name: "assets and category", args: []string{"--assets", "NVDA", "--category", "fx"}, wantErr: "cannot be combined"},
		{name: "unknown category", args: []string{"--category", "crypto"}, wantErr: "unknown category"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sel selection
			cmd := &cobra.Command{Use: "test"}
			sel.register(cmd)
			require.NoError(t, cmd.ParseFlags(tt.args))

			f, err := sel.filters(cmd, cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAssets, f.Assets)
			assert.Equal(t, tt.wantRange, f.Range != nil)
		})
	}
}

func mustCategory(t *testing.T, cfg *dashboardconfig.Config, name string) []string {
	t.Helper()
	labels, ok := cfg.CategoryLabels(name)
	require.True(t, ok)
	return labels
}

func haltedSnapshot() *dashboard.Snapshot {
	cfg := dashboardconfig.Default()
	out := pipeline.Run(pipeline.Input{
		Raw:    contracts.FetchResult{Diagnostic: "no data returned"},
		Config: cfg,
	})
	return &dashboard.Snapshot{
		RunID:       "run-1",
		DashboardID: cfg.Meta.DashboardID,
		GeneratedAt: time.Date(2024, 4, 3, 12, 0, 0, 0, time.UTC),
		Output:      out,
	}
}

func TestRenderSnapshot(t *testing.T) {
	snap := haltedSnapshot()

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderSnapshot(&buf, snap, "json", 80))

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &body))
		assert.Equal(t, "halted", body["status"])
		assert.Equal(t, "run-1", body["run_id"])
	})

	t.Run("raw", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderSnapshot(&buf, snap, "raw", 80))
		assert.Contains(t, buf.String(), "# findash_default")
		assert.Contains(t, buf.String(), "| Status | halted |")
	})

	t.Run("markdown", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, renderSnapshot(&buf, snap, "markdown", 80))
		assert.Contains(t, buf.String(), "Correlation")
	})

	t.Run("unknown", func(t *testing.T) {
		var buf bytes.Buffer
		err := renderSnapshot(&buf, snap, "yaml", 80)
		assert.ErrorContains(t, err, "unknown format")
	})
}

func TestPrintTableHeader(t *testing.T) {
	var buf bytes.Buffer
	PrintTableHeader(&buf, []string{"JOB", "SCHEDULE"}, []int{4, 8})
	PrintTableRow(&buf, []string{"a", "b"}, []int{4, 8})
	assert.Equal(t, "JOB   SCHEDULE\n──────────────\na     b       \n", buf.String())
}
