package handlers

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/findash/internal/contracts"
	"github.com/wonny/findash/internal/dashboardconfig"
)

func TestParseDashboardQuery(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		want      []string
		hasAssets bool
	}{
		{"absent", "", nil, false},
		{"explicit none", "assets=", []string{}, true},
		{"comma list", "assets=AAPL,%20NVDA,", []string{"AAPL", "NVDA"}, true},
		{"repeated", "assets=AAPL&assets=USD/MXN", []string{"AAPL", "USD/MXN"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := url.ParseQuery(tt.raw)
			require.NoError(t, err)

			q := ParseDashboardQuery(values)
			assert.Equal(t, tt.hasAssets, q.HasAssets)
			assert.Equal(t, tt.want, q.Assets)
		})
	}
}

func TestDashboardQuery_Validate(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name   string
		q      DashboardQuery
		fields []string
	}{
		{"empty", DashboardQuery{}, nil},
		{"dates", DashboardQuery{Start: "2024-01-01", End: "2024-02-01"}, nil},
		{"bad start", DashboardQuery{Start: "2024-13-01"}, []string{"start"}},
		{"bad end", DashboardQuery{End: "yesterday"}, []string{"end"}},
		{"both selections", DashboardQuery{Assets: []string{"AAPL"}, HasAssets: true, Category: "fx"}, []string{"category"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := tt.q.Validate(v)
			var got []string
			for _, fe := range errs {
				got = append(got, fe.Field)
				assert.NotEmpty(t, fe.Message)
			}
			assert.Equal(t, tt.fields, got)
		})
	}
}

func TestDashboardQuery_Filters(t *testing.T) {
	cfg := dashboardconfig.Default()

	f, err := DashboardQuery{}.Filters(cfg)
	require.NoError(t, err)
	assert.Nil(t, f.Assets, "nil selects the default category")
	assert.Nil(t, f.Range)

	f, err = DashboardQuery{Category: "rates"}.Filters(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"Bonos_Tesoro_USA (SHY)", "CETES_Mexico (ETF)"}, f.Assets)

	f, err = DashboardQuery{HasAssets: true, Assets: []string{}}.Filters(cfg)
	require.NoError(t, err)
	assert.NotNil(t, f.Assets)
	assert.Empty(t, f.Assets)

	f, err = DashboardQuery{End: "2024-06-30"}.Filters(cfg)
	require.NoError(t, err)
	require.NotNil(t, f.Range)
	assert.True(t, f.Range.Start.IsZero())
	assert.Equal(t, time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), f.Range.End)

	_, err = DashboardQuery{Category: "crypto"}.Filters(cfg)
	assert.ErrorIs(t, err, contracts.ErrMissingColumn)
}
