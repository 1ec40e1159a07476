package correlation

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/findash/internal/contracts"
)

func returnsTable(cols map[string][]float64, order ...string) contracts.Table {
	n := len(cols[order[0]])
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = time.Date(2024, 1, 2+i, 0, 0, 0, 0, time.UTC)
	}
	t := contracts.NewTable(dates, order)
	for c, label := range order {
		copy(t.Values[c], cols[label])
	}
	return t
}

func TestCompute_SymmetricUnitDiagonal(t *testing.T) {
	tbl := returnsTable(map[string][]float64{
		"AAPL": {0.01, -0.02, 0.015, 0.003, -0.007},
		"MSFT": {0.012, -0.018, 0.01, 0.001, -0.004},
		"XOM":  {-0.005, 0.01, -0.002, 0.02, 0.001},
	}, "AAPL", "MSFT", "XOM")

	m, err := Compute(tbl)
	require.NoError(t, err)
	require.Equal(t, 3, m.Size())

	for i := 0; i < m.Size(); i++ {
		assert.Equal(t, 1.0, m.At(i, i))
		for j := 0; j < m.Size(); j++ {
			assert.Equal(t, m.At(i, j), m.At(j, i))
			assert.True(t, m.At(i, j) >= -1 && m.At(i, j) <= 1)
		}
	}

	v, err := m.Get("AAPL", "MSFT")
	require.NoError(t, err)
	assert.Greater(t, v, 0.9)
}

func TestCompute_PerfectlyCorrelated(t *testing.T) {
	tbl := returnsTable(map[string][]float64{
		"A": {1, 2, 3, 4},
		"B": {2, 4, 6, 8},
		"C": {-1, -2, -3, -4},
	}, "A", "B", "C")

	m, err := Compute(tbl)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, m.At(0, 1), 1e-12)
	assert.InDelta(t, -1.0, m.At(0, 2), 1e-12)
}

func TestCompute_PairwiseComplete(t *testing.T) {
	nan := contracts.Missing
	tbl := returnsTable(map[string][]float64{
		"A": {1, 2, nan, 4, 5},
		"B": {2, 4, 100, 8, 10},
		"C": {nan, nan, nan, nan, 3},
	}, "A", "B", "C")

	m, err := Compute(tbl)
	require.NoError(t, err)

	// the outlier in B sits on A's gap and is ignored
	assert.InDelta(t, 1.0, m.At(0, 1), 1e-12)
	assert.True(t, math.IsNaN(m.At(0, 2)))
	assert.True(t, math.IsNaN(m.At(2, 2)))
}

func TestCompute_ZeroVarianceIsUndefined(t *testing.T) {
	tbl := returnsTable(map[string][]float64{
		"A": {0.01, 0.02, 0.03},
		"F": {0, 0, 0},
	}, "A", "F")

	m, err := Compute(tbl)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(m.At(0, 1)))
}

func TestCompute_NotComputable(t *testing.T) {
	tests := []struct {
		name string
		tbl  contracts.Table
	}{
		{"one column", returnsTable(map[string][]float64{"A": {1, 2, 3}}, "A")},
		{"no columns", contracts.EmptyTable()},
		{"one row", returnsTable(map[string][]float64{"A": {1}, "B": {2}}, "A", "B")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compute(tt.tbl)
			assert.True(t, errors.Is(err, contracts.ErrInsufficientData))
		})
	}
}

func TestMatrix_JSONAndPairs(t *testing.T) {
	tbl := returnsTable(map[string][]float64{
		"A": {1, 2, 3},
		"B": {3, 2, 1},
		"F": {5, 5, 5},
	}, "A", "B", "F")

	m, err := Compute(tbl)
	require.NoError(t, err)

	b, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"labels":["A","B","F"],"values":[[1,-1,null],[-1,1,null],[null,null,1]]}`, string(b))

	pairs := m.Pairs()
	require.Len(t, pairs, 1)
	assert.Equal(t, Pair{A: "A", B: "B", Value: -1}, pairs[0])

	_, err = m.Get("A", "Z")
	assert.True(t, errors.Is(err, contracts.ErrMissingColumn))
}
