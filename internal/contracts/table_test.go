package contracts

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func sampleTable() Table {
	t := NewTable(
		[]time.Time{day("2024-01-02"), day("2024-01-03"), day("2024-01-04")},
		[]string{"AAPL", "USD/MXN"},
	)
	t.Values[0] = []float64{185.6, math.NaN(), 181.9}
	t.Values[1] = []float64{17.05, 17.12, 17.08}
	return t
}

func TestNewTable_AllMissing(t *testing.T) {
	tbl := NewTable([]time.Time{day("2024-01-02")}, []string{"A", "B"})

	require.Equal(t, 1, tbl.Rows())
	require.Equal(t, 2, tbl.Width())
	for _, col := range tbl.Values {
		assert.True(t, IsMissing(col[0]))
	}
}

func TestTable_IsEmpty(t *testing.T) {
	tests := []struct {
		name string
		tbl  Table
		want bool
	}{
		{"zero value", Table{}, true},
		{"columns without rows", EmptyTable("A"), true},
		{"rows without columns", NewTable([]time.Time{day("2024-01-02")}, nil), true},
		{"populated", sampleTable(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.tbl.IsEmpty())
		})
	}
}

func TestTable_Column(t *testing.T) {
	tbl := sampleTable()

	col, err := tbl.Column("USD/MXN")
	require.NoError(t, err)
	assert.Equal(t, []float64{17.05, 17.12, 17.08}, col)

	_, err = tbl.Column("EUR/USD")
	assert.True(t, errors.Is(err, ErrMissingColumn))
}

func TestTable_Observations(t *testing.T) {
	obs, err := sampleTable().Observations("AAPL")
	require.NoError(t, err)
	assert.Equal(t, []float64{185.6, 181.9}, obs)
}

func TestTable_Tail(t *testing.T) {
	tbl := sampleTable()

	tail := tbl.Tail(2)
	assert.Equal(t, []time.Time{day("2024-01-03"), day("2024-01-04")}, tail.Dates)
	assert.Equal(t, []float64{17.12, 17.08}, tail.Values[1])

	assert.Equal(t, 3, tbl.Tail(10).Rows())
	assert.Equal(t, 0, tbl.Tail(-1).Rows())

	tail.Values[1][0] = 99
	assert.Equal(t, 17.12, tbl.Values[1][1], "tail must not alias the source")
}

func TestTable_CloneIsDeep(t *testing.T) {
	tbl := sampleTable()
	cp := tbl.Clone()

	cp.Values[0][0] = 1
	cp.Columns[0] = "X"
	cp.Dates[0] = day("2000-01-01")

	assert.Equal(t, 185.6, tbl.Values[0][0])
	assert.Equal(t, "AAPL", tbl.Columns[0])
	assert.Equal(t, day("2024-01-02"), tbl.Dates[0])
}

func TestTable_Validate(t *testing.T) {
	good := sampleTable()
	require.NoError(t, good.Validate())

	unordered := sampleTable()
	unordered.Dates[2] = day("2024-01-01")
	assert.Error(t, unordered.Validate())

	dupDate := sampleTable()
	dupDate.Dates[1] = dupDate.Dates[0]
	assert.Error(t, dupDate.Validate())

	dupCol := sampleTable()
	dupCol.Columns[1] = "AAPL"
	assert.Error(t, dupCol.Validate())

	ragged := sampleTable()
	ragged.Values[1] = ragged.Values[1][:2]
	assert.Error(t, ragged.Validate())
}

func TestTable_JSONRoundTrip(t *testing.T) {
	tbl := sampleTable()

	data, err := json.Marshal(tbl)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"dates": ["2024-01-02", "2024-01-03", "2024-01-04"],
		"columns": ["AAPL", "USD/MXN"],
		"values": [[185.6, null, 181.9], [17.05, 17.12, 17.08]]
	}`, string(data))

	var back Table
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, tbl.Dates, back.Dates)
	assert.Equal(t, tbl.Columns, back.Columns)
	assert.True(t, IsMissing(back.Values[0][1]))
	assert.Equal(t, 181.9, back.Values[0][2])
}

func TestTable_JSONEmpty(t *testing.T) {
	data, err := json.Marshal(Table{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"dates":[],"columns":[],"values":[]}`, string(data))
}

func TestDay(t *testing.T) {
	loc := time.FixedZone("CST", -6*3600)
	got := Day(time.Date(2024, 3, 5, 23, 30, 0, 0, loc))
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), got)
}
