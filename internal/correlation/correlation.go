package correlation

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/guregu/null/v6"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/wonny/findash/internal/contracts"
)

// Matrix is a symmetric Pearson correlation matrix over Labels.
// Cells are NaN where a pair has fewer than two overlapping observations or no variance.
type Matrix struct {
	Labels []string
	Values *mat.SymDense
}

// Pair is one off-diagonal cell
type Pair struct {
	A     string  `json:"a"`
	B     string  `json:"b"`
	Value float64 `json:"value"`
}

// Compute builds the pairwise-complete correlation of the return columns.
// Fewer than two columns or two rows is ErrInsufficientData, never a degenerate matrix.
func Compute(returns contracts.Table) (Matrix, error) {
	if returns.Width() < 2 {
		return Matrix{}, fmt.Errorf("%w: correlation needs at least 2 assets, have %d",
			contracts.ErrInsufficientData, returns.Width())
	}
	if returns.Rows() < 2 {
		return Matrix{}, fmt.Errorf("%w: correlation needs at least 2 observations, have %d",
			contracts.ErrInsufficientData, returns.Rows())
	}

	n := returns.Width()
	sym := mat.NewSymDense(n, nil)

	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, pairwise(returns.Values[i], returns.Values[j], i == j))
		}
	}

	return Matrix{
		Labels: append([]string(nil), returns.Columns...),
		Values: sym,
	}, nil
}

// pairwise correlates the rows where both x and y are present
func pairwise(x, y []float64, diagonal bool) float64 {
	xs := make([]float64, 0, len(x))
	ys := make([]float64, 0, len(y))
	for r := range x {
		if contracts.IsMissing(x[r]) || contracts.IsMissing(y[r]) {
			continue
		}
		xs = append(xs, x[r])
		ys = append(ys, y[r])
	}
	if len(xs) < 2 {
		return math.NaN()
	}
	if diagonal {
		return 1
	}

	c := stat.Correlation(xs, ys, nil)
	if math.IsNaN(c) {
		return c
	}
	// rounding can push a perfect correlation just past ±1
	return math.Max(-1, math.Min(1, c))
}

// Size returns the number of assets
func (m Matrix) Size() int {
	return len(m.Labels)
}

// At returns the cell at (i, j)
func (m Matrix) At(i, j int) float64 {
	return m.Values.At(i, j)
}

// Get looks a cell up by labels
func (m Matrix) Get(a, b string) (float64, error) {
	i, j := m.index(a), m.index(b)
	if i < 0 || j < 0 {
		return math.NaN(), fmt.Errorf("%w: %q or %q not in correlation matrix", contracts.ErrMissingColumn, a, b)
	}
	return m.At(i, j), nil
}

func (m Matrix) index(label string) int {
	for i, l := range m.Labels {
		if l == label {
			return i
		}
	}
	return -1
}

// Pairs lists the defined off-diagonal cells, strongest correlation first
func (m Matrix) Pairs() []Pair {
	var pairs []Pair
	for i := 0; i < m.Size(); i++ {
		for j := i + 1; j < m.Size(); j++ {
			v := m.At(i, j)
			if math.IsNaN(v) {
				continue
			}
			pairs = append(pairs, Pair{A: m.Labels[i], B: m.Labels[j], Value: v})
		}
	}
	sort.SliceStable(pairs, func(a, b int) bool { return pairs[a].Value > pairs[b].Value })
	return pairs
}

// MarshalJSON writes a dense row-major grid with null for undefined cells
func (m Matrix) MarshalJSON() ([]byte, error) {
	out := struct {
		Labels []string       `json:"labels"`
		Values [][]null.Float `json:"values"`
	}{
		Labels: m.Labels,
		Values: make([][]null.Float, m.Size()),
	}
	for i := range out.Values {
		row := make([]null.Float, m.Size())
		for j := range row {
			v := m.At(i, j)
			row[j] = null.NewFloat(v, !math.IsNaN(v))
		}
		out.Values[i] = row
	}
	return json.Marshal(out)
}
