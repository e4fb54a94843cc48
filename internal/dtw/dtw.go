// Package dtw aligns two planar point sequences with dynamic time warping and
// reports the accumulated Euclidean cost of the cheapest monotone alignment.
//
// Exact and banded alignment are the same recurrence evaluated over a
// different set of cells: exact mode uses every cell of the |A| x |B| grid,
// banded mode only a corridor of fixed radius around the scaled diagonal.
// Cells outside the corridor are treated as unreachable.
package dtw

import (
	"fmt"
	"math"

	"github.com/banshee-data/racingline/internal/trajectory"
)

// Options selects the search region and whether to recover the path.
type Options struct {
	// Radius bounds the corridor around the diagonal, in cells.
	// nil means unrestricted (exact) alignment.
	Radius *int

	// Path requests the alignment path in the result.
	Path bool
}

// Exact returns options for a full-matrix alignment.
func Exact() Options {
	return Options{}
}

// Banded returns options for a corridor of the given radius.
func Banded(radius int) Options {
	return Options{Radius: &radius}
}

// IsExact reports whether o searches the full matrix.
func (o Options) IsExact() bool {
	return o.Radius == nil
}

// Step is one aligned index pair: A[I] matched with B[J].
type Step struct {
	I int `json:"i"`
	J int `json:"j"`
}

// Result is the outcome of one alignment.
type Result struct {
	// Distance is the accumulated cost at the final cell. It is not
	// normalised by path length.
	Distance float64 `json:"distance"`

	// Path runs from (0,0) to (|A|-1,|B|-1) and is only populated when
	// Options.Path is set.
	Path []Step `json:"path,omitempty"`

	// Cells is the number of matrix cells evaluated.
	Cells int `json:"cells"`
}

// Distance returns the exact DTW distance between a and b.
func Distance(a, b trajectory.Trajectory) (float64, error) {
	res, err := Compute(a, b, Exact())
	if err != nil {
		return 0, err
	}
	return res.Distance, nil
}

// Compute aligns a against b.
//
// Both inputs must be non-empty and finite; anything else is an error rather
// than a score.
func Compute(a, b trajectory.Trajectory, opts Options) (Result, error) {
	if err := a.Validate(); err != nil {
		return Result{}, fmt.Errorf("reference sequence: %w", err)
	}
	if err := b.Validate(); err != nil {
		return Result{}, fmt.Errorf("candidate sequence: %w", err)
	}
	if opts.Radius != nil && *opts.Radius < 0 {
		return Result{}, fmt.Errorf("band radius must be non-negative, got %d", *opts.Radius)
	}

	windows := corridor(len(a), len(b), opts.Radius)
	m := newBandMatrix(windows)

	for i := range a {
		w := windows[i]
		for j := w.lo; j <= w.hi; j++ {
			c := trajectory.Distance(a[i], b[j])
			if i == 0 && j == 0 {
				m.set(0, 0, c)
				continue
			}
			best := math.Min(m.at(i-1, j), math.Min(m.at(i, j-1), m.at(i-1, j-1)))
			m.set(i, j, c+best)
		}
	}

	res := Result{
		Distance: m.at(len(a)-1, len(b)-1),
		Cells:    m.size(),
	}
	if opts.Path {
		res.Path = m.backtrack(len(a)-1, len(b)-1)
	}
	return res, nil
}

// window is the inclusive column range evaluated in one row.
type window struct {
	lo, hi int
}

// corridor computes the evaluated column range for each of n rows over m
// columns. Consecutive windows always overlap or touch diagonally, so the
// final cell is reachable from (0,0) for any radius.
//
// The band is always laid out along the longer sequence and transposed
// when needed, so corridor(m, n) selects exactly the transposed cells of
// corridor(n, m) and swapping the inputs cannot change the distance.
func corridor(n, m int, radius *int) []window {
	out := make([]window, n)
	if radius == nil || n == 1 || m == 1 {
		for i := range out {
			out[i] = window{lo: 0, hi: m - 1}
		}
		return out
	}
	if n < m {
		return transpose(corridor(m, n, radius), n)
	}

	r := *radius
	slope := float64(m-1) / float64(n-1)
	for i := range out {
		// Row i covers the diagonal between i-0.5 and i+0.5.
		lo := int(math.Ceil((float64(i)-0.5)*slope)) - r
		hi := int(math.Floor((float64(i)+0.5)*slope)) + r
		lo = clamp(lo, 0, m-1)
		hi = clamp(hi, 0, m-1)
		if hi < lo {
			hi = lo
		}
		out[i] = window{lo: lo, hi: hi}
	}
	out[0].lo = 0
	out[n-1].hi = m - 1
	return out
}

// transpose turns row windows over cols columns into column windows, one
// per column. Window bounds never decrease from row to row, so each column
// is covered by a contiguous run of rows.
func transpose(rows []window, cols int) []window {
	out := make([]window, cols)
	for j := range out {
		out[j] = window{lo: len(rows), hi: -1}
	}
	for i, w := range rows {
		for j := w.lo; j <= w.hi; j++ {
			if i < out[j].lo {
				out[j].lo = i
			}
			if i > out[j].hi {
				out[j].hi = i
			}
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// bandMatrix stores only the cells inside each row's window.
type bandMatrix struct {
	windows []window
	rows    [][]float64
}

func newBandMatrix(windows []window) *bandMatrix {
	rows := make([][]float64, len(windows))
	for i, w := range windows {
		row := make([]float64, w.hi-w.lo+1)
		for j := range row {
			row[j] = math.Inf(1)
		}
		rows[i] = row
	}
	return &bandMatrix{windows: windows, rows: rows}
}

// at returns the accumulated cost at (i,j), or +Inf outside the band.
func (m *bandMatrix) at(i, j int) float64 {
	if i < 0 || j < 0 || i >= len(m.rows) {
		return math.Inf(1)
	}
	w := m.windows[i]
	if j < w.lo || j > w.hi {
		return math.Inf(1)
	}
	return m.rows[i][j-w.lo]
}

func (m *bandMatrix) set(i, j int, v float64) {
	m.rows[i][j-m.windows[i].lo] = v
}

func (m *bandMatrix) size() int {
	n := 0
	for _, row := range m.rows {
		n += len(row)
	}
	return n
}

// backtrack walks from (i,j) to (0,0) following the cheapest predecessor.
// Ties prefer the diagonal, then the vertical, then the horizontal move.
func (m *bandMatrix) backtrack(i, j int) []Step {
	path := []Step{{I: i, J: j}}
	for i > 0 || j > 0 {
		switch {
		case i == 0:
			j--
		case j == 0:
			i--
		default:
			diag := m.at(i-1, j-1)
			up := m.at(i-1, j)
			left := m.at(i, j-1)
			switch {
			case diag <= up && diag <= left:
				i, j = i-1, j-1
			case up <= left:
				i--
			default:
				j--
			}
		}
		path = append(path, Step{I: i, J: j})
	}
	for l, r := 0, len(path)-1; l < r; l, r = l+1, r-1 {
		path[l], path[r] = path[r], path[l]
	}
	return path
}
