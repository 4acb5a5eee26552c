package interp

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrOutsideGrid is returned when a query point lies outside the grid.
var ErrOutsideGrid = errors.New("point outside grid")

// GridCell represents a cell in a rectilinear grid with four corner values.
type GridCell struct {
	// Corner coordinates (forming a rectangle).
	X0, X1 float64 // X boundaries (longitude).
	Y0, Y1 float64 // Y boundaries (latitude).

	// Values at the four corners:
	// V00: value at (X0, Y0).
	// V10: value at (X1, Y0).
	// V01: value at (X0, Y1).
	// V11: value at (X1, Y1).
	V00, V10, V01, V11 float64
}

// BilinearInterpolate performs bilinear interpolation within a grid cell
// Formula:
//
//	f(x,y) ≈ (1-t)(1-u)f(x0,y0) + t(1-u)f(x1,y0) + (1-t)u*f(x0,y1) + tu*f(x1,y1)
//
// where:
//
//	t = (x - x0) / (x1 - x0)
//	u = (y - y0) / (y1 - y0)
//
// Corners with zero weight do not contribute. A missing (NaN) corner with
// non-zero weight makes the result NaN. A cell of zero width (X0 == X1 or
// Y0 == Y1) interpolates along the other axis only.
func BilinearInterpolate(cell GridCell, x, y float64) (float64, error) {
	// Validate grid cell.
	if cell.X1 < cell.X0 {
		return 0, fmt.Errorf("invalid grid cell: X1 must be >= X0")
	}
	if cell.Y1 < cell.Y0 {
		return 0, fmt.Errorf("invalid grid cell: Y1 must be >= Y0")
	}

	// Check if point is within cell (with small tolerance for floating point).
	const epsilon = 1e-9
	if x < cell.X0-epsilon || x > cell.X1+epsilon {
		return 0, fmt.Errorf("x coordinate %.6f is outside grid cell [%.6f, %.6f]", x, cell.X0, cell.X1)
	}
	if y < cell.Y0-epsilon || y > cell.Y1+epsilon {
		return 0, fmt.Errorf("y coordinate %.6f is outside grid cell [%.6f, %.6f]", y, cell.Y0, cell.Y1)
	}

	// Calculate normalized coordinates (0 to 1).
	var t, u float64
	if cell.X1 > cell.X0 {
		t = (x - cell.X0) / (cell.X1 - cell.X0)
	}
	if cell.Y1 > cell.Y0 {
		u = (y - cell.Y0) / (cell.Y1 - cell.Y0)
	}

	// Clamp to [0, 1] to handle edge cases with floating point precision.
	t = math.Max(0, math.Min(1, t))
	u = math.Max(0, math.Min(1, u))

	return blend(cell.V00, cell.V10, cell.V01, cell.V11, t, u), nil
}

func blend(v00, v10, v01, v11, t, u float64) float64 {
	var sum float64
	for _, c := range [4]struct{ w, v float64 }{
		{(1 - t) * (1 - u), v00},
		{t * (1 - u), v10},
		{(1 - t) * u, v01},
		{t * u, v11},
	} {
		if c.w == 0 {
			continue
		}
		if math.IsNaN(c.v) {
			return math.NaN()
		}
		sum += c.w * c.v
	}
	return sum
}

// bracket locates v on an ascending axis. It returns the enclosing indices
// and the fractional position between them. An exact hit returns i0 == i1.
func bracket(axis []float64, v float64) (i0, i1 int, frac float64, ok bool) {
	n := len(axis)
	if n == 0 || math.IsNaN(v) || v < axis[0] || v > axis[n-1] {
		return 0, 0, 0, false
	}
	k := sort.SearchFloat64s(axis, v)
	if axis[k] == v {
		return k, k, 0, true
	}
	i0, i1 = k-1, k
	return i0, i1, (v - axis[i0]) / (axis[i1] - axis[i0]), true
}

// Grid2D represents a rectilinear 2D grid for interpolation.
type Grid2D struct {
	X      []float64   // X coordinates (longitudes).
	Y      []float64   // Y coordinates (latitudes).
	Values [][]float64 // Values[i][j] corresponds to (X[j], Y[i]).
}

// Validate checks if the grid is valid.
func (g *Grid2D) Validate() error {
	if len(g.X) < 1 {
		return fmt.Errorf("grid must have at least 1 X coordinate")
	}
	if len(g.Y) < 1 {
		return fmt.Errorf("grid must have at least 1 Y coordinate")
	}
	if len(g.Values) != len(g.Y) {
		return fmt.Errorf("number of value rows (%d) must match Y coordinates (%d)", len(g.Values), len(g.Y))
	}

	for i, row := range g.Values {
		if len(row) != len(g.X) {
			return fmt.Errorf("row %d has %d values, expected %d", i, len(row), len(g.X))
		}
	}

	// Check that coordinates are sorted and unique.
	for i := 1; i < len(g.X); i++ {
		if g.X[i] <= g.X[i-1] {
			return fmt.Errorf("X coordinates must be strictly increasing")
		}
	}
	for i := 1; i < len(g.Y); i++ {
		if g.Y[i] <= g.Y[i-1] {
			return fmt.Errorf("Y coordinates must be strictly increasing")
		}
	}

	return nil
}

// InterpolateAt performs bilinear interpolation at a given point. Points on
// a single-valued axis must match it exactly.
func (g *Grid2D) InterpolateAt(x, y float64) (float64, error) {
	if err := g.Validate(); err != nil {
		return 0, fmt.Errorf("invalid grid: %w", err)
	}

	x0, x1, _, ok := bracket(g.X, x)
	if !ok {
		return 0, fmt.Errorf("%w: x coordinate %.6f is outside grid range [%.6f, %.6f]",
			ErrOutsideGrid, x, g.X[0], g.X[len(g.X)-1])
	}
	y0, y1, _, ok := bracket(g.Y, y)
	if !ok {
		return 0, fmt.Errorf("%w: y coordinate %.6f is outside grid range [%.6f, %.6f]",
			ErrOutsideGrid, y, g.Y[0], g.Y[len(g.Y)-1])
	}

	cell := GridCell{
		X0: g.X[x0], X1: g.X[x1],
		Y0: g.Y[y0], Y1: g.Y[y1],
		V00: g.Values[y0][x0], V10: g.Values[y0][x1],
		V01: g.Values[y1][x0], V11: g.Values[y1][x1],
	}
	return BilinearInterpolate(cell, x, y)
}
