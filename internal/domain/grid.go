package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// LatLon is a single grid point.
type LatLon struct {
	Lat float64
	Lon float64
}

// Grid is a rectilinear latitude/longitude grid. Both axes are finite,
// duplicate-free and strictly monotonic (either direction).
type Grid struct {
	Lat []float64
	Lon []float64
}

// NewGrid validates the axes and returns a Grid holding copies of them.
func NewGrid(lat, lon []float64) (Grid, error) {
	if err := validateAxis("latitude", lat); err != nil {
		return Grid{}, err
	}
	if err := validateAxis("longitude", lon); err != nil {
		return Grid{}, err
	}
	return Grid{Lat: cloneFloats(lat), Lon: cloneFloats(lon)}, nil
}

func validateAxis(name string, axis []float64) error {
	if len(axis) == 0 {
		return fmt.Errorf("%s axis is empty", name)
	}
	for i, v := range axis {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s axis has non-finite value at index %d", name, i)
		}
	}
	if len(axis) < 2 {
		return nil
	}
	increasing := axis[1] > axis[0]
	for i := 1; i < len(axis); i++ {
		if axis[i] == axis[i-1] {
			return fmt.Errorf("%s axis has duplicate value %g", name, axis[i])
		}
		if (axis[i] > axis[i-1]) != increasing {
			return fmt.Errorf("%s axis is not strictly monotonic at index %d", name, i)
		}
	}
	return nil
}

// Shape returns (nLat, nLon).
func (g Grid) Shape() (int, int) {
	return len(g.Lat), len(g.Lon)
}

// Points enumerates every grid point in row-major order: latitude varies
// slower than longitude. Consumers rely on this ordering.
func (g Grid) Points() []LatLon {
	points := make([]LatLon, 0, len(g.Lat)*len(g.Lon))
	for _, lat := range g.Lat {
		for _, lon := range g.Lon {
			points = append(points, LatLon{Lat: lat, Lon: lon})
		}
	}
	return points
}

// Equal reports whether both grids have identical axes.
func (g Grid) Equal(o Grid) bool {
	return floatsEqual(g.Lat, o.Lat) && floatsEqual(g.Lon, o.Lon)
}

// LatRange returns the minimum and maximum latitude.
func (g Grid) LatRange() [2]float64 { return axisRange(g.Lat) }

// LonRange returns the minimum and maximum longitude.
func (g Grid) LonRange() [2]float64 { return axisRange(g.Lon) }

func axisRange(axis []float64) [2]float64 {
	if len(axis) == 0 {
		return [2]float64{math.NaN(), math.NaN()}
	}
	lo, hi := axis[0], axis[len(axis)-1]
	if lo > hi {
		lo, hi = hi, lo
	}
	return [2]float64{lo, hi}
}

// GridFromPoints rebuilds a rectilinear grid from an arbitrary point list by
// taking the unique sorted latitudes and longitudes.
func GridFromPoints(points []LatLon) (Grid, error) {
	lats := make([]float64, 0, len(points))
	lons := make([]float64, 0, len(points))
	for _, p := range points {
		lats = append(lats, p.Lat)
		lons = append(lons, p.Lon)
	}
	return NewGrid(uniqueSorted(lats), uniqueSorted(lons))
}

// NormalizeLongitude maps a longitude above 180 into (-180, 180] by
// subtracting multiples of 360. Values already in range and non-finite
// values are returned unchanged.
func NormalizeLongitude(lon float64) float64 {
	if lon <= 180 || math.IsInf(lon, 0) {
		return lon
	}
	r := math.Mod(lon-180, 360)
	if r == 0 {
		return 180
	}
	return r - 180
}

// NormalizeLongitudes returns a normalised copy of lon. It is idempotent.
func NormalizeLongitudes(lon []float64) []float64 {
	out := make([]float64, len(lon))
	for i, v := range lon {
		out[i] = NormalizeLongitude(v)
	}
	return out
}

// NeedsLongitudeNormalization reports whether any value exceeds 180.
func NeedsLongitudeNormalization(lon []float64) bool {
	for _, v := range lon {
		if v > 180 {
			return true
		}
	}
	return false
}

// ReferenceGrid is the canonical grid derived from a land-surface dataset,
// with its flattened row-major point enumeration.
type ReferenceGrid struct {
	Grid   Grid
	Points []LatLon
}

// CoordinateSource exposes the coordinate variables of a dataset.
type CoordinateSource interface {
	Name() string
	VariableNames() []string
	// ReadCoordinate returns the flattened values of a 1-D or 2-D variable
	// and its shape.
	ReadCoordinate(name string) ([]float64, []int, error)
}

// CoordinateRoles maps the latitude and longitude roles to concrete
// variable names. Empty names fall back to DiscoverCoordinate.
type CoordinateRoles struct {
	Lat string
	Lon string
}

var roleNames = map[string][]string{
	"lat": {"lat", "latitude"},
	"lon": {"lon", "longitude"},
}

// DiscoverCoordinate finds the variable playing role ("lat" or "lon").
// An exact case-insensitive match on a conventional name wins; otherwise the
// role must match exactly one name as a case-insensitive substring.
func DiscoverCoordinate(names []string, role string) (string, bool, []string) {
	for _, want := range roleNames[role] {
		for _, name := range names {
			if strings.EqualFold(name, want) {
				return name, true, nil
			}
		}
	}
	var candidates []string
	for _, name := range names {
		if strings.Contains(strings.ToLower(name), role) {
			candidates = append(candidates, name)
		}
	}
	if len(candidates) == 1 {
		return candidates[0], true, nil
	}
	return "", false, candidates
}

// ExtractGrid derives the canonical reference grid from src.
//
// 1-D coordinates produce the outer product of the two axes. 2-D coordinates
// are used as-is, point by point, and the grid axes are their unique sorted
// values. Longitudes are normalised to (-180, 180] and both axes are sorted
// ascending.
func ExtractGrid(src CoordinateSource, roles CoordinateRoles) (ReferenceGrid, error) {
	names := src.VariableNames()
	schemaErr := &SchemaError{Source: src.Name(), Ambiguous: map[string][]string{}}

	resolve := func(role, configured string) string {
		if configured != "" {
			for _, name := range names {
				if name == configured {
					return name
				}
			}
			schemaErr.Missing = append(schemaErr.Missing, configured)
			return ""
		}
		name, ok, candidates := DiscoverCoordinate(names, role)
		if ok {
			return name
		}
		if len(candidates) == 0 {
			schemaErr.Missing = append(schemaErr.Missing, role)
		} else {
			schemaErr.Ambiguous[role] = candidates
		}
		return ""
	}

	latName := resolve("lat", roles.Lat)
	lonName := resolve("lon", roles.Lon)
	if len(schemaErr.Missing) > 0 || len(schemaErr.Ambiguous) > 0 {
		return ReferenceGrid{}, schemaErr
	}

	lat, latShape, err := src.ReadCoordinate(latName)
	if err != nil {
		return ReferenceGrid{}, fmt.Errorf("read %s: %w", latName, err)
	}
	lon, lonShape, err := src.ReadCoordinate(lonName)
	if err != nil {
		return ReferenceGrid{}, fmt.Errorf("read %s: %w", lonName, err)
	}

	switch {
	case len(latShape) == 1 && len(lonShape) == 1:
		grid, err := NewGrid(sortedAscending(lat), sortedAscending(NormalizeLongitudes(lon)))
		if err != nil {
			return ReferenceGrid{}, fmt.Errorf("reference grid of %s: %w", src.Name(), err)
		}
		return ReferenceGrid{Grid: grid, Points: grid.Points()}, nil
	case len(latShape) == 2 && len(lonShape) == 2:
		if latShape[0] != lonShape[0] || latShape[1] != lonShape[1] {
			return ReferenceGrid{}, fmt.Errorf("%w: 2-D coordinates %v and %v", ErrShapeMismatch, latShape, lonShape)
		}
		points := make([]LatLon, len(lat))
		for i := range lat {
			points[i] = LatLon{Lat: lat[i], Lon: NormalizeLongitude(lon[i])}
		}
		grid, err := GridFromPoints(points)
		if err != nil {
			return ReferenceGrid{}, fmt.Errorf("reference grid of %s: %w", src.Name(), err)
		}
		return ReferenceGrid{Grid: grid, Points: points}, nil
	default:
		return ReferenceGrid{}, fmt.Errorf("%w: coordinates must both be 1-D or both 2-D, got %dD and %dD",
			ErrShapeMismatch, len(latShape), len(lonShape))
	}
}

func sortedAscending(axis []float64) []float64 {
	out := cloneFloats(axis)
	sort.Float64s(out)
	return out
}

func uniqueSorted(values []float64) []float64 {
	out := sortedAscending(values)
	n := 0
	for i, v := range out {
		if i > 0 && v == out[n-1] {
			continue
		}
		out[n] = v
		n++
	}
	return out[:n]
}

func cloneFloats(v []float64) []float64 {
	if v == nil {
		return nil
	}
	out := make([]float64, len(v))
	copy(out, v)
	return out
}

func floatsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
