package domain

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
)

// FillValue is the missing-value sentinel written to output files.
const FillValue = -9999.0

// Field is a named scalar quantity over (time, lat, lon).
//
// Values is flattened in row-major order: time varies slowest, longitude
// fastest. Missing samples are NaN.
type Field struct {
	Name     string
	Units    string
	LongName string
	Attrs    map[string]string

	Times  []time.Time
	Lat    []float64
	Lon    []float64
	Values []float64
}

// NewField builds a field and checks that Values matches the axes.
func NewField(name string, times []time.Time, lat, lon, values []float64) (Field, error) {
	f := Field{
		Name:   name,
		Times:  times,
		Lat:    lat,
		Lon:    lon,
		Values: values,
	}
	if err := f.Validate(); err != nil {
		return Field{}, err
	}
	return f, nil
}

// Validate checks the length of Values against the axes.
func (f Field) Validate() error {
	want := len(f.Times) * len(f.Lat) * len(f.Lon)
	if len(f.Values) != want {
		return fmt.Errorf("%w: %s has %d values, axes need %d (%d x %d x %d)",
			ErrShapeMismatch, f.Name, len(f.Values), want, len(f.Times), len(f.Lat), len(f.Lon))
	}
	return nil
}

// CellCount is the number of spatial cells per time step.
func (f Field) CellCount() int {
	return len(f.Lat) * len(f.Lon)
}

// Index returns the flat index of (t, i, j).
func (f Field) Index(t, i, j int) int {
	return (t*len(f.Lat)+i)*len(f.Lon) + j
}

// At returns the sample at time step t, latitude index i and longitude index j.
func (f Field) At(t, i, j int) float64 {
	return f.Values[f.Index(t, i, j)]
}

// Step returns the spatial slice of time step t. The slice aliases Values.
func (f Field) Step(t int) []float64 {
	n := f.CellCount()
	return f.Values[t*n : (t+1)*n]
}

// Grid returns the spatial grid of the field.
func (f Field) Grid() Grid {
	return Grid{Lat: f.Lat, Lon: f.Lon}
}

// SameGrid reports whether both fields share identical spatial axes.
func (f Field) SameGrid(o Field) bool {
	return f.Grid().Equal(o.Grid())
}

// SameAxes reports whether both fields share identical time and spatial axes.
func (f Field) SameAxes(o Field) bool {
	return f.SameGrid(o) && timesEqual(f.Times, o.Times)
}

// WithValues returns a copy of f's metadata and axes with new values and
// time axis.
func (f Field) WithValues(times []time.Time, values []float64) Field {
	out := f
	out.Attrs = cloneAttrs(f.Attrs)
	out.Times = times
	out.Values = values
	return out
}

// Clone returns a deep copy of f.
func (f Field) Clone() Field {
	out := f
	out.Attrs = cloneAttrs(f.Attrs)
	out.Times = append([]time.Time(nil), f.Times...)
	out.Lat = cloneFloats(f.Lat)
	out.Lon = cloneFloats(f.Lon)
	out.Values = cloneFloats(f.Values)
	return out
}

// SelectSteps returns a new field holding only the given time step indices,
// in the order given.
func (f Field) SelectSteps(steps []int) Field {
	n := f.CellCount()
	times := make([]time.Time, len(steps))
	values := make([]float64, 0, len(steps)*n)
	for k, t := range steps {
		times[k] = f.Times[t]
		values = append(values, f.Step(t)...)
	}
	return f.WithValues(times, values)
}

// ValidCount returns the number of non-missing samples.
func (f Field) ValidCount() int {
	n := 0
	for _, v := range f.Values {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

// ConcatTime joins fields of the same variable along time. Inputs may come
// in any order; the result is sorted ascending. All fields must share the
// spatial grid and no instant may appear twice.
func ConcatTime(fields ...Field) (Field, error) {
	if len(fields) == 0 {
		return Field{}, fmt.Errorf("concat: no fields")
	}
	first := fields[0]
	type step struct {
		t      time.Time
		values []float64
	}
	var steps []step
	for _, f := range fields {
		if !f.SameGrid(first) {
			return Field{}, fmt.Errorf("%w: concat %s: grids differ", ErrShapeMismatch, f.Name)
		}
		for t := range f.Times {
			steps = append(steps, step{t: f.Times[t], values: f.Step(t)})
		}
	}
	sort.SliceStable(steps, func(a, b int) bool { return steps[a].t.Before(steps[b].t) })

	times := make([]time.Time, len(steps))
	values := make([]float64, 0, len(steps)*first.CellCount())
	for k, s := range steps {
		if k > 0 && s.t.Equal(times[k-1]) {
			return Field{}, fmt.Errorf("%w: concat %s: duplicate time %s",
				ErrShapeMismatch, first.Name, s.t.Format(time.RFC3339))
		}
		times[k] = s.t
		values = append(values, s.values...)
	}
	out := first.WithValues(times, values)
	out.Lat = cloneFloats(first.Lat)
	out.Lon = cloneFloats(first.Lon)
	return out, nil
}

// SplitByYear partitions f into one field per calendar year, keyed by year.
// Use [Years] for a deterministic iteration order.
func SplitByYear(f Field) map[int]Field {
	byYear := map[int][]int{}
	for t, ts := range f.Times {
		y := ts.UTC().Year()
		byYear[y] = append(byYear[y], t)
	}
	out := make(map[int]Field, len(byYear))
	for y, steps := range byYear {
		out[y] = f.SelectSteps(steps)
	}
	return out
}

// Years returns the sorted calendar years present in f.
func Years(f Field) []int {
	seen := map[int]bool{}
	var years []int
	for _, ts := range f.Times {
		y := ts.UTC().Year()
		if !seen[y] {
			seen[y] = true
			years = append(years, y)
		}
	}
	sort.Ints(years)
	return years
}

// SumLayers adds fields that share every axis, cell by cell. A missing sample
// in any layer makes the sum missing.
func SumLayers(name string, layers ...Field) (Field, error) {
	if len(layers) == 0 {
		return Field{}, fmt.Errorf("sum %s: no layers", name)
	}
	base := layers[0]
	sum := cloneFloats(base.Values)
	for _, layer := range layers[1:] {
		if !layer.SameAxes(base) {
			return Field{}, fmt.Errorf("%w: sum %s: layer %s axes differ from %s",
				ErrShapeMismatch, name, layer.Name, base.Name)
		}
		if layer.Units != base.Units {
			return Field{}, &UnitError{Field: layer.Name, Units: layer.Units, Want: base.Units}
		}
		floats.Add(sum, layer.Values)
	}
	out := base.WithValues(base.Times, sum)
	out.Name = name
	out.LongName = ""
	return out, nil
}

func timesEqual(a, b []time.Time) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func cloneAttrs(attrs map[string]string) map[string]string {
	if attrs == nil {
		return nil
	}
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
