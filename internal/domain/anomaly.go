package domain

import (
	"fmt"
	"math"
	"time"
)

// BaselinePeriod is the closed interval [Start, End] a climatology is
// computed over.
type BaselinePeriod struct {
	Start time.Time
	End   time.Time
}

// NewBaselinePeriod returns a period in UTC. Start must not be after End.
func NewBaselinePeriod(start, end time.Time) (BaselinePeriod, error) {
	if start.After(end) {
		return BaselinePeriod{}, fmt.Errorf("%w: start %s is after end %s",
			ErrInvalidBaseline, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return BaselinePeriod{Start: start.UTC(), End: end.UTC()}, nil
}

// Contains reports whether t lies in [Start, End].
func (p BaselinePeriod) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

func (p BaselinePeriod) String() string {
	return p.Start.Format(time.DateOnly) + " to " + p.End.Format(time.DateOnly)
}

// Climatology holds the baseline mean per calendar month and cell.
// Means[m-1] is nil when the baseline has no samples for month m.
type Climatology struct {
	Lat   []float64
	Lon   []float64
	Means [12][]float64
	Steps [12]int
}

// Month returns the mean field for calendar month m and whether it is
// defined.
func (c Climatology) Month(m time.Month) ([]float64, bool) {
	means := c.Means[m-1]
	return means, means != nil
}

// ComputeClimatology averages every baseline time step of f per calendar
// month and cell, skipping missing samples. A cell with no valid sample in a
// month is NaN. A baseline selecting no time step at all is an
// *EmptyBaselineError.
func ComputeClimatology(f Field, period BaselinePeriod) (Climatology, error) {
	if err := f.Validate(); err != nil {
		return Climatology{}, err
	}
	n := f.CellCount()
	clim := Climatology{Lat: f.Lat, Lon: f.Lon}
	var sums, counts [12][]float64

	selected := 0
	for t, ts := range f.Times {
		if !period.Contains(ts) {
			continue
		}
		selected++
		m := ts.UTC().Month() - 1
		if sums[m] == nil {
			sums[m] = make([]float64, n)
			counts[m] = make([]float64, n)
		}
		clim.Steps[m]++
		for c, v := range f.Step(t) {
			if math.IsNaN(v) {
				continue
			}
			sums[m][c] += v
			counts[m][c]++
		}
	}
	if selected == 0 {
		return Climatology{}, &EmptyBaselineError{Field: f.Name, Period: period}
	}

	for m := range sums {
		if sums[m] == nil {
			continue
		}
		means := make([]float64, n)
		for c := range means {
			if counts[m][c] == 0 {
				means[c] = math.NaN()
				continue
			}
			means[c] = sums[m][c] / counts[m][c]
		}
		clim.Means[m] = means
	}
	return clim, nil
}

// Subtract removes the climatology from every time step of f. Steps whose
// calendar month has no climatology become entirely missing.
func (c Climatology) Subtract(f Field) (Field, error) {
	if !floatsEqual(c.Lat, f.Lat) || !floatsEqual(c.Lon, f.Lon) {
		return Field{}, fmt.Errorf("%w: climatology grid differs from %s", ErrShapeMismatch, f.Name)
	}
	out := make([]float64, len(f.Values))
	n := f.CellCount()
	for t, ts := range f.Times {
		dst := out[t*n : (t+1)*n]
		means, ok := c.Month(ts.UTC().Month())
		if !ok {
			for i := range dst {
				dst[i] = math.NaN()
			}
			continue
		}
		for i, v := range f.Step(t) {
			dst[i] = v - means[i]
		}
	}
	return f.WithValues(f.Times, out), nil
}

// MonthlyAnomaly computes the baseline climatology of f and subtracts it from
// every time step of the full series.
func MonthlyAnomaly(f Field, period BaselinePeriod) (Field, error) {
	clim, err := ComputeClimatology(f, period)
	if err != nil {
		return Field{}, err
	}
	anom, err := clim.Subtract(f)
	if err != nil {
		return Field{}, err
	}
	if anom.Attrs == nil {
		anom.Attrs = map[string]string{}
	}
	anom.Attrs["baseline"] = period.String()
	return anom, nil
}
