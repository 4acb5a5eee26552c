package usecase

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go.ngs.io/gws-anomaly/internal/adapter/interp"
	"go.ngs.io/gws-anomaly/internal/adapter/store"
	"go.ngs.io/gws-anomaly/internal/domain"
)

// ErrInvalidQuery marks a request rejected before touching the product.
var ErrInvalidQuery = errors.New("invalid query")

// SeriesRequest asks for the anomaly time series at one location.
type SeriesRequest struct {
	Lat float64
	Lon float64

	// Optional time window, inclusive. Zero values leave it open.
	Start time.Time
	End   time.Time
}

// Validate checks coordinate ranges and the time window.
func (r *SeriesRequest) Validate() error {
	if math.IsNaN(r.Lat) || r.Lat < -90 || r.Lat > 90 {
		return fmt.Errorf("%w: latitude must be between -90 and 90", ErrInvalidQuery)
	}
	if math.IsNaN(r.Lon) || r.Lon < -180 || r.Lon > 360 {
		return fmt.Errorf("%w: longitude must be between -180 and 360", ErrInvalidQuery)
	}
	if !r.Start.IsZero() && !r.End.IsZero() && r.End.Before(r.Start) {
		return fmt.Errorf("%w: end must not be before start", ErrInvalidQuery)
	}
	return nil
}

// SeriesPoint is one time step. Value is nil where the product has no data.
type SeriesPoint struct {
	Time  string   `json:"time"`
	Value *float64 `json:"value"`
}

// SeriesResponse is the anomaly series at a location.
type SeriesResponse struct {
	Variable string            `json:"variable"`
	Units    string            `json:"units"`
	Lat      float64           `json:"lat"`
	Lon      float64           `json:"lon"`
	Series   []SeriesPoint     `json:"series"`
	Meta     map[string]string `json:"meta"`
}

// ProductQuery answers point queries against a loaded groundwater product.
type ProductQuery struct {
	field  domain.Field
	steps  []interp.Grid2D
	global map[string]string
}

// productAttrs are the global attributes reported with every series.
var productAttrs = []string{"institution", "source", "history"}

// LoadProductQuery reads the groundwater variable from every path (one file,
// or the per-year split of a product) and joins them along time.
func LoadProductQuery(files store.Files, paths ...string) (*ProductQuery, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no product files")
	}
	parts := make([]domain.Field, 0, len(paths))
	for _, path := range paths {
		fields, err := files.ReadFields(path, []string{domain.GroundwaterVariable}, domain.CoordinateRoles{})
		if err != nil {
			return nil, fmt.Errorf("failed to load product %s: %w", path, err)
		}
		parts = append(parts, fields[0])
	}
	f, err := domain.ConcatTime(parts...)
	if err != nil {
		return nil, err
	}
	q, err := NewProductQuery(f)
	if err != nil {
		return nil, err
	}
	if q.global, err = files.ReadGlobalAttrs(paths[0], productAttrs...); err != nil {
		return nil, fmt.Errorf("failed to load product %s: %w", paths[0], err)
	}
	return q, nil
}

// NewProductQuery indexes f for interpolation. Axes are normalised to
// ascending order with longitudes in (-180, 180].
func NewProductQuery(f domain.Field) (*ProductQuery, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	f = interp.NormalizeField(f)
	nLon := len(f.Lon)
	steps := make([]interp.Grid2D, len(f.Times))
	for t := range f.Times {
		step := f.Step(t)
		rows := make([][]float64, len(f.Lat))
		for i := range rows {
			rows[i] = step[i*nLon : (i+1)*nLon]
		}
		steps[t] = interp.Grid2D{X: f.Lon, Y: f.Lat, Values: rows}
	}
	if len(steps) > 0 {
		if err := steps[0].Validate(); err != nil {
			return nil, fmt.Errorf("product grid: %w", err)
		}
	}
	return &ProductQuery{field: f, steps: steps}, nil
}

// Times lists the product's time steps.
func (q *ProductQuery) Times() []time.Time {
	return append([]time.Time(nil), q.field.Times...)
}

// Units returns the product's units.
func (q *ProductQuery) Units() string {
	return q.field.Units
}

// SeriesAt interpolates the product bilinearly at the requested location for
// every time step in the window.
func (q *ProductQuery) SeriesAt(req SeriesRequest) (*SeriesResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	lon := domain.NormalizeLongitude(req.Lon)

	series := make([]SeriesPoint, 0, len(q.steps))
	for t, ts := range q.field.Times {
		if !req.Start.IsZero() && ts.Before(req.Start) {
			continue
		}
		if !req.End.IsZero() && ts.After(req.End) {
			continue
		}
		v, err := q.steps[t].InterpolateAt(lon, req.Lat)
		if err != nil {
			return nil, err
		}
		p := SeriesPoint{Time: ts.UTC().Format(time.RFC3339)}
		if !math.IsNaN(v) {
			p.Value = &v
		}
		series = append(series, p)
	}

	meta := map[string]string{
		"long_name":   q.field.LongName,
		"interpolate": "bilinear",
		"steps":       fmt.Sprint(len(series)),
	}
	if baseline := q.field.Attrs["baseline_period"]; baseline != "" {
		meta["baseline_period"] = baseline
	}
	for k, v := range q.global {
		meta[k] = v
	}

	return &SeriesResponse{
		Variable: q.field.Name,
		Units:    q.field.Units,
		Lat:      req.Lat,
		Lon:      lon,
		Series:   series,
		Meta:     meta,
	}, nil
}
