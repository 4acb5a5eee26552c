package interp

import (
	"fmt"
	"math"
	"sort"

	"go.ngs.io/gws-anomaly/internal/domain"
)

// NormalizeField maps longitudes into (-180, 180] and sorts both axes
// ascending, permuting the values to match. Applying it twice gives the same
// result as applying it once.
func NormalizeField(f domain.Field) domain.Field {
	if !domain.NeedsLongitudeNormalization(f.Lon) && ascending(f.Lat) && ascending(f.Lon) {
		return f.Clone()
	}
	lon := domain.NormalizeLongitudes(f.Lon)
	lonOrder := ascendingOrder(lon)
	latOrder := ascendingOrder(f.Lat)

	out := f.WithValues(f.Times, make([]float64, len(f.Values)))
	out.Lat = permute(f.Lat, latOrder)
	out.Lon = permute(lon, lonOrder)

	nLat, nLon := len(f.Lat), len(f.Lon)
	for t := range f.Times {
		for i, si := range latOrder {
			for j, sj := range lonOrder {
				out.Values[(t*nLat+i)*nLon+j] = f.At(t, si, sj)
			}
		}
	}
	return out
}

func ascending(axis []float64) bool {
	return sort.SliceIsSorted(axis, func(a, b int) bool { return axis[a] < axis[b] })
}

func ascendingOrder(axis []float64) []int {
	order := make([]int, len(axis))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return axis[order[a]] < axis[order[b]] })
	return order
}

func permute(axis []float64, order []int) []float64 {
	out := make([]float64, len(order))
	for i, k := range order {
		out[i] = axis[k]
	}
	return out
}

// stencil holds the corners and weights of one target point.
type stencil struct {
	y0, y1, x0, x1 int
	t, u           float64
	ok             bool
}

// Regrid resamples f onto ref by bilinear interpolation, independently at
// every time step. Source longitudes are normalised and both source axes
// sorted first; target longitudes are normalised before lookup.
//
// Target points outside the source grid are NaN. When no target point falls
// inside the source grid the all-NaN field is returned together with a
// *domain.GridMismatchError.
func Regrid(f domain.Field, ref domain.Grid) (domain.Field, error) {
	if err := f.Validate(); err != nil {
		return domain.Field{}, err
	}
	src := NormalizeField(f)
	if _, err := domain.NewGrid(src.Lat, src.Lon); err != nil {
		return domain.Field{}, fmt.Errorf("source grid of %s: %w", f.Name, err)
	}

	nLat, nLon := len(ref.Lat), len(ref.Lon)
	stencils := make([]stencil, 0, nLat*nLon)
	inside := 0
	for _, lat := range ref.Lat {
		y0, y1, u, okY := bracket(src.Lat, lat)
		for _, lon := range ref.Lon {
			x0, x1, t, okX := bracket(src.Lon, domain.NormalizeLongitude(lon))
			s := stencil{y0: y0, y1: y1, x0: x0, x1: x1, t: t, u: u, ok: okY && okX}
			if s.ok {
				inside++
			}
			stencils = append(stencils, s)
		}
	}

	out := src.WithValues(src.Times, make([]float64, len(src.Times)*nLat*nLon))
	out.Lat = append([]float64(nil), ref.Lat...)
	out.Lon = append([]float64(nil), ref.Lon...)

	for t := range src.Times {
		dst := out.Step(t)
		for k, s := range stencils {
			if !s.ok {
				dst[k] = math.NaN()
				continue
			}
			dst[k] = blend(
				src.At(t, s.y0, s.x0), src.At(t, s.y0, s.x1),
				src.At(t, s.y1, s.x0), src.At(t, s.y1, s.x1),
				s.t, s.u,
			)
		}
	}

	if inside == 0 && len(stencils) > 0 {
		return out, &domain.GridMismatchError{
			Source: f.Name,
			SrcLat: src.Grid().LatRange(),
			SrcLon: src.Grid().LonRange(),
			RefLat: ref.LatRange(),
			RefLon: ref.LonRange(),
		}
	}
	return out, nil
}
