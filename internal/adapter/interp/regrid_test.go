package interp

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.ngs.io/gws-anomaly/internal/domain"
)

var equateNaN = cmp.Options{cmpopts.EquateNaNs(), cmpopts.EquateApprox(0, 1e-9)}

func twoSteps() []time.Time {
	return []time.Time{
		time.Date(2004, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2004, time.February, 1, 0, 0, 0, 0, time.UTC),
	}
}

// linearField samples f(t, lat, lon) = t*100 + lat + lon/10 on the given axes.
func linearField(t *testing.T, lat, lon []float64) domain.Field {
	t.Helper()
	times := twoSteps()
	values := make([]float64, 0, len(times)*len(lat)*len(lon))
	for ti := range times {
		for _, y := range lat {
			for _, x := range lon {
				values = append(values, float64(ti)*100+y+domain.NormalizeLongitude(x)/10)
			}
		}
	}
	f, err := domain.NewField("lwe_thickness", times, lat, lon, values)
	require.NoError(t, err)
	f.Units = "m"
	return f
}

func TestNormalizeField_Idempotent(t *testing.T) {
	f := linearField(t, []float64{10, 0, -10}, []float64{0, 90, 180, 270})

	once := NormalizeField(f)
	twice := NormalizeField(once)

	assert.Equal(t, []float64{-10, 0, 10}, once.Lat)
	assert.Equal(t, []float64{-90, 0, 90, 180}, once.Lon)
	assert.Empty(t, cmp.Diff(once, twice, equateNaN))
	assert.Equal(t, []float64{0, 90, 180, 270}, f.Lon, "input is not modified")

	// Each value follows its coordinates through the permutation.
	for ti := range once.Times {
		for i, lat := range once.Lat {
			for j, lon := range once.Lon {
				assert.InDelta(t, float64(ti)*100+lat+lon/10, once.At(ti, i, j), 1e-9)
			}
		}
	}
}

func TestRegrid_Identity(t *testing.T) {
	f := linearField(t, []float64{-10, -5, 0, 5, 10}, []float64{-20, -10, 0, 10})
	f.Values[3] = math.NaN()

	got, err := Regrid(f, f.Grid())
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(f.Values, got.Values, equateNaN))
	assert.Equal(t, f.Lat, got.Lat)
	assert.Equal(t, f.Lon, got.Lon)
	assert.Equal(t, f.Times, got.Times)
}

func TestRegrid_Deterministic(t *testing.T) {
	f := linearField(t, []float64{0, 1, 2}, []float64{350, 0, 10})
	ref := domain.Grid{Lat: []float64{0.3, 1.7}, Lon: []float64{-5, 3, 7}}

	a, err := Regrid(f, ref)
	require.NoError(t, err)
	b, err := Regrid(f, ref)
	require.NoError(t, err)
	assert.Equal(t, math.Float64bits(a.Values[0]), math.Float64bits(b.Values[0]))
	assert.Empty(t, cmp.Diff(a.Values, b.Values))
}

func TestRegrid_DatelineScenario(t *testing.T) {
	// Source longitudes [170, 190] normalise to [170, -170] and must be
	// re-sorted before interpolation.
	lat := []float64{-10, 0, 10}
	f := linearField(t, lat, []float64{170, 190})
	ref := domain.Grid{Lat: lat, Lon: []float64{170, 190}}

	got, err := Regrid(f, ref)
	require.NoError(t, err)

	for ti := range got.Times {
		for i, y := range lat {
			assert.InDelta(t, float64(ti)*100+y+17, got.At(ti, i, 0), 1e-9)
			assert.InDelta(t, float64(ti)*100+y-17, got.At(ti, i, 1), 1e-9)
		}
	}
}

func TestRegrid_Interpolates(t *testing.T) {
	f := linearField(t, []float64{0, 2}, []float64{0, 10})
	ref := domain.Grid{Lat: []float64{1}, Lon: []float64{2.5, 5}}

	got, err := Regrid(f, ref)
	require.NoError(t, err)
	want := []float64{1.25, 1.5, 101.25, 101.5}
	assert.Empty(t, cmp.Diff(want, got.Values, equateNaN))
}

func TestRegrid_OutsideSourceIsMissing(t *testing.T) {
	f := linearField(t, []float64{0, 10}, []float64{0, 10})
	ref := domain.Grid{Lat: []float64{5, 20}, Lon: []float64{5, -5}}

	got, err := Regrid(f, ref)
	require.NoError(t, err)
	step := got.Step(0)
	assert.InDelta(t, 5.5, step[0], 1e-9)
	assert.True(t, math.IsNaN(step[1]))
	assert.True(t, math.IsNaN(step[2]))
	assert.True(t, math.IsNaN(step[3]))
}

func TestRegrid_NoOverlap(t *testing.T) {
	f := linearField(t, []float64{0, 10}, []float64{0, 10})
	ref := domain.Grid{Lat: []float64{50, 60}, Lon: []float64{100, 110, 120}}

	got, err := Regrid(f, ref)
	var mismatch *domain.GridMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.False(t, domain.IsFatal(err))
	assert.Equal(t, [2]float64{0, 10}, mismatch.SrcLat)
	assert.Equal(t, [2]float64{100, 120}, mismatch.RefLon)

	require.Len(t, got.Values, 2*2*3)
	for _, v := range got.Values {
		assert.True(t, math.IsNaN(v))
	}
	assert.Equal(t, ref.Lat, got.Lat)
	assert.Equal(t, ref.Lon, got.Lon)
}

func TestRegrid_NonFiniteSourceLongitude(t *testing.T) {
	f := linearField(t, []float64{0, 10}, []float64{0, 10})
	f.Lon = []float64{0, math.Inf(1)}

	_, err := Regrid(f, domain.Grid{Lat: []float64{5}, Lon: []float64{5}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-finite")
	assert.False(t, domain.IsFatal(err))
}

func TestNormalizeField_AlreadyNormalizedIsCopied(t *testing.T) {
	f := linearField(t, []float64{-10, 0, 10}, []float64{-20, 0, 20})

	got := NormalizeField(f)
	assert.Empty(t, cmp.Diff(f, got, equateNaN))
	got.Values[0] = 42
	assert.NotEqual(t, 42.0, f.Values[0])
}

func TestRegrid_ReferenceInZeroTo360(t *testing.T) {
	f := linearField(t, []float64{0, 1}, []float64{-30, -20})
	ref := domain.Grid{Lat: []float64{0}, Lon: []float64{335}}

	got, err := Regrid(f, ref)
	require.NoError(t, err)
	assert.InDelta(t, -2.5, got.Values[0], 1e-9)
}
