package usecase

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.ngs.io/gws-anomaly/internal/adapter/store/csv"
	"go.ngs.io/gws-anomaly/internal/config"
	"go.ngs.io/gws-anomaly/internal/domain"
)

func TestPipelineRun(t *testing.T) {
	root := t.TempDir()
	dir := func(name string) string { return filepath.Join(root, name) }
	lat, lon := []float64{0, 1}, []float64{10, 11}

	// Gravimetry on a wider 0..360 grid, one month longer than the
	// landsurface record.
	tws := fill(t, "lwe_thickness", "m", months(2004, 1, 25), srcLat, []float64{9, 10, 11, 12}, constant(0.05))
	writeNC(t, filepath.Join(dir("grace"), "GRCTellus.nc"), tws)

	swe := func(s, _ int) float64 {
		if s < 12 {
			return 10
		}
		return 30
	}
	landTimes := months(2004, 1, 24)
	writeNC(t, filepath.Join(dir("gldas"), "gldas_components.nc4"),
		fill(t, "SWE_inst", "kg m-2", landTimes, lat, lon, swe),
		fill(t, "CanopInt_inst", "kg m-2", landTimes, lat, lon, constant(0.2)))
	writeNC(t, filepath.Join(dir("soil"), "GLDAS_soil_2004.nc4"), soilLayers(t, 2004, 12, lat, lon)...)
	writeNC(t, filepath.Join(dir("soil"), "GLDAS_soil_2005.nc4"), soilLayers(t, 2005, 12, lat, lon)...)

	v, err := config.NewViper("")
	require.NoError(t, err)
	v.Set("workers", 2)
	v.Set("reference.file", filepath.Join(dir("gldas"), "gldas_components.nc4"))
	v.Set("reference.grid_csv", filepath.Join(root, "reference_grid.csv"))
	v.Set("gravimetry.input_dir", dir("grace"))
	v.Set("gravimetry.resampled_dir", dir("grace_resampled"))
	v.Set("landsurface.processed_dir", dir("gldas"))
	v.Set("landsurface.aligned_dir", dir("gldas_aligned"))
	v.Set("landsurface.soil_layer_dir", dir("soil"))
	v.Set("landsurface.soil_output", filepath.Join(dir("gldas"), "gldas_total_soil_moisture_0_200cm.nc"))
	v.Set("baseline.start", "2004-01-01")
	v.Set("baseline.end", "2005-12-31")
	v.Set("output.dir", dir("output"))
	cfg, err := config.Load(v)
	require.NoError(t, err)

	s, _, _ := newTestStages(t)
	report, err := NewPipeline(s, cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Skipped)
	assert.Contains(t, report.Written, filepath.Join(dir("output"), "groundwater_anomaly.nc"))
	assert.Contains(t, report.Written, filepath.Join(dir("grace_resampled"), "GRCTellus_resampled.nc"))
	assert.Contains(t, report.Written, filepath.Join(dir("gldas_aligned"), "gldas_total_soil_moisture_0_200cm.nc"))

	ref, err := s.LoadReferenceGrid(cfg.Reference.GridCSV)
	require.NoError(t, err)
	assert.Equal(t, lat, ref.Grid.Lat)
	assert.Equal(t, lon, ref.Grid.Lon)

	gws := readNC(t, filepath.Join(dir("output"), "groundwater_anomaly.nc"), domain.GroundwaterVariable)
	require.Len(t, gws.Times, 25)
	assert.Equal(t, lat, gws.Lat)
	assert.Equal(t, lon, gws.Lon)
	for step := range gws.Times {
		for _, v := range gws.Step(step) {
			switch {
			case step < 12:
				assert.InDelta(t, 6.0, v, 1e-9, "step %d", step)
			case step < 24:
				assert.InDelta(t, 4.0, v, 1e-9, "step %d", step)
			default:
				// No landsurface sample for 2006-01.
				assert.True(t, math.IsNaN(v), "step %d", step)
			}
		}
	}
}

func TestPipelineRun_RequiresReferenceFile(t *testing.T) {
	v, err := config.NewViper("")
	require.NoError(t, err)
	cfg, err := config.Load(v)
	require.NoError(t, err)

	s, _, _ := newTestStages(t)
	_, err = NewPipeline(s, cfg).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reference.file")
}

func TestReportMergeAndLog(t *testing.T) {
	s, _, hook := newTestStages(t)
	a := &Report{}
	a.wrote("b.nc")
	b := &Report{}
	b.wrote("a.nc")
	s.skip(b, StageAlign, "c.nc", assert.AnError)

	a.Merge(b)
	a.Merge(nil)
	a.sort()
	assert.Equal(t, []string{"a.nc", "b.nc"}, a.Written)
	require.Len(t, a.Skipped, 1)
	assert.Equal(t, Skip{Stage: StageAlign, Path: "c.nc", Reason: assert.AnError.Error()}, a.Skipped[0])

	hook.Reset()
	a.Log(s.log)
	require.Len(t, hook.Entries, 2)
	assert.Equal(t, "run summary", hook.Entries[0].Message)
	assert.Equal(t, 2, hook.Entries[0].Data["written"])
	assert.Equal(t, "c.nc", hook.LastEntry().Data["file"])
}

func TestPipelineReferenceGrid_PrefersListing(t *testing.T) {
	root := t.TempDir()
	listing := filepath.Join(root, "reference_grid.csv")
	grid, err := domain.NewGrid([]float64{0, 1}, []float64{10})
	require.NoError(t, err)
	require.NoError(t, csv.WriteReferenceGrid(listing, domain.ReferenceGrid{Grid: grid, Points: grid.Points()}))

	v, err := config.NewViper("")
	require.NoError(t, err)
	// The reference file does not exist; the listing is used instead.
	v.Set("reference.file", filepath.Join(root, "absent.nc"))
	v.Set("reference.grid_csv", listing)
	cfg, err := config.Load(v)
	require.NoError(t, err)

	s, _, _ := newTestStages(t)
	ref, err := NewPipeline(s, cfg).ReferenceGrid()
	require.NoError(t, err)
	assert.Equal(t, grid.Lat, ref.Grid.Lat)
	assert.Equal(t, grid.Lon, ref.Grid.Lon)
}
