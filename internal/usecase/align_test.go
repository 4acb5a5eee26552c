package usecase

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.ngs.io/gws-anomaly/internal/domain"
)

func TestAlignDirectory(t *testing.T) {
	s, metrics, _ := newTestStages(t)
	root := t.TempDir()
	refDir := filepath.Join(root, "resampled")
	targetDir := filepath.Join(root, "processed")
	outDir := filepath.Join(root, "aligned")
	lat, lon := []float64{0, 1}, []float64{10, 11}

	// Pooled reference: Jan..Apr 2004, with Feb and Mar in both files.
	writeNC(t, filepath.Join(refDir, "a.nc"), fill(t, "lwe_thickness", "cm", months(2004, 1, 3), lat, lon, constant(1)))
	writeNC(t, filepath.Join(refDir, "b.nc"), fill(t, "lwe_thickness", "cm", months(2004, 2, 3), lat, lon, constant(1)))

	step := func(s, _ int) float64 { return float64(s) }
	writeNC(t, filepath.Join(targetDir, "gldas_SWE_inst.nc4"),
		fill(t, "SWE_inst", "kg m-2", months(2003, 11, 8), lat, lon, step),
		fill(t, "Tair_f_inst", "K", months(2003, 11, 8), lat, lon, constant(280)))
	writeNC(t, filepath.Join(targetDir, "gldas_late.nc"), fill(t, "CanopInt_inst", "kg m-2", months(2010, 1, 3), lat, lon, constant(0)))
	writeNC(t, filepath.Join(targetDir, "gldas_other.nc"), fill(t, "Rainf_tavg", "kg m-2 s-1", months(2004, 1, 3), lat, lon, constant(0)))

	report, err := s.AlignDirectory(context.Background(), AlignRequest{
		ReferenceDir: refDir,
		TargetDir:    targetDir,
		OutputDir:    outDir,
		Variables:    []string{"SWE_inst", "CanopInt_inst"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(outDir, "gldas_SWE_inst.nc")}, report.Written)
	require.Len(t, report.Skipped, 2)
	assert.Equal(t, filepath.Join(targetDir, "gldas_late.nc"), report.Skipped[0].Path)
	assert.Equal(t, filepath.Join(targetDir, "gldas_other.nc"), report.Skipped[1].Path)

	got := readNC(t, filepath.Join(outDir, "gldas_SWE_inst.nc"), "SWE_inst")
	assert.Equal(t, months(2004, 1, 4), got.Times)
	// Steps 2..5 of the Nov 2003 series.
	assert.Equal(t, []float64{2, 2, 2, 2, 3, 3, 3, 3, 4, 4, 4, 4, 5, 5, 5, 5}, got.Values)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FilesSkipped.WithLabelValues(StageAlign, "no_time_overlap")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FilesSkipped.WithLabelValues(StageAlign, "io")))
}

func TestReferenceTimes_SkipsUnreadable(t *testing.T) {
	s, _, _ := newTestStages(t)
	dir := t.TempDir()
	lat, lon := []float64{0}, []float64{10}
	writeNC(t, filepath.Join(dir, "a.nc"), fill(t, "lwe_thickness", "cm", months(2004, 3, 2), lat, lon, constant(1)))
	writeNC(t, filepath.Join(dir, "b.nc"), fill(t, "lwe_thickness", "cm", months(2004, 1, 3), lat, lon, constant(1)))
	writeGarbage(t, filepath.Join(dir, "c.nc"))

	report := &Report{}
	pool, err := s.ReferenceTimes(context.Background(), dir, report)
	require.NoError(t, err)
	assert.Equal(t, months(2004, 1, 4), pool)
	require.Len(t, report.Skipped, 1)
}

func TestPresent(t *testing.T) {
	assert.Equal(t, []string{"b", "a"}, present([]string{"b", "x", "a"}, []string{"a", "b", "c"}))
	assert.Empty(t, present([]string{"x"}, []string{"a"}))
}

func TestAlignDirectory_NoReferenceFiles(t *testing.T) {
	s, _, _ := newTestStages(t)
	_, err := s.AlignDirectory(context.Background(), AlignRequest{
		ReferenceDir: filepath.Join(t.TempDir(), "absent"),
		TargetDir:    t.TempDir(),
		OutputDir:    t.TempDir(),
		Variables:    []string{"SWE_inst"},
	})
	require.Error(t, err)
	assert.False(t, domain.IsFatal(err))
}
