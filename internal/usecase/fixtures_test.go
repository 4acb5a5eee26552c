package usecase

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"go.ngs.io/gws-anomaly/internal/adapter/store/dataset"
	"go.ngs.io/gws-anomaly/internal/domain"
	"go.ngs.io/gws-anomaly/internal/observability"
)

func newTestStages(t *testing.T) (*Stages, *observability.Metrics, *logtest.Hook) {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	metrics := observability.NewMetricsForTesting()
	return NewStages(dataset.Files{}, logger, metrics, 2), metrics, hook
}

// months returns n first-of-month instants starting at year/month.
func months(year int, month time.Month, n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = time.Date(year, month+time.Month(i), 1, 0, 0, 0, 0, time.UTC)
	}
	return out
}

// fill builds a field whose every cell at step t equals value(t, cell).
func fill(t *testing.T, name, units string, times []time.Time, lat, lon []float64, value func(step, cell int) float64) domain.Field {
	t.Helper()
	n := len(lat) * len(lon)
	values := make([]float64, len(times)*n)
	for s := range times {
		for c := 0; c < n; c++ {
			values[s*n+c] = value(s, c)
		}
	}
	f, err := domain.NewField(name, times, lat, lon, values)
	require.NoError(t, err)
	f.Units = units
	return f
}

func constant(v float64) func(int, int) float64 {
	return func(int, int) float64 { return v }
}

func writeNC(t *testing.T, path string, fields ...domain.Field) {
	t.Helper()
	require.NoError(t, dataset.Write(path, nil, fields...))
}

func writeGarbage(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("not a netcdf file"), 0o600))
}

func readNC(t *testing.T, path, variable string) domain.Field {
	t.Helper()
	fields, err := dataset.Files{}.ReadFields(path, []string{variable}, domain.CoordinateRoles{})
	require.NoError(t, err)
	return fields[0]
}
