package http_test

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpHandler "go.ngs.io/gws-anomaly/internal/http"
	"go.ngs.io/gws-anomaly/internal/domain"
	"go.ngs.io/gws-anomaly/internal/observability"
	"go.ngs.io/gws-anomaly/internal/usecase"
)

func newTestRouter(t *testing.T, origins ...string) (*gin.Engine, *observability.Metrics) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	times := []time.Time{
		time.Date(2004, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2004, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	f, err := domain.NewField(domain.GroundwaterVariable, times, []float64{0, 1}, []float64{10, 11},
		[]float64{1, 2, 3, 4, math.NaN(), 2, 3, 4})
	require.NoError(t, err)
	f.Units = "cm"

	q, err := usecase.NewProductQuery(f)
	require.NoError(t, err)
	metrics := observability.NewMetricsForTesting()
	logger, _ := logtest.NewNullLogger()
	return httpHandler.SetupRouter(q, metrics, logger, origins), metrics
}

func get(router http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealthReturns200(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := get(router, "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestSeries(t *testing.T) {
	router, metrics := newTestRouter(t)
	rec := get(router, "/v1/groundwater/series?lat=0&lon=10")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body usecase.SeriesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, domain.GroundwaterVariable, body.Variable)
	assert.Equal(t, "cm", body.Units)
	require.Len(t, body.Series, 2)
	require.NotNil(t, body.Series[0].Value)
	assert.Equal(t, 1.0, *body.Series[0].Value)
	assert.Nil(t, body.Series[1].Value)
	assert.Contains(t, rec.Body.String(), `"value":null`)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.QueryRequests.WithLabelValues("series", "ok")))
}

func TestSeries_Window(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := get(router, "/v1/groundwater/series?lat=0.5&lon=10.5&end=2004-01-15T00:00:00Z")
	require.Equal(t, http.StatusOK, rec.Code)

	var body usecase.SeriesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Series, 1)
	assert.InDelta(t, 2.5, *body.Series[0].Value, 1e-12)
}

func TestSeries_BadRequests(t *testing.T) {
	router, metrics := newTestRouter(t)
	for _, target := range []string{
		"/v1/groundwater/series",
		"/v1/groundwater/series?lat=abc&lon=10",
		"/v1/groundwater/series?lat=0&lon=abc",
		"/v1/groundwater/series?lat=95&lon=10",
		"/v1/groundwater/series?lat=50&lon=10",
		"/v1/groundwater/series?lat=0&lon=10&start=yesterday",
	} {
		rec := get(router, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.NotEmpty(t, body["error"], target)
	}
	assert.Equal(t, 6.0, testutil.ToFloat64(metrics.QueryRequests.WithLabelValues("series", "bad_request")))
}

func TestTimes(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := get(router, "/v1/groundwater/times")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Units string   `json:"units"`
		Times []string `json:"times"`
		Count int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "cm", body.Units)
	assert.Equal(t, []string{"2004-01-01T00:00:00Z", "2004-02-01T00:00:00Z"}, body.Times)
	assert.Equal(t, 2, body.Count)
}

func TestCORS(t *testing.T) {
	router, _ := newTestRouter(t, "https://maps.example.org")

	req := httptest.NewRequest(http.MethodGet, "/v1/groundwater/times", nil)
	req.Header.Set("Origin", "https://maps.example.org")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "https://maps.example.org", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/v1/groundwater/times", nil)
	req.Header.Set("Origin", "https://elsewhere.example.org")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := get(router, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}
