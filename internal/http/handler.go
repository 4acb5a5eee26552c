// Package http serves point queries against a groundwater anomaly product.
package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"go.ngs.io/gws-anomaly/internal/adapter/interp"
	"go.ngs.io/gws-anomaly/internal/domain"
	"go.ngs.io/gws-anomaly/internal/observability"
	"go.ngs.io/gws-anomaly/internal/usecase"
)

// Handler handles HTTP requests for the groundwater product.
type Handler struct {
	query   *usecase.ProductQuery
	metrics *observability.Metrics
}

// NewHandler creates a new HTTP handler.
func NewHandler(query *usecase.ProductQuery, metrics *observability.Metrics) *Handler {
	return &Handler{
		query:   query,
		metrics: metrics,
	}
}

func (h *Handler) fail(c *gin.Context, endpoint string, status int, err error) {
	outcome := "error"
	if status == http.StatusBadRequest {
		outcome = "bad_request"
	}
	h.metrics.QueryRequests.WithLabelValues(endpoint, outcome).Inc()
	c.JSON(status, gin.H{"error": err.Error()})
}

// GetSeries handles GET /v1/groundwater/series.
func (h *Handler) GetSeries(c *gin.Context) {
	const endpoint = "series"

	// Parse query parameters.
	latStr := c.Query("lat")
	lonStr := c.Query("lon")
	if latStr == "" || lonStr == "" {
		h.fail(c, endpoint, http.StatusBadRequest, errors.New("lat and lon parameters are required"))
		return
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		h.fail(c, endpoint, http.StatusBadRequest, fmt.Errorf("invalid latitude: %v", err))
		return
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		h.fail(c, endpoint, http.StatusBadRequest, fmt.Errorf("invalid longitude: %v", err))
		return
	}
	req := usecase.SeriesRequest{Lat: lat, Lon: lon}

	// Optional time window.
	if s := c.Query("start"); s != "" {
		if req.Start, err = time.Parse(time.RFC3339, s); err != nil {
			h.fail(c, endpoint, http.StatusBadRequest, fmt.Errorf("invalid start time (expected RFC3339): %v", err))
			return
		}
	}
	if s := c.Query("end"); s != "" {
		if req.End, err = time.Parse(time.RFC3339, s); err != nil {
			h.fail(c, endpoint, http.StatusBadRequest, fmt.Errorf("invalid end time (expected RFC3339): %v", err))
			return
		}
	}

	response, err := h.query.SeriesAt(req)
	switch {
	case errors.Is(err, usecase.ErrInvalidQuery), errors.Is(err, interp.ErrOutsideGrid):
		h.fail(c, endpoint, http.StatusBadRequest, err)
		return
	case err != nil:
		h.fail(c, endpoint, http.StatusInternalServerError, err)
		return
	}

	h.metrics.QueryRequests.WithLabelValues(endpoint, "ok").Inc()
	c.JSON(http.StatusOK, response)
}

// GetTimes handles GET /v1/groundwater/times.
func (h *Handler) GetTimes(c *gin.Context) {
	times := h.query.Times()
	out := make([]string, len(times))
	for i, t := range times {
		out[i] = t.UTC().Format(time.RFC3339)
	}
	h.metrics.QueryRequests.WithLabelValues("times", "ok").Inc()
	c.JSON(http.StatusOK, gin.H{
		"variable": domain.GroundwaterVariable,
		"units":    h.query.Units(),
		"times":    out,
		"count":    len(out),
	})
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   domain.Now().Format(time.RFC3339),
	})
}
