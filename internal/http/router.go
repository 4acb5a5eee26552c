package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"go.ngs.io/gws-anomaly/internal/observability"
	"go.ngs.io/gws-anomaly/internal/usecase"
)

// SetupRouter creates and configures the Gin router. An empty origins list
// allows every origin.
func SetupRouter(query *usecase.ProductQuery, metrics *observability.Metrics, log logrus.FieldLogger, origins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	// Setup CORS middleware.
	corsConfig := cors.DefaultConfig()
	if len(origins) > 0 {
		corsConfig.AllowOrigins = origins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	router.Use(cors.New(corsConfig))

	handler := NewHandler(query, metrics)

	// API v1 routes.
	v1 := router.Group("/v1")
	gws := v1.Group("/groundwater")
	gws.GET("/series", handler.GetSeries)
	gws.GET("/times", handler.GetTimes)

	router.GET("/health", handler.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

// requestLogger logs one line per request.
func requestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Info("request")
	}
}
