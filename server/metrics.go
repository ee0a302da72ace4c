package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"path", "method", "status"},
	)
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"path"},
	)
	predictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Successful predictions by disease label",
		}, []string{"label"},
	)
	outcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "predict_outcomes_total",
			Help: "Predict requests by outcome kind",
		}, []string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(requestCount, requestDuration, predictionsTotal, outcomesTotal)
}

func metricsMiddleware(c *gin.Context) {
	start := time.Now()
	c.Next()
	path := c.FullPath()
	if path == "" {
		path = "unmatched"
	}
	requestCount.WithLabelValues(path, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
	requestDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
}
