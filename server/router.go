package server

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	requestIDKey    = "request_id"
	requestIDHeader = "X-Request-ID"
)

func requestID(c *gin.Context) {
	id := c.GetHeader(requestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Set(requestIDKey, id)
	c.Header(requestIDHeader, id)
	c.Next()
}

func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID, metricsMiddleware)
	r.MaxMultipartMemory = maxUploadMemory

	r.POST("/predict", h.Predict)
	r.GET("/health", HealthHandler)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}
