package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/annotatron-api/internal/service"
)

// Metrics returns middleware that captures request metrics using the provided service.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			// unmatched paths would otherwise explode label cardinality
			route = "unmatched"
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, status, duration)
	}
}
