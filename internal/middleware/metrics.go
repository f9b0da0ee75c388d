package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sgpt-dev/sgpt-api/internal/service"
)

// Metrics records method, route template, status and duration for every
// request. The route template keeps label cardinality bounded; unmatched
// requests fall back to the raw path.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	if metricsSvc == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
