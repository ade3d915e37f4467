// Package middleware provides the Gin middleware shared by the public pages, the
// JSON API and the admin area. Everything here is registered in
// internal/api/router.go.
package middleware

import (
	"strconv"
	"time"

	"github.com/ai-navigator/navigator/internal/telemetry"
	"github.com/gin-gonic/gin"
)

// MetricsMiddleware records http_requests_total and http_request_duration_seconds
// for every request. The path label is the matched route template (c.FullPath()),
// so /go/chatgpt and /go/claude share the label /go/:id. Unmatched requests use
// "<no-route>".
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "<no-route>"
		}

		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
