package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	awspkg "github.com/yashrajoria/storefront/pkg/aws"
)

// Metrics records request count, latency and error counts per route in
// CloudWatch. Publishing happens off the request goroutine.
func Metrics(client *awspkg.MetricsClient, service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !client.IsEnabled() {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)
		status := c.Writer.Status()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		dims := map[string]string{
			"Service": service,
			"Method":  c.Request.Method,
			"Path":    route,
			"Status":  statusRange(status),
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			_ = client.RecordCount(ctx, awspkg.MetricHTTPRequests, dims)
			_ = client.RecordLatency(ctx, awspkg.MetricHTTPLatency, duration, dims)
			switch {
			case status >= 500:
				_ = client.RecordCount(ctx, awspkg.MetricHTTPErrors, dims)
				_ = client.RecordCount(ctx, awspkg.MetricHTTP5xx, dims)
			case status >= 400:
				_ = client.RecordCount(ctx, awspkg.MetricHTTPErrors, dims)
				_ = client.RecordCount(ctx, awspkg.MetricHTTP4xx, dims)
			}
		}()
	}
}

func statusRange(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "unknown"
	}
}
