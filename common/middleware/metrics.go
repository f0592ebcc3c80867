package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	awspkg "github.com/yashrajoria/orderms/pkg/aws"
)

const metricsFlushTimeout = 5 * time.Second

// MetricsMiddleware records request count, latency and error counts per route.
// Data points are sent asynchronously so CloudWatch latency never reaches the client.
func MetricsMiddleware(metrics awspkg.MetricsRecorder, serviceName string) gin.HandlerFunc {
	if metrics == nil || !metrics.IsEnabled() {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := routeOf(c)
		if quietRoutes[route] {
			return
		}
		status := c.Writer.Status()
		class := statusClass(status)
		dims := map[string]string{
			"Service": serviceName,
			"Method":  c.Request.Method,
			"Path":    route,
			"Status":  class,
		}
		go recordRequest(metrics, dims, class, time.Since(start))
	}
}

func recordRequest(metrics awspkg.MetricsRecorder, dims map[string]string, class string, took time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), metricsFlushTimeout)
	defer cancel()

	_ = metrics.RecordCount(ctx, awspkg.MetricHTTPRequests, dims)
	_ = metrics.RecordLatency(ctx, awspkg.MetricHTTPLatency, took, dims)

	var classMetric string
	switch class {
	case "5xx":
		classMetric = awspkg.MetricHTTP5xx
	case "4xx":
		classMetric = awspkg.MetricHTTP4xx
	default:
		return
	}
	_ = metrics.RecordCount(ctx, awspkg.MetricHTTPErrors, dims)
	_ = metrics.RecordCount(ctx, classMetric, dims)
}

// statusClass buckets a status code as 2xx, 3xx, 4xx or 5xx.
func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	default:
		return "unknown"
	}
}
