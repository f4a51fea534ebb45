package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/draftpay/internal/metrics"
)

// Metrics records request counts and latency per matched route.
func Metrics(recorder *metrics.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		recorder.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
