package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tombstone/pkg/logger"
)

// Logger logs one line per request. Server errors log at error level, the rest at info.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		kv := []any{
			"method", c.Request.Method,
			"route", c.FullPath(),
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			kv = append(kv, "error", c.Errors.Last().Error())
		}

		l := log.WithContext(c.Request.Context())
		if c.Writer.Status() >= http.StatusInternalServerError {
			l.Errorw("http request", kv...)
			return
		}
		l.Infow("http request", kv...)
	}
}
