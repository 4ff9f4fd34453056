package middleware

import (
	"github.com/gin-gonic/gin"

	appctx "tombstone/internal/core/context"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderTraceID   = "X-Trace-ID"
	HeaderActor     = "X-Actor"
)

// Trace reuses or generates the trace and request ids and echoes them back.
func Trace() gin.HandlerFunc {
	return func(c *gin.Context) {
		req := appctx.NewRequest(c.GetHeader(HeaderTraceID), c.GetHeader(HeaderRequestID))
		c.Request = c.Request.WithContext(appctx.WithRequest(c.Request.Context(), req))

		c.Header(HeaderRequestID, req.RequestID)
		c.Header(HeaderTraceID, req.TraceID)
		c.Next()
	}
}

// Actor copies the X-Actor header into the request context so audit
// entries and outbox events record who made the change.
// Authentication happens in front of this service.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(appctx.WithActor(c.Request.Context(), c.GetHeader(HeaderActor)))
		c.Next()
	}
}
