// Package middleware provides HTTP middleware components.
package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"tombstone/internal/core/apperror"
	appctx "tombstone/internal/core/context"
	"tombstone/internal/infrastructure/http/v1/dto"
	"tombstone/pkg/logger"
)

// Recovery turns a panic into a 500. The stack is logged only.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if p := recover(); p != nil {
				logger.Error(c.Request.Context(), "panic recovered",
					"panic", p,
					"route", c.FullPath(),
					"stack", string(debug.Stack()),
				)
				_ = c.Error(fmt.Errorf("panic: %v", p))
				c.AbortWithStatusJSON(http.StatusInternalServerError, dto.ErrorResponse{
					Code:    apperror.CodeInternal,
					Message: "Internal server error",
					Details: map[string]any{"request_id": appctx.RequestID(c.Request.Context())},
				})
			}
		}()
		c.Next()
	}
}
