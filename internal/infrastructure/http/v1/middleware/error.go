package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tombstone/internal/core/apperror"
	appctx "tombstone/internal/core/context"
	"tombstone/internal/infrastructure/http/v1/dto"
	"tombstone/pkg/logger"
)

// ErrorHandler renders the last handler error as dto.ErrorResponse.
// Causes of AppErrors and non-AppErrors are logged, never sent to the client.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		ctx := c.Request.Context()
		err := c.Errors.Last().Err

		appErr, ok := apperror.AsAppError(err)
		if !ok {
			logger.Error(ctx, "unhandled error", "error", err)
			appErr = apperror.NewInternal(err)
		}

		switch {
		case appErr.HTTPStatus >= http.StatusInternalServerError:
			logger.Error(ctx, "request failed", "code", appErr.Code, "cause", appErr.Err)
		case appErr.Err != nil:
			logger.Warn(ctx, "request rejected", "code", appErr.Code, "cause", appErr.Err)
		}

		details := appErr.Details
		if appErr.HTTPStatus >= http.StatusInternalServerError {
			details = map[string]any{"request_id": appctx.RequestID(ctx)}
		}
		c.JSON(appErr.HTTPStatus, dto.ErrorResponse{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: details,
		})
	}
}
