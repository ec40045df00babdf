package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/RugileVa/TiGets/internal/domain"
	"github.com/RugileVa/TiGets/pkg/logger"
	"github.com/RugileVa/TiGets/pkg/middleware"
	"github.com/RugileVa/TiGets/pkg/response"
)

// handleError maps domain error kinds to HTTP responses
func handleError(c *gin.Context, err error) {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		response.BadRequest(c, err.Error())
	case domain.KindNotFound:
		response.NotFound(c, err.Error())
	case domain.KindAuthorization:
		response.Forbidden(c, err.Error())
	case domain.KindUnauthenticated:
		response.Unauthorized(c, err.Error())
	case domain.KindInvariantViolation:
		response.Unprocessable(c, err.Error())
	case domain.KindConflict:
		response.Conflict(c, err.Error())
	default:
		logger.Get().Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.Error(err),
		)
		response.InternalError(c)
	}
}

// requireUsername reads the authenticated caller or writes a 401
func requireUsername(c *gin.Context) (string, bool) {
	username, ok := middleware.GetUsername(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
	}
	return username, ok
}
