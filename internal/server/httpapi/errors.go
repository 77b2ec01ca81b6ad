package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fittrack/server/internal/common"
)

// writeError maps a service error onto an HTTP status with a uniform body.
// Token failures stay a single 401 regardless of cause.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "incorrect email or password"})
	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "invalid or expired token"})
	case errors.Is(err, common.ErrAccountDisabled):
		c.JSON(http.StatusForbidden, gin.H{"detail": "account is disabled"})
	case errors.Is(err, common.ErrAccountLocked):
		c.JSON(http.StatusForbidden, gin.H{"detail": "account is temporarily locked"})
	case errors.Is(err, common.ErrAlreadyExists):
		c.JSON(http.StatusBadRequest, gin.H{"detail": "already registered"})
	case errors.Is(err, common.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request"})
	case errors.Is(err, common.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": "not found"})
	case errors.Is(err, common.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "service temporarily unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal server error"})
	}
}
