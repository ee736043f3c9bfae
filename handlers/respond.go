package handlers

import (
	"net/http"

	"github.com/Noel-Mtf/yesshare/internal/failure"
	"github.com/Noel-Mtf/yesshare/pkg/logger"
	"github.com/gin-gonic/gin"
)

// statusOf maps a failure kind to its HTTP status.
func statusOf(k failure.Kind) int {
	switch k {
	case failure.KindValidation:
		return http.StatusBadRequest
	case failure.KindUnauthenticated, failure.KindIdentity:
		return http.StatusUnauthorized
	case failure.KindForbidden:
		return http.StatusForbidden
	case failure.KindNotFound:
		return http.StatusNotFound
	case failure.KindTaken, failure.KindNeedsConfirmation:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {"error", "kind"}. Internal failures are logged
// and reported with a generic message.
func respondError(c *gin.Context, err error) {
	k := failure.KindOf(err)
	status := statusOf(k)
	msg := failure.Message(err)
	if status == http.StatusInternalServerError {
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "kind": k.String()})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": failure.KindValidation.String()})
}
