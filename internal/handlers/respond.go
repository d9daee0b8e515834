package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hisui-backend/internal/apperr"
)

// respondError maps a service error onto an HTTP status by its kind.
// Anything without a kind is an unanticipated failure and becomes a 500.
func respondError(c *gin.Context, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case apperr.KindForbidden:
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case apperr.KindInvalidState, apperr.KindInvalidArgument:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error: " + err.Error()})
	}
}

// currentUserID returns the authenticated user id set by the auth middleware.
func currentUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "The user id is missing"})
		return "", false
	}
	return userID.(string), true
}
