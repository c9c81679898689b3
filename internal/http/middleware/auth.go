package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"moonyetis/internal/domain"
	"moonyetis/internal/logger"
	"moonyetis/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	ctxUserID   = "user_id"
	ctxUsername = "username"
)

// TokenVerifier is satisfied by service.IdentityService.
type TokenVerifier interface {
	Authenticate(ctx context.Context, token string) (*service.Claims, error)
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// JWT rejects requests without a valid session token and stores the user id
// in the context.
func JWT(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "authorization header is required"})
			return
		}
		claims, err := v.Authenticate(c.Request.Context(), token)
		if err != nil {
			abortAuth(c, err)
			return
		}
		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxUsername, claims.Username)
		c.Next()
	}
}

// UserID returns the id set by JWT.
func UserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ctxUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok && id > 0
}

func abortAuth(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrAccountDeactivated):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "account deactivated"})
	case errors.Is(err, domain.ErrUnauthorized):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid or expired token"})
	default:
		logger.WithContext(c.Request.Context()).Error("authenticate request", "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal error"})
	}
}
