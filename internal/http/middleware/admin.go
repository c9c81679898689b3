package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

const ctxAdminID = "admin_id"

// AdminChecker is satisfied by service.AdminService.
type AdminChecker interface {
	IsAdmin(userID int64) bool
}

// Admin lets a request through when it carries X-Admin-Token equal to
// adminToken, or a session token of a configured admin user. Token-based
// calls run with admin id 0.
func Admin(v TokenVerifier, admins AdminChecker, adminToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminToken != "" && secretEqual(c.GetHeader("X-Admin-Token"), adminToken) {
			c.Set(ctxAdminID, int64(0))
			c.Next()
			return
		}

		token, ok := BearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthorized"})
			return
		}
		claims, err := v.Authenticate(c.Request.Context(), token)
		if err != nil {
			abortAuth(c, err)
			return
		}
		if !admins.IsAdmin(claims.UserID) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "admin access required"})
			return
		}
		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxAdminID, claims.UserID)
		c.Next()
	}
}

// AdminID returns the acting admin set by Admin.
func AdminID(c *gin.Context) int64 {
	id, _ := c.Get(ctxAdminID)
	v, _ := id.(int64)
	return v
}

// WebhookSecret guards machine-to-machine endpoints. An empty secret
// disables the endpoint.
func WebhookSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "webhook is not configured"})
			return
		}
		if !secretEqual(c.GetHeader("X-Webhook-Secret"), secret) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid webhook secret"})
			return
		}
		c.Next()
	}
}

func secretEqual(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
