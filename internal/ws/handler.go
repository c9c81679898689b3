package ws

import (
	"context"
	"errors"
	"net/http"
	"slices"

	"moonyetis/internal/domain"
	"moonyetis/internal/logger"
	"moonyetis/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// TokenVerifier is satisfied by service.IdentityService.
type TokenVerifier interface {
	Authenticate(ctx context.Context, token string) (*service.Claims, error)
}

// Handle upgrades authenticated requests. Browsers cannot set headers on a
// websocket handshake, so the session token comes in the query string.
func Handle(hub *Hub, v TokenVerifier, allowedOrigins []string) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			return slices.Contains(allowedOrigins, r.Header.Get("Origin"))
		},
	}

	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "token required"})
			return
		}
		claims, err := v.Authenticate(c.Request.Context(), token)
		switch {
		case errors.Is(err, domain.ErrAccountDeactivated):
			c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "account deactivated"})
			return
		case err != nil:
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("ws upgrade error", "user_id", claims.UserID, "error", err)
			return
		}

		go NewClient(claims.UserID, conn, hub).Run()
	}
}
