package handlers

import (
	"errors"
	"net/http"

	"moonyetis/internal/domain"
	"moonyetis/internal/http/middleware"
	"moonyetis/internal/service"

	"github.com/gin-gonic/gin"
)

type LoginRequest struct {
	// Username accepts a username or an email address.
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Register(c *gin.Context) {
	var req service.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.Identity.Register(c.Request.Context(), req)
	if err != nil {
		failErr(c, err)
		return
	}

	ok(c, http.StatusCreated, gin.H{
		"message":       "user registered",
		"user_id":       res.UserID,
		"referral_code": res.ReferralCode,
		"referred_by":   res.ReferredBy,
	})
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	identifier := req.Username
	if identifier == "" {
		identifier = req.Email
	}

	res, err := h.Identity.Login(c.Request.Context(), identifier, req.Password)
	if err != nil {
		// do not reveal which accounts exist
		if errors.Is(err, domain.ErrUserNotFound) || errors.Is(err, domain.ErrInvalidPassword) {
			fail(c, http.StatusUnauthorized, "invalid credentials")
			return
		}
		failErr(c, err)
		return
	}

	ok(c, http.StatusOK, gin.H{
		"token":        res.Token,
		"expires_at":   res.ExpiresAt,
		"user":         res.User.Public(),
		"daily_reward": res.DailyReward,
	})
}

// Verify checks the bearer token and returns the claims it carries.
func (h *Handler) Verify(c *gin.Context) {
	token, found := middleware.BearerToken(c)
	if !found {
		fail(c, http.StatusUnauthorized, "authorization header is required")
		return
	}
	claims, err := h.Identity.Authenticate(c.Request.Context(), token)
	if err != nil {
		failErr(c, err)
		return
	}

	ok(c, http.StatusOK, gin.H{
		"user": gin.H{
			"id":       claims.UserID,
			"username": claims.Username,
			"email":    claims.Email,
		},
		"expires_at": claims.ExpiresAt.Time,
	})
}
