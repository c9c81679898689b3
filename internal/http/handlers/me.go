package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type LinkWalletRequest struct {
	Address    string `json:"address" binding:"required"`
	WalletType string `json:"wallet_type" binding:"required"`
}

func (h *Handler) Me(c *gin.Context) {
	userID, found := requireUser(c)
	if !found {
		return
	}

	user, err := h.Identity.GetUser(c.Request.Context(), userID)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"user": user.Public()})
}

func (h *Handler) LinkWallet(c *gin.Context) {
	userID, found := requireUser(c)
	if !found {
		return
	}

	var req LinkWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "address and wallet_type are required")
		return
	}
	if err := h.Identity.LinkWallet(c.Request.Context(), userID, req.Address, req.WalletType); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"message": "wallet linked"})
}

func (h *Handler) Streak(c *gin.Context) {
	userID, found := requireUser(c)
	if !found {
		return
	}

	status, err := h.Streaks.GetStatus(c.Request.Context(), userID)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"streak": status})
}

// Rewards lists the caller's reward ledger, newest first.
func (h *Handler) Rewards(c *gin.Context) {
	userID, found := requireUser(c)
	if !found {
		return
	}

	logs, err := h.Identity.RewardHistory(c.Request.Context(), userID, pageLimit(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"rewards": logs})
}
