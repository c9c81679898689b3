package handlers

import (
	"net/http"

	"moonyetis/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

type ProcessReferralRequest struct {
	Note string `json:"note"`
}

type GrantCoinsRequest struct {
	Amount int64  `json:"amount" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

func (h *Handler) AdminProcessReferral(c *gin.Context) {
	referralID, found := pathID(c, "id")
	if !found {
		return
	}
	var req ProcessReferralRequest
	_ = c.ShouldBindJSON(&req)

	out, err := h.Admin.ProcessReferral(c.Request.Context(), middleware.AdminID(c), referralID, req.Note)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"referral": out})
}

func (h *Handler) AdminGrantCoins(c *gin.Context) {
	userID, found := pathID(c, "id")
	if !found {
		return
	}
	var req GrantCoinsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "amount and reason are required")
		return
	}

	balance, err := h.Admin.GrantCoins(c.Request.Context(), middleware.AdminID(c), userID, req.Amount, req.Reason)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"new_balance": balance})
}

func (h *Handler) AdminDeactivateUser(c *gin.Context) {
	userID, found := pathID(c, "id")
	if !found {
		return
	}
	if err := h.Admin.DeactivateUser(c.Request.Context(), middleware.AdminID(c), userID); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"message": "user deactivated"})
}

func (h *Handler) AdminRewardHistory(c *gin.Context) {
	userID, found := pathID(c, "id")
	if !found {
		return
	}
	logs, err := h.Admin.RewardHistory(c.Request.Context(), userID, pageLimit(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"rewards": logs})
}
