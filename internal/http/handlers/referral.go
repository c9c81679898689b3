package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ReferralInfo returns the caller's code, stats and latest referrals.
func (h *Handler) ReferralInfo(c *gin.Context) {
	userID, found := requireUser(c)
	if !found {
		return
	}

	info, err := h.Referrals.GetUserReferralInfo(c.Request.Context(), userID)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"referral": info})
}

func (h *Handler) ReferralStats(c *gin.Context) {
	userID, found := requireUser(c)
	if !found {
		return
	}

	view, err := h.Referrals.GetReferralStats(c.Request.Context(), userID)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"stats": view.Stats, "referrals": view.Referrals})
}

// ValidateReferralCode is public so the sign-up form can check a code.
func (h *Handler) ValidateReferralCode(c *gin.Context) {
	check, err := h.Referrals.ValidateReferralCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"valid": check.Valid, "reason": check.Reason, "referrer": check.Referrer})
}
