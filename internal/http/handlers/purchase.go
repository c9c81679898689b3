package handlers

import (
	"net/http"

	"moonyetis/internal/service"

	"github.com/gin-gonic/gin"
)

// ConfirmPurchase is called by the payment backend once a purchase settles.
func (h *Handler) ConfirmPurchase(c *gin.Context) {
	var req service.PurchaseInput
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ExternalRef == "" {
		fail(c, http.StatusBadRequest, "external_ref is required")
		return
	}

	res, err := h.Purchases.ConfirmPurchase(c.Request.Context(), req)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{
		"transaction": res.Transaction,
		"new_balance": res.NewBalance,
		"referral":    res.Referral,
	})
}
