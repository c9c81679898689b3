package handlers

import (
	"moonyetis/internal/service"
)

// Handler serves the user-facing API.
type Handler struct {
	Identity  *service.IdentityService
	Streaks   *service.StreakService
	Referrals *service.ReferralService
	Purchases *service.PurchaseService
	Admin     *service.AdminService
}

func NewHandler(identity *service.IdentityService, streaks *service.StreakService, referrals *service.ReferralService, purchases *service.PurchaseService, admin *service.AdminService) *Handler {
	return &Handler{
		Identity:  identity,
		Streaks:   streaks,
		Referrals: referrals,
		Purchases: purchases,
		Admin:     admin,
	}
}

// getUserID извлекает user_id из контекста Gin
func getUserID(c interface{ Get(string) (any, bool) }) (int64, bool) {
	uidVal, ok := c.Get("user_id")
	if !ok {
		return 0, false
	}
	switch v := uidVal.(type) {
	case int64:
		return v, v > 0
	case float64:
		return int64(v), v > 0
	default:
		return 0, false
	}
}
