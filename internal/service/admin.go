package service

import (
	"context"
	"strings"

	"moonyetis/internal/domain"
	"moonyetis/internal/logger"
)

const maxManualGrant = 1_000_000

// AdminService groups the support-staff operations.
type AdminService struct {
	identity  *IdentityService
	referrals *ReferralService
	adminIDs  map[int64]struct{}
}

func NewAdminService(identity *IdentityService, referrals *ReferralService, adminIDs []int64) *AdminService {
	ids := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		ids[id] = struct{}{}
	}
	return &AdminService{identity: identity, referrals: referrals, adminIDs: ids}
}

func (s *AdminService) IsAdmin(userID int64) bool {
	_, ok := s.adminIDs[userID]
	return ok
}

// GrantCoins credits a manual reward, recorded in the ledger with the admin
// who granted it.
func (s *AdminService) GrantCoins(ctx context.Context, adminID, userID, amount int64, reason string) (int64, error) {
	reason = strings.TrimSpace(reason)
	if amount <= 0 || amount > maxManualGrant {
		return 0, domain.ErrInvalidAmount
	}
	if reason == "" {
		return 0, domain.NewValidationError("reason", "is required")
	}

	balance, err := s.identity.AddCoins(ctx, userID, amount, domain.RewardLog{
		Type:     domain.RewardTypeManual,
		Reason:   reason,
		Metadata: map[string]any{"admin_id": adminID},
	})
	if err != nil {
		return 0, err
	}
	logger.Warn("manual coins granted", "admin_id", adminID, "user_id", userID, "amount", amount)
	return balance, nil
}

func (s *AdminService) ProcessReferral(ctx context.Context, adminID, referralID int64, note string) (*domain.PurchaseOutcome, error) {
	return s.referrals.ManuallyProcessReferral(ctx, referralID, adminID, note)
}

func (s *AdminService) DeactivateUser(ctx context.Context, adminID, userID int64) error {
	if userID == adminID {
		return domain.NewValidationError("user_id", "admins cannot deactivate themselves")
	}
	return s.identity.Deactivate(ctx, userID)
}

// RewardHistory returns the newest ledger entries for a user.
func (s *AdminService) RewardHistory(ctx context.Context, userID int64, limit int) ([]*domain.RewardLog, error) {
	return s.identity.RewardHistory(ctx, userID, limit)
}
