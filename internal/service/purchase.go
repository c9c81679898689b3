package service

import (
	"context"
	"errors"
	"math"
	"strings"

	"moonyetis/internal/domain"
	"moonyetis/internal/logger"
	"moonyetis/internal/repository"
)

type PurchaseInput struct {
	UserID      int64   `json:"user_id"`
	Mooncoins   int64   `json:"mooncoins"`
	USDAmount   float64 `json:"usd_amount"`
	ExternalRef string  `json:"external_ref"`
}

type PurchaseResult struct {
	Transaction *domain.Transaction     `json:"transaction"`
	NewBalance  int64                   `json:"new_balance"`
	Referral    *domain.PurchaseOutcome `json:"referral"`
}

// PurchaseService books settled MoonCoin purchases. It is the event source
// that drives the referral reward.
type PurchaseService struct {
	store     repository.Store
	referrals *ReferralService
	notifier  Notifier
}

func NewPurchaseService(store repository.Store, referrals *ReferralService) *PurchaseService {
	return &PurchaseService{store: store, referrals: referrals, notifier: nopNotifier{}}
}

func (s *PurchaseService) UseNotifier(n Notifier) {
	if n != nil {
		s.notifier = n
	}
}

// ConfirmPurchase credits the bought coins, records the transaction and
// processes the referral in a single transaction. A repeated ExternalRef for
// the same user returns domain.ErrDuplicatePurchase.
func (s *PurchaseService) ConfirmPurchase(ctx context.Context, in PurchaseInput) (*PurchaseResult, error) {
	in.ExternalRef = strings.TrimSpace(in.ExternalRef)
	if in.Mooncoins <= 0 {
		return nil, domain.NewValidationError("mooncoins", "must be positive")
	}
	if in.USDAmount <= 0 || math.IsNaN(in.USDAmount) || math.IsInf(in.USDAmount, 0) {
		return nil, domain.NewValidationError("usd_amount", "must be positive")
	}

	var (
		result PurchaseResult
		paid   *credit
	)
	err := s.store.WithTx(ctx, func(r repository.Repos) error {
		user, err := r.Users.GetByID(ctx, in.UserID)
		if err != nil {
			return notFoundAs(err, domain.ErrUserNotFound)
		}
		if !user.IsActive {
			return domain.ErrAccountDeactivated
		}

		txn := &domain.Transaction{
			UserID:      in.UserID,
			Type:        domain.TransactionTypePurchase,
			Amount:      in.Mooncoins,
			USDAmount:   in.USDAmount,
			ExternalRef: in.ExternalRef,
			Meta:        map[string]any{"source": "purchase_confirmation"},
		}
		if err := r.Transactions.Create(ctx, txn); err != nil {
			if repository.IsDuplicate(err, "external_ref") {
				return domain.ErrDuplicatePurchase
			}
			return storeError("record purchase", err)
		}

		result.NewBalance, err = r.Users.AddBalance(ctx, in.UserID, in.Mooncoins)
		if err != nil {
			return storeError("credit purchase", err)
		}
		result.Transaction = txn

		outcome, c, err := s.referrals.processPurchaseTx(ctx, r, in.UserID, in.USDAmount)
		if err != nil {
			return err
		}
		// the referral path books total_purchased itself when it pays out
		if !outcome.RewardGranted {
			if err := r.Users.AddPurchased(ctx, in.UserID, in.USDAmount); err != nil {
				return storeError("update purchase total", err)
			}
		}
		result.Referral = outcome
		paid = c
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicatePurchase) {
			logger.Warn("duplicate purchase confirmation", "user_id", in.UserID, "external_ref", in.ExternalRef)
		}
		return nil, err
	}

	s.referrals.announce(result.Referral, paid)
	s.notifier.NotifyReward(in.UserID, domain.RewardEvent{
		Type:       domain.TransactionTypePurchase,
		Amount:     in.Mooncoins,
		NewBalance: result.NewBalance,
		Reason:     "MoonCoins purchase",
	})
	logger.Info("purchase confirmed", "user_id", in.UserID, "mooncoins", in.Mooncoins, "usd", in.USDAmount)
	return &result, nil
}

func (s *PurchaseService) History(ctx context.Context, userID int64, limit int) ([]*domain.Transaction, error) {
	txs, err := s.store.Repos().Transactions.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, storeError("list transactions", err)
	}
	return txs, nil
}
