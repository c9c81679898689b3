package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"moonyetis/internal/domain"
	"moonyetis/internal/logger"
	"moonyetis/internal/metrics"
	"moonyetis/internal/repository"
)

const recentReferralsLimit = 5

// ReferralStatsView is a referrer's aggregate stats plus every referral,
// newest first.
type ReferralStatsView struct {
	Stats     domain.ReferralStats    `json:"stats"`
	Referrals []domain.ReferralDetail `json:"referrals"`
}

// ReferralCodeCheck is the result of validating a code without using it.
type ReferralCodeCheck struct {
	Valid    bool   `json:"valid"`
	Reason   string `json:"reason,omitempty"`
	Referrer string `json:"referrer,omitempty"`
}

// ReferralService pays the one-time referral reward.
type ReferralService struct {
	store repository.Store
	coins CoinCrediter
	now   Clock
}

func NewReferralService(store repository.Store, coins CoinCrediter) *ReferralService {
	return &ReferralService{store: store, coins: coins, now: time.Now}
}

// credit is a committed-later payout, announced once the transaction ends.
type credit struct {
	userID  int64
	amount  int64
	balance int64
	entry   domain.RewardLog
}

// ProcessReferralPurchase handles a confirmed purchase by userID. Calling it
// again for the same user is safe: the referrer is paid at most once.
func (s *ReferralService) ProcessReferralPurchase(ctx context.Context, userID int64, purchaseAmount float64) (*domain.PurchaseOutcome, error) {
	var (
		outcome *domain.PurchaseOutcome
		paid    *credit
	)
	err := s.store.WithTx(ctx, func(r repository.Repos) error {
		var err error
		outcome, paid, err = s.processPurchaseTx(ctx, r, userID, purchaseAmount)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.announce(outcome, paid)
	return outcome, nil
}

// processPurchaseTx is the transactional body shared with PurchaseService.
func (s *ReferralService) processPurchaseTx(ctx context.Context, r repository.Repos, userID int64, purchaseAmount float64) (*domain.PurchaseOutcome, *credit, error) {
	if purchaseAmount <= 0 || math.IsNaN(purchaseAmount) || math.IsInf(purchaseAmount, 0) {
		return nil, nil, domain.ErrInvalidAmount
	}

	ref, err := r.Referrals.GetByReferred(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &domain.PurchaseOutcome{HasReferral: false}, nil, nil
		}
		return nil, nil, storeError("lookup referral", err)
	}
	if ref.RewardClaimed {
		return &domain.PurchaseOutcome{HasReferral: true, AlreadyClaimed: true, ReferralID: ref.ID, ReferrerID: ref.ReferrerID}, nil, nil
	}

	// The conditional update is the latch; only the caller that flips it pays.
	latched, err := r.Referrals.MarkRewarded(ctx, ref.ID, s.now())
	if err != nil {
		return nil, nil, storeError("complete referral", err)
	}
	if !latched {
		return &domain.PurchaseOutcome{HasReferral: true, AlreadyClaimed: true, ReferralID: ref.ID, ReferrerID: ref.ReferrerID}, nil, nil
	}

	if err := r.Users.AddPurchased(ctx, userID, purchaseAmount); err != nil {
		return nil, nil, notFoundAs(err, domain.ErrUserNotFound)
	}

	refID := ref.ID
	entry := domain.RewardLog{
		Type:       domain.RewardTypeReferral,
		Reason:     fmt.Sprintf("Referral reward: user %d made a first purchase", userID),
		ReferralID: &refID,
		Metadata: map[string]any{
			"referred_id":     userID,
			"purchase_amount": purchaseAmount,
		},
	}
	balance, err := s.coins.AddCoinsTx(ctx, r, ref.ReferrerID, domain.ReferralReward, entry)
	if err != nil {
		return nil, nil, err
	}

	return &domain.PurchaseOutcome{
			HasReferral:   true,
			RewardGranted: true,
			ReferralID:    ref.ID,
			ReferrerID:    ref.ReferrerID,
			RewardAmount:  domain.ReferralReward,
		}, &credit{
			userID:  ref.ReferrerID,
			amount:  domain.ReferralReward,
			balance: balance,
			entry:   entry,
		}, nil
}

func (s *ReferralService) announce(outcome *domain.PurchaseOutcome, paid *credit) {
	switch {
	case outcome == nil:
		return
	case outcome.RewardGranted:
		metrics.ReferralEvents.WithLabelValues("granted").Inc()
	case outcome.AlreadyClaimed:
		metrics.ReferralEvents.WithLabelValues("already_claimed").Inc()
	default:
		metrics.ReferralEvents.WithLabelValues("no_referral").Inc()
	}
	if paid != nil {
		s.coins.Announce(paid.userID, paid.amount, paid.balance, paid.entry)
		logger.Info("referral reward granted", "referral_id", outcome.ReferralID, "referrer_id", paid.userID, "amount", paid.amount)
	}
}

// ManuallyProcessReferral force-completes a referral for support staff. It
// honours the same reward_claimed latch but skips purchase bookkeeping.
func (s *ReferralService) ManuallyProcessReferral(ctx context.Context, referralID int64, adminID int64, note string) (*domain.PurchaseOutcome, error) {
	var (
		outcome *domain.PurchaseOutcome
		paid    *credit
	)
	err := s.store.WithTx(ctx, func(r repository.Repos) error {
		ref, err := r.Referrals.GetByID(ctx, referralID)
		if err != nil {
			return notFoundAs(err, domain.ErrReferralNotFound)
		}
		if ref.RewardClaimed {
			return domain.ErrReferralAlreadyClaimed
		}

		latched, err := r.Referrals.MarkRewarded(ctx, ref.ID, s.now())
		if err != nil {
			return storeError("complete referral", err)
		}
		if !latched {
			return domain.ErrReferralAlreadyClaimed
		}

		refID := ref.ID
		entry := domain.RewardLog{
			Type:       domain.RewardTypeReferral,
			Reason:     "Referral reward (manually processed)",
			ReferralID: &refID,
			Metadata: map[string]any{
				"manual":      true,
				"admin_id":    adminID,
				"note":        note,
				"referred_id": ref.ReferredID,
			},
		}
		balance, err := s.coins.AddCoinsTx(ctx, r, ref.ReferrerID, domain.ReferralReward, entry)
		if err != nil {
			return err
		}

		outcome = &domain.PurchaseOutcome{
			HasReferral:   true,
			RewardGranted: true,
			ReferralID:    ref.ID,
			ReferrerID:    ref.ReferrerID,
			RewardAmount:  domain.ReferralReward,
		}
		paid = &credit{userID: ref.ReferrerID, amount: domain.ReferralReward, balance: balance, entry: entry}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Warn("referral processed manually", "referral_id", referralID, "admin_id", adminID)
	s.announce(outcome, paid)
	return outcome, nil
}

func (s *ReferralService) GetReferralStats(ctx context.Context, userID int64) (*ReferralStatsView, error) {
	repos := s.store.Repos()
	stats, err := repos.Referrals.StatsByReferrer(ctx, userID)
	if err != nil {
		return nil, storeError("referral stats", err)
	}
	referrals, err := repos.Referrals.ListByReferrer(ctx, userID, 0)
	if err != nil {
		return nil, storeError("list referrals", err)
	}
	return &ReferralStatsView{Stats: stats, Referrals: referrals}, nil
}

// ValidateReferralCode checks format and existence. It never consumes the
// code.
func (s *ReferralService) ValidateReferralCode(ctx context.Context, code string) (*ReferralCodeCheck, error) {
	code = strings.TrimSpace(code)
	if !domain.ValidReferralCodeFormat(code) {
		return &ReferralCodeCheck{Valid: false, Reason: "invalid format"}, nil
	}
	u, err := s.store.Repos().Users.GetByReferralCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &ReferralCodeCheck{Valid: false, Reason: "code not found"}, nil
		}
		return nil, storeError("lookup referral code", err)
	}
	return &ReferralCodeCheck{Valid: true, Referrer: u.Username}, nil
}

// GetUserReferralInfo bundles the user's own code, stats and the most recent
// referrals.
func (s *ReferralService) GetUserReferralInfo(ctx context.Context, userID int64) (*domain.ReferralInfo, error) {
	repos := s.store.Repos()
	u, err := repos.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, storeError("get user", err)
	}
	stats, err := repos.Referrals.StatsByReferrer(ctx, userID)
	if err != nil {
		return nil, storeError("referral stats", err)
	}
	recent, err := repos.Referrals.ListByReferrer(ctx, userID, recentReferralsLimit)
	if err != nil {
		return nil, storeError("list referrals", err)
	}
	return &domain.ReferralInfo{
		ReferralCode:    u.ReferralCode,
		Stats:           stats,
		RecentReferrals: recent,
	}, nil
}
