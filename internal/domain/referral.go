package domain

import (
	"strings"
	"time"
)

const (
	ReferralStatusPending   = "pending"
	ReferralStatusCompleted = "completed"
)

// ReferralReward is paid to the referrer once per referred user.
const ReferralReward int64 = 30

const (
	ReferralCodePrefix   = "MOON"
	ReferralCodeLength   = 8
	ReferralCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// ValidReferralCodeFormat checks shape only, not existence.
func ValidReferralCodeFormat(code string) bool {
	if len(code) != ReferralCodeLength || !strings.HasPrefix(code, ReferralCodePrefix) {
		return false
	}
	for _, r := range code[len(ReferralCodePrefix):] {
		if !strings.ContainsRune(ReferralCodeAlphabet, r) {
			return false
		}
	}
	return true
}

type Referral struct {
	ID            int64      `db:"id" json:"id"`
	ReferrerID    int64      `db:"referrer_id" json:"referrer_id"`
	ReferredID    int64      `db:"referred_id" json:"referred_id"`
	Status        string     `db:"status" json:"status"`
	RewardClaimed bool       `db:"reward_claimed" json:"reward_claimed"`
	PurchaseDate  *time.Time `db:"purchase_date" json:"purchase_date,omitempty"`
	RewardAmount  int64      `db:"reward_amount" json:"reward_amount"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// ReferralDetail is a referral joined with the referred user's name.
type ReferralDetail struct {
	Referral
	ReferredUsername string `json:"referred_username"`
}

type ReferralStats struct {
	TotalReferrals      int   `json:"total_referrals"`
	SuccessfulReferrals int   `json:"successful_referrals"`
	PendingReferrals    int   `json:"pending_referrals"`
	TotalEarned         int64 `json:"total_earned"`
}

// PurchaseOutcome is the result of a referral purchase event. HasReferral is
// false when the buyer was not referred; otherwise exactly one of
// AlreadyClaimed and RewardGranted is set.
type PurchaseOutcome struct {
	HasReferral    bool  `json:"has_referral"`
	AlreadyClaimed bool  `json:"already_claimed"`
	RewardGranted  bool  `json:"reward_granted"`
	ReferralID     int64 `json:"referral_id,omitempty"`
	ReferrerID     int64 `json:"referrer_id,omitempty"`
	RewardAmount   int64 `json:"reward_amount,omitempty"`
}

type ReferralInfo struct {
	ReferralCode    string           `json:"referral_code"`
	Stats           ReferralStats    `json:"stats"`
	RecentReferrals []ReferralDetail `json:"recent_referrals"`
}
