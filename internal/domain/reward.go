package domain

import "time"

const (
	RewardTypeDailyLogin = "daily_login"
	RewardTypeReferral   = "referral"
	RewardTypeManual     = "manual"
)

// RewardLog is an append-only ledger row. Rows are never updated or deleted.
type RewardLog struct {
	ID         int64          `db:"id" json:"id"`
	UserID     int64          `db:"user_id" json:"user_id"`
	Type       string         `db:"type" json:"type"`
	Amount     int64          `db:"amount" json:"amount"`
	Reason     string         `db:"reason" json:"reason"`
	StreakDay  *int           `db:"streak_day" json:"streak_day,omitempty"`
	ReferralID *int64         `db:"referral_id" json:"referral_id,omitempty"`
	Metadata   map[string]any `db:"metadata" json:"metadata,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}

// RewardEvent is pushed to connected clients after a reward commits.
type RewardEvent struct {
	Type       string `json:"type"`
	Amount     int64  `json:"amount"`
	NewBalance int64  `json:"new_balance"`
	Reason     string `json:"reason"`
}
