package domain

import "time"

// DateLayout is the calendar-date format used for streak bookkeeping (UTC).
const DateLayout = "2006-01-02"

// MaxStreakDay is the last day of a reward cycle.
const MaxStreakDay = 7

// DailyRewards is indexed by streak day; index 0 is unused.
var DailyRewards = [MaxStreakDay + 1]int64{0, 5, 5, 8, 8, 10, 10, 4}

// RewardForDay returns the payout for a streak day, 0 when out of range.
func RewardForDay(day int) int64 {
	if day < 1 || day > MaxStreakDay {
		return 0
	}
	return DailyRewards[day]
}

type LoginStreak struct {
	UserID              int64     `db:"user_id" json:"user_id"`
	CurrentStreak       int       `db:"current_streak" json:"current_streak"`
	LongestStreak       int       `db:"longest_streak" json:"longest_streak"`
	LastLoginDate       string    `db:"last_login_date" json:"last_login_date,omitempty"` // "" when never claimed
	TotalRewardsClaimed int64     `db:"total_rewards_claimed" json:"total_rewards_claimed"`
	StreakBrokenCount   int       `db:"streak_broken_count" json:"streak_broken_count"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

// DailyReward is the outcome of a daily-login claim.
type DailyReward struct {
	AlreadyClaimed   bool  `json:"already_claimed"`
	Reward           int64 `json:"reward"`
	StreakDay        int   `json:"streak_day"`
	CurrentStreak    int   `json:"current_streak"`
	IsStreakComplete bool  `json:"is_streak_complete"`
	StreakBroken     bool  `json:"streak_broken"`
	NextReward       int64 `json:"next_reward"`
}

// StreakStatus is a read-only view for clients.
type StreakStatus struct {
	CurrentStreak       int     `json:"current_streak"`
	LongestStreak       int     `json:"longest_streak"`
	LastLoginDate       string  `json:"last_login_date,omitempty"`
	CanClaimToday       bool    `json:"can_claim_today"`
	NextReward          int64   `json:"next_reward"`
	TotalRewardsClaimed int64   `json:"total_rewards_claimed"`
	StreakBrokenCount   int     `json:"streak_broken_count"`
	RewardTable         []int64 `json:"reward_table"`
}
