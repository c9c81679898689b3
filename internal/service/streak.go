package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"moonyetis/internal/domain"
	"moonyetis/internal/logger"
	"moonyetis/internal/metrics"
	"moonyetis/internal/repository"
)

// CoinCrediter is the balance primitive the reward engines write through.
type CoinCrediter interface {
	AddCoinsTx(ctx context.Context, r repository.Repos, userID, amount int64, entry domain.RewardLog) (int64, error)
	Announce(userID, amount, balance int64, entry domain.RewardLog)
}

type StreakConfig struct {
	// CycleRestart starts a new 7-day cycle at day 1 after a day-7 claim.
	// When false the streak stays at day 7 until it is broken.
	CycleRestart bool
}

// StreakService applies the daily-login reward once per UTC calendar day.
type StreakService struct {
	store repository.Store
	coins CoinCrediter
	cfg   StreakConfig
	now   Clock
}

func NewStreakService(store repository.Store, coins CoinCrediter, cfg StreakConfig) *StreakService {
	return &StreakService{store: store, coins: coins, cfg: cfg, now: time.Now}
}

// SetClock replaces the time source. Tests use it to move between days.
func (s *StreakService) SetClock(now Clock) { s.now = now }

// transition is the outcome of applying a claim on today to a streak.
type transition struct {
	alreadyClaimed bool
	day            int
	broken         bool
}

func (s *StreakService) nextDay(current int) int {
	if current >= domain.MaxStreakDay {
		if s.cfg.CycleRestart {
			return 1
		}
		return domain.MaxStreakDay
	}
	return current + 1
}

// advance computes the streak day a claim on today lands on.
func (s *StreakService) advance(current int, lastDate, today string) transition {
	if lastDate == "" {
		return transition{day: 1}
	}
	last, err := time.Parse(domain.DateLayout, lastDate)
	if err != nil {
		return transition{day: 1}
	}
	now, err := time.Parse(domain.DateLayout, today)
	if err != nil {
		return transition{alreadyClaimed: true, day: current}
	}

	days := int(now.Sub(last).Hours() / 24)
	switch {
	case days <= 0:
		// same day, or a stored date ahead of the clock: never pay twice
		return transition{alreadyClaimed: true, day: current}
	case days == 1:
		return transition{day: s.nextDay(current)}
	default:
		return transition{day: 1, broken: true}
	}
}

// ProcessDailyLogin claims today's reward for userID. A second call on the
// same day returns AlreadyClaimed and changes nothing.
func (s *StreakService) ProcessDailyLogin(ctx context.Context, userID int64) (*domain.DailyReward, error) {
	today := calendarDate(s.now())

	var (
		result  *domain.DailyReward
		balance int64
		entry   domain.RewardLog
	)
	err := s.store.WithTx(ctx, func(r repository.Repos) error {
		result = nil

		streak, err := r.Streaks.GetOrCreateForUpdate(ctx, userID)
		if err != nil {
			return notFoundAs(err, domain.ErrUserNotFound)
		}

		t := s.advance(streak.CurrentStreak, streak.LastLoginDate, today)
		if t.alreadyClaimed {
			result = s.alreadyClaimed(streak)
			return nil
		}

		reward := domain.RewardForDay(t.day)
		prevDate := streak.LastLoginDate
		streak.CurrentStreak = t.day
		if t.day > streak.LongestStreak {
			streak.LongestStreak = t.day
		}
		streak.LastLoginDate = today
		streak.TotalRewardsClaimed += reward
		if t.broken {
			streak.StreakBrokenCount++
		}

		updated, err := r.Streaks.Update(ctx, streak, prevDate)
		if err != nil {
			return err
		}
		if !updated {
			current, err := r.Streaks.Get(ctx, userID)
			if err != nil {
				return err
			}
			result = s.alreadyClaimed(current)
			return nil
		}

		day := t.day
		entry = domain.RewardLog{
			Type:      domain.RewardTypeDailyLogin,
			Reason:    fmt.Sprintf("Daily login reward - day %d", day),
			StreakDay: &day,
			Metadata: map[string]any{
				"date":          today,
				"streak_broken": t.broken,
			},
		}
		balance, err = s.coins.AddCoinsTx(ctx, r, userID, reward, entry)
		if err != nil {
			return err
		}

		result = &domain.DailyReward{
			Reward:           reward,
			StreakDay:        day,
			CurrentStreak:    day,
			IsStreakComplete: day == domain.MaxStreakDay,
			StreakBroken:     t.broken,
			NextReward:       domain.RewardForDay(s.nextDay(day)),
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, storeError("process daily login", err)
	}

	if result.AlreadyClaimed {
		metrics.DailyClaims.WithLabelValues("already_claimed").Inc()
		return result, nil
	}

	outcome := "granted"
	if result.StreakBroken {
		outcome = "reset"
	}
	metrics.DailyClaims.WithLabelValues(outcome).Inc()
	s.coins.Announce(userID, result.Reward, balance, entry)
	logger.Info("daily reward granted", "user_id", userID, "day", result.StreakDay, "reward", result.Reward, "streak_broken", result.StreakBroken)
	return result, nil
}

func (s *StreakService) alreadyClaimed(streak *domain.LoginStreak) *domain.DailyReward {
	return &domain.DailyReward{
		AlreadyClaimed: true,
		CurrentStreak:  streak.CurrentStreak,
		StreakDay:      streak.CurrentStreak,
		NextReward:     domain.RewardForDay(s.nextDay(streak.CurrentStreak)),
	}
}

// GetStatus reports the streak without claiming anything.
func (s *StreakService) GetStatus(ctx context.Context, userID int64) (*domain.StreakStatus, error) {
	repos := s.store.Repos()
	if _, err := repos.Users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, storeError("get user", err)
	}

	streak, err := repos.Streaks.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, storeError("get streak", err)
		}
		streak = &domain.LoginStreak{UserID: userID}
	}

	today := calendarDate(s.now())
	t := s.advance(streak.CurrentStreak, streak.LastLoginDate, today)

	status := &domain.StreakStatus{
		CurrentStreak:       streak.CurrentStreak,
		LongestStreak:       streak.LongestStreak,
		LastLoginDate:       streak.LastLoginDate,
		CanClaimToday:       !t.alreadyClaimed,
		TotalRewardsClaimed: streak.TotalRewardsClaimed,
		StreakBrokenCount:   streak.StreakBrokenCount,
		RewardTable:         append([]int64(nil), domain.DailyRewards[1:]...),
	}
	if t.alreadyClaimed {
		status.NextReward = domain.RewardForDay(s.nextDay(streak.CurrentStreak))
	} else {
		status.NextReward = domain.RewardForDay(t.day)
	}
	return status, nil
}
