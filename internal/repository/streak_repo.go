package repository

import (
	"context"

	"moonyetis/internal/domain"
)

const streakColumns = `user_id, current_streak, longest_streak,
	COALESCE(to_char(last_login_date, 'YYYY-MM-DD'), ''),
	total_rewards_claimed, streak_broken_count, updated_at`

type StreakRepo struct {
	db querier
}

func NewStreakRepository(db querier) *StreakRepo {
	return &StreakRepo{db: db}
}

func scanStreak(row interface{ Scan(dest ...any) error }) (*domain.LoginStreak, error) {
	var s domain.LoginStreak
	if err := row.Scan(
		&s.UserID,
		&s.CurrentStreak,
		&s.LongestStreak,
		&s.LastLoginDate,
		&s.TotalRewardsClaimed,
		&s.StreakBrokenCount,
		&s.UpdatedAt,
	); err != nil {
		return nil, mapError(err)
	}
	return &s, nil
}

func (r *StreakRepo) Create(ctx context.Context, userID int64) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO login_streaks (user_id) VALUES ($1)`, userID)
	return mapError(err)
}

func (r *StreakRepo) Get(ctx context.Context, userID int64) (*domain.LoginStreak, error) {
	return scanStreak(r.db.QueryRow(ctx,
		`SELECT `+streakColumns+` FROM login_streaks WHERE user_id = $1`, userID))
}

func (r *StreakRepo) GetOrCreateForUpdate(ctx context.Context, userID int64) (*domain.LoginStreak, error) {
	if _, err := r.db.Exec(ctx,
		`INSERT INTO login_streaks (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`,
		userID,
	); err != nil {
		return nil, mapError(err)
	}
	return scanStreak(r.db.QueryRow(ctx,
		`SELECT `+streakColumns+` FROM login_streaks WHERE user_id = $1 FOR UPDATE`, userID))
}

func (r *StreakRepo) Update(ctx context.Context, s *domain.LoginStreak, prevDate string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE login_streaks
		 SET current_streak = $2, longest_streak = $3, last_login_date = NULLIF($4, '')::date,
		     total_rewards_claimed = $5, streak_broken_count = $6, updated_at = NOW()
		 WHERE user_id = $1
		   AND COALESCE(to_char(last_login_date, 'YYYY-MM-DD'), '') = $7`,
		s.UserID,
		s.CurrentStreak,
		s.LongestStreak,
		s.LastLoginDate,
		s.TotalRewardsClaimed,
		s.StreakBrokenCount,
		prevDate,
	)
	if err != nil {
		return false, mapError(err)
	}
	return tag.RowsAffected() == 1, nil
}
