package service

import (
	"context"
	"sync"
	"testing"

	"moonyetis/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestProcessDailyLogin_FirstClaimThenSameDay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.register(t, "alice", "")

	r1, err := env.streaks.ProcessDailyLogin(ctx, a.UserID)
	require.NoError(t, err)
	require.False(t, r1.AlreadyClaimed)
	require.Equal(t, int64(5), r1.Reward)
	require.Equal(t, 1, r1.StreakDay)
	require.Equal(t, int64(5), r1.NextReward)
	require.False(t, r1.StreakBroken)

	r2, err := env.streaks.ProcessDailyLogin(ctx, a.UserID)
	require.NoError(t, err)
	require.True(t, r2.AlreadyClaimed)
	require.Equal(t, 1, r2.CurrentStreak)

	require.Equal(t, int64(5), env.balance(t, a.UserID))
	logs, err := env.identity.RewardHistory(ctx, a.UserID, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, domain.RewardTypeDailyLogin, logs[0].Type)
	require.NotNil(t, logs[0].StreakDay)
	require.Equal(t, 1, *logs[0].StreakDay)
}

func TestProcessDailyLogin_FullWeekThenCycleRestart(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.register(t, "alice", "")

	var total int64
	for day := 1; day <= domain.MaxStreakDay; day++ {
		r, err := env.streaks.ProcessDailyLogin(ctx, a.UserID)
		require.NoError(t, err)
		require.Equal(t, day, r.StreakDay)
		require.Equal(t, domain.DailyRewards[day], r.Reward)
		require.Equal(t, day == domain.MaxStreakDay, r.IsStreakComplete)
		total += r.Reward
		env.clock.AddDays(1)
	}
	require.Equal(t, int64(50), total)
	require.Equal(t, total, env.balance(t, a.UserID))

	r, err := env.streaks.ProcessDailyLogin(ctx, a.UserID)
	require.NoError(t, err)
	require.Equal(t, 1, r.StreakDay)
	require.False(t, r.StreakBroken)

	s := env.streak(t, a.UserID)
	require.Equal(t, 7, s.LongestStreak)
	require.Equal(t, 0, s.StreakBrokenCount)
	require.Equal(t, total+5, s.TotalRewardsClaimed)
}

func TestProcessDailyLogin_CapsAtDaySevenWithoutCycleRestart(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.streaks.cfg.CycleRestart = false
	a := env.register(t, "alice", "")

	for i := 0; i < domain.MaxStreakDay+2; i++ {
		_, err := env.streaks.ProcessDailyLogin(ctx, a.UserID)
		require.NoError(t, err)
		env.clock.AddDays(1)
	}
	s := env.streak(t, a.UserID)
	require.Equal(t, domain.MaxStreakDay, s.CurrentStreak)
	require.Equal(t, int64(50+4+4), env.balance(t, a.UserID))
}

func TestProcessDailyLogin_GapResetsAndCountsBreak(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.register(t, "alice", "")

	for i := 0; i < 3; i++ {
		_, err := env.streaks.ProcessDailyLogin(ctx, a.UserID)
		require.NoError(t, err)
		env.clock.AddDays(1)
	}
	env.clock.AddDays(2)

	r, err := env.streaks.ProcessDailyLogin(ctx, a.UserID)
	require.NoError(t, err)
	require.True(t, r.StreakBroken)
	require.Equal(t, 1, r.StreakDay)
	require.Equal(t, int64(5), r.Reward)

	s := env.streak(t, a.UserID)
	require.Equal(t, 1, s.CurrentStreak)
	require.Equal(t, 3, s.LongestStreak)
	require.Equal(t, 1, s.StreakBrokenCount)
}

func TestProcessDailyLogin_MissingStreakRowIsCreated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := &domain.User{Username: "legacy", Email: "legacy@moonyetis.test", PasswordHash: "x", ReferralCode: "MOONLGCY"}
	require.NoError(t, env.store.Repos().Users.Create(ctx, u))

	r, err := env.streaks.ProcessDailyLogin(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, 1, r.StreakDay)
	require.Equal(t, int64(5), env.balance(t, u.ID))
	require.Equal(t, 1, env.streak(t, u.ID).CurrentStreak)
}

func TestProcessDailyLogin_UnknownUser(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.streaks.ProcessDailyLogin(context.Background(), 4242)
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestProcessDailyLogin_ConcurrentClaimsPayOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.register(t, "alice", "")

	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := env.streaks.ProcessDailyLogin(ctx, a.UserID)
			if err != nil || r.AlreadyClaimed {
				return
			}
			mu.Lock()
			granted++
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Equal(t, 1, granted)
	require.Equal(t, int64(5), env.balance(t, a.UserID))
}

func TestGetStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.register(t, "alice", "")

	st, err := env.streaks.GetStatus(ctx, a.UserID)
	require.NoError(t, err)
	require.True(t, st.CanClaimToday)
	require.Equal(t, int64(5), st.NextReward)
	require.Equal(t, []int64{5, 5, 8, 8, 10, 10, 4}, st.RewardTable)

	_, err = env.streaks.ProcessDailyLogin(ctx, a.UserID)
	require.NoError(t, err)
	env.clock.AddDays(1)
	_, err = env.streaks.ProcessDailyLogin(ctx, a.UserID)
	require.NoError(t, err)

	st, err = env.streaks.GetStatus(ctx, a.UserID)
	require.NoError(t, err)
	require.False(t, st.CanClaimToday)
	require.Equal(t, 2, st.CurrentStreak)
	require.Equal(t, int64(8), st.NextReward)
	require.Equal(t, int64(10), st.TotalRewardsClaimed)

	env.clock.AddDays(3)
	st, err = env.streaks.GetStatus(ctx, a.UserID)
	require.NoError(t, err)
	require.True(t, st.CanClaimToday)
	require.Equal(t, int64(5), st.NextReward)

	_, err = env.streaks.GetStatus(ctx, 999)
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestAdvance(t *testing.T) {
	s := &StreakService{cfg: StreakConfig{CycleRestart: true}}

	cases := []struct {
		name    string
		current int
		last    string
		today   string
		want    transition
	}{
		{"never claimed", 0, "", "2026-03-10", transition{day: 1}},
		{"same day", 3, "2026-03-10", "2026-03-10", transition{alreadyClaimed: true, day: 3}},
		{"future date", 3, "2026-03-12", "2026-03-10", transition{alreadyClaimed: true, day: 3}},
		{"consecutive", 3, "2026-03-09", "2026-03-10", transition{day: 4}},
		{"across month", 2, "2026-02-28", "2026-03-01", transition{day: 3}},
		{"after day seven", 7, "2026-03-09", "2026-03-10", transition{day: 1}},
		{"gap", 5, "2026-03-07", "2026-03-10", transition{day: 1, broken: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, s.advance(tc.current, tc.last, tc.today))
		})
	}
}
