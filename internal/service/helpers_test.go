package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"moonyetis/internal/domain"
	"moonyetis/internal/repository/memory"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) AddDays(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.AddDate(0, 0, n)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events map[int64][]domain.RewardEvent
}

func (n *recordingNotifier) NotifyReward(userID int64, ev domain.RewardEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.events == nil {
		n.events = make(map[int64][]domain.RewardEvent)
	}
	n.events[userID] = append(n.events[userID], ev)
}

func (n *recordingNotifier) count(userID int64) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events[userID])
}

type testEnv struct {
	store     *memory.Store
	clock     *testClock
	notifier  *recordingNotifier
	identity  *IdentityService
	streaks   *StreakService
	referrals *ReferralService
	purchases *PurchaseService
	admin     *AdminService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := &testClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	store := memory.New()
	store.SetClock(clock.Now)

	tokens, err := NewTokenIssuer("test-secret", TokenTTL)
	require.NoError(t, err)
	tokens.now = clock.Now

	notifier := &recordingNotifier{}
	identity := NewIdentityService(store, NewPasswordHasher(bcrypt.MinCost, 4), tokens)
	identity.now = clock.Now
	identity.UseNotifier(notifier)

	streaks := NewStreakService(store, identity, StreakConfig{CycleRestart: true})
	streaks.SetClock(clock.Now)
	identity.UseDailyLogin(streaks)

	referrals := NewReferralService(store, identity)
	referrals.now = clock.Now

	purchases := NewPurchaseService(store, referrals)
	purchases.UseNotifier(notifier)

	return &testEnv{
		store:     store,
		clock:     clock,
		notifier:  notifier,
		identity:  identity,
		streaks:   streaks,
		referrals: referrals,
		purchases: purchases,
		admin:     NewAdminService(identity, referrals, []int64{999}),
	}
}

func (e *testEnv) register(t *testing.T, username, referralCode string) *RegisterResult {
	t.Helper()
	res, err := e.identity.Register(context.Background(), RegisterInput{
		Username:     username,
		Email:        username + "@moonyetis.test",
		Password:     "secret123",
		ReferralCode: referralCode,
	})
	require.NoError(t, err)
	return res
}

func (e *testEnv) balance(t *testing.T, userID int64) int64 {
	t.Helper()
	u, err := e.identity.GetUser(context.Background(), userID)
	require.NoError(t, err)
	return u.MooncoinsBalance
}

func (e *testEnv) streak(t *testing.T, userID int64) *domain.LoginStreak {
	t.Helper()
	s, err := e.store.Repos().Streaks.Get(context.Background(), userID)
	require.NoError(t, err)
	return s
}
