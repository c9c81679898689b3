package integration

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"moonyetis/internal/db"
	"moonyetis/internal/domain"
	"moonyetis/internal/migrations"
	"moonyetis/internal/repository"
	"moonyetis/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// Integration-style tests: run only if DATABASE_URL is set. Every test uses
// fresh usernames so the database does not need to be empty.
func setupPostgres(t *testing.T) *repository.PostgresStore {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, migrations.Apply(ctx, pool))
	return repository.NewPostgresStore(pool)
}

func uniqueName(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}

type pgServices struct {
	identity  *service.IdentityService
	streaks   *service.StreakService
	referrals *service.ReferralService
	purchases *service.PurchaseService
}

func newServices(t *testing.T, store repository.Store) pgServices {
	t.Helper()
	tokens, err := service.NewTokenIssuer("integration-secret", service.TokenTTL)
	require.NoError(t, err)
	identity := service.NewIdentityService(store, service.NewPasswordHasher(bcrypt.MinCost, 4), tokens)
	streaks := service.NewStreakService(store, identity, service.StreakConfig{CycleRestart: true})
	identity.UseDailyLogin(streaks)
	referrals := service.NewReferralService(store, identity)
	return pgServices{
		identity:  identity,
		streaks:   streaks,
		referrals: referrals,
		purchases: service.NewPurchaseService(store, referrals),
	}
}

func registerPG(t *testing.T, s pgServices, code string) *service.RegisterResult {
	t.Helper()
	name := uniqueName("u")
	res, err := s.identity.Register(context.Background(), service.RegisterInput{
		Username:     name,
		Email:        name + "@moonyetis.test",
		Password:     "secret123",
		ReferralCode: code,
	})
	require.NoError(t, err)
	return res
}

func TestPostgres_UserConstraints(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()
	users := store.Repos().Users

	name := uniqueName("c")
	u := &domain.User{Username: name, Email: name + "@x.io", PasswordHash: "h", ReferralCode: "MOON" + strings.ToUpper(name[1:5])}
	require.NoError(t, users.Create(ctx, u))
	require.NotZero(t, u.ID)
	require.True(t, u.IsActive)

	dup := &domain.User{Username: name, Email: "other-" + name + "@x.io", PasswordHash: "h", ReferralCode: "MOONZZZ9"}
	err := users.Create(ctx, dup)
	require.True(t, repository.IsDuplicate(err, "username"), "got %v", err)

	bal, err := users.AddBalance(ctx, u.ID, 10)
	require.NoError(t, err)
	require.Equal(t, int64(10), bal)

	_, err = users.AddBalance(ctx, u.ID, -11)
	require.ErrorIs(t, err, repository.ErrInsufficientFunds)

	_, err = users.AddBalance(ctx, -1, 5)
	require.ErrorIs(t, err, repository.ErrNotFound)

	byEmail, err := users.GetByUsernameOrEmail(ctx, u.Email)
	require.NoError(t, err)
	require.Equal(t, u.ID, byEmail.ID)
}

func TestPostgres_WithTxRollsBack(t *testing.T) {
	store := setupPostgres(t)
	s := newServices(t, store)
	ctx := context.Background()
	a := registerPG(t, s, "")

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(r repository.Repos) error {
		if _, err := r.Users.AddBalance(ctx, a.UserID, 500); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	u, err := s.identity.GetUser(ctx, a.UserID)
	require.NoError(t, err)
	require.Zero(t, u.MooncoinsBalance)
}

func TestPostgres_StreakDatesRoundTrip(t *testing.T) {
	store := setupPostgres(t)
	s := newServices(t, store)
	ctx := context.Background()
	a := registerPG(t, s, "")

	day := time.Date(2026, 3, 10, 23, 30, 0, 0, time.UTC)
	s.streaks.SetClock(func() time.Time { return day })

	r, err := s.streaks.ProcessDailyLogin(ctx, a.UserID)
	require.NoError(t, err)
	require.Equal(t, 1, r.StreakDay)

	st, err := store.Repos().Streaks.Get(ctx, a.UserID)
	require.NoError(t, err)
	require.Equal(t, "2026-03-10", st.LastLoginDate)

	s.streaks.SetClock(func() time.Time { return day.Add(time.Hour) })
	r, err = s.streaks.ProcessDailyLogin(ctx, a.UserID)
	require.NoError(t, err)
	require.Equal(t, 2, r.StreakDay)

	updated, err := store.Repos().Streaks.Update(ctx, &domain.LoginStreak{UserID: a.UserID, CurrentStreak: 9, LastLoginDate: "2026-03-12"}, "2026-03-10")
	require.NoError(t, err)
	require.False(t, updated)

	_, err = s.streaks.ProcessDailyLogin(ctx, -42)
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestPostgres_ConcurrentDailyClaimsPayOnce(t *testing.T) {
	store := setupPostgres(t)
	s := newServices(t, store)
	ctx := context.Background()
	a := registerPG(t, s, "")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := s.streaks.ProcessDailyLogin(ctx, a.UserID)
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
	u, err := s.identity.GetUser(ctx, a.UserID)
	require.NoError(t, err)
	require.Equal(t, int64(5), u.MooncoinsBalance)
}

func TestPostgres_ReferralPaidOnceUnderConcurrency(t *testing.T) {
	store := setupPostgres(t)
	s := newServices(t, store)
	ctx := context.Background()
	a := registerPG(t, s, "")
	referrer, err := s.identity.GetUser(ctx, a.UserID)
	require.NoError(t, err)
	b := registerPG(t, s, referrer.ReferralCode)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.referrals.ProcessReferralPurchase(ctx, b.UserID, 10)
		}()
	}
	wg.Wait()

	referrer, err = s.identity.GetUser(ctx, a.UserID)
	require.NoError(t, err)
	require.Equal(t, domain.ReferralReward, referrer.MooncoinsBalance)

	view, err := s.referrals.GetReferralStats(ctx, a.UserID)
	require.NoError(t, err)
	require.Equal(t, 1, view.Stats.SuccessfulReferrals)
	require.Equal(t, domain.ReferralReward, view.Stats.TotalEarned)
	require.Len(t, view.Referrals, 1)
	require.Equal(t, b.UserID, view.Referrals[0].ReferredID)
}

func TestPostgres_PurchaseDeduplicatedByExternalRef(t *testing.T) {
	store := setupPostgres(t)
	s := newServices(t, store)
	ctx := context.Background()
	a := registerPG(t, s, "")

	in := service.PurchaseInput{UserID: a.UserID, Mooncoins: 100, USDAmount: 1.5, ExternalRef: uniqueName("pay_")}
	_, err := s.purchases.ConfirmPurchase(ctx, in)
	require.NoError(t, err)

	_, err = s.purchases.ConfirmPurchase(ctx, in)
	require.ErrorIs(t, err, domain.ErrDuplicatePurchase)

	u, err := s.identity.GetUser(ctx, a.UserID)
	require.NoError(t, err)
	require.Equal(t, int64(100), u.MooncoinsBalance)
	require.Equal(t, 1.5, u.TotalPurchased)

	txs, err := s.purchases.History(ctx, a.UserID, 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, in.ExternalRef, txs[0].ExternalRef)
}
