package service

import (
	"context"
	"testing"

	"moonyetis/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestAdminService(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := env.register(t, "alice", "")

	require.True(t, env.admin.IsAdmin(999))
	require.False(t, env.admin.IsAdmin(a.UserID))

	balance, err := env.admin.GrantCoins(ctx, 999, a.UserID, 250, "contest prize")
	require.NoError(t, err)
	require.Equal(t, int64(250), balance)

	_, err = env.admin.GrantCoins(ctx, 999, a.UserID, 250, "  ")
	require.ErrorIs(t, err, domain.ErrValidation)
	_, err = env.admin.GrantCoins(ctx, 999, a.UserID, maxManualGrant+1, "too much")
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	logs, err := env.admin.RewardHistory(ctx, a.UserID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, domain.RewardTypeManual, logs[0].Type)
	require.Equal(t, "contest prize", logs[0].Reason)

	require.ErrorIs(t, env.admin.DeactivateUser(ctx, a.UserID, a.UserID), domain.ErrValidation)
	require.NoError(t, env.admin.DeactivateUser(ctx, 999, a.UserID))
	require.ErrorIs(t, env.admin.DeactivateUser(ctx, 999, 4242), domain.ErrUserNotFound)

	_, err = env.identity.Login(ctx, "alice", "secret123")
	require.ErrorIs(t, err, domain.ErrAccountDeactivated)
}
