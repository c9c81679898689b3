package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := parse(envMap(map[string]string{
		"DATABASE_URL": "postgres://localhost/moonyetis",
		"JWT_SECRET":   "s3cret",
	}))
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.AppPort)
	require.Equal(t, EnvProduction, cfg.AppEnv)
	require.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	require.Equal(t, 12, cfg.BcryptCost)
	require.True(t, cfg.CycleRestart)
	require.False(t, cfg.EphemeralJWT)
	require.Empty(t, cfg.AdminUserIDs)
}

func TestParse_RequiresSecretOutsideDevelopment(t *testing.T) {
	_, err := parse(envMap(map[string]string{"DATABASE_URL": "postgres://x"}))
	require.ErrorContains(t, err, "JWT_SECRET")

	cfg, err := parse(envMap(map[string]string{
		"APP_ENV":      "development",
		"STORE_DRIVER": "memory",
	}))
	require.NoError(t, err)
	require.True(t, cfg.EphemeralJWT)
	require.Empty(t, cfg.JWTSecret)
}

func TestParse_Rejections(t *testing.T) {
	base := map[string]string{"DATABASE_URL": "postgres://x", "JWT_SECRET": "s"}
	with := func(k, v string) map[string]string {
		m := map[string]string{}
		for key, val := range base {
			m[key] = val
		}
		m[k] = v
		return m
	}

	cases := map[string]map[string]string{
		"low bcrypt cost":     with("BCRYPT_COST", "4"),
		"bad bcrypt cost":     with("BCRYPT_COST", "twelve"),
		"bad admin id":        with("ADMIN_USER_IDS", "1,abc"),
		"memory in prod":      with("STORE_DRIVER", "memory"),
		"unknown driver":      with("STORE_DRIVER", "mongo"),
		"bad cycle flag":      with("STREAK_CYCLE_RESTART", "maybe"),
		"missing db url":      {"JWT_SECRET": "s"},
		"negative rate limit": with("RATE_LIMIT", "-1"),
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parse(envMap(env))
			require.Error(t, err)
		})
	}
}

func TestParse_Lists(t *testing.T) {
	cfg, err := parse(envMap(map[string]string{
		"DATABASE_URL":         "postgres://x",
		"JWT_SECRET":           "s",
		"ADMIN_USER_IDS":       " 1, 42 ,",
		"ALLOWED_ORIGINS":      "https://moonyetis.io, http://localhost:3000",
		"STREAK_CYCLE_RESTART": "false",
		"LOG_FORMAT":           "json",
	}))
	require.NoError(t, err)
	require.Equal(t, []int64{1, 42}, cfg.AdminUserIDs)
	require.Equal(t, []string{"https://moonyetis.io", "http://localhost:3000"}, cfg.AllowedOrigins)
	require.False(t, cfg.CycleRestart)
	require.True(t, cfg.LogJSON)
}
