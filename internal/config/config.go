package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"moonyetis/internal/logger"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	minBcryptCost = 10
)

type Config struct {
	AppPort     string
	AppEnv      string
	StoreDriver string
	DatabaseURL string

	// JWTSecret is generated at startup when EphemeralJWT is set.
	JWTSecret    string
	EphemeralJWT bool

	BcryptCost      int
	HashConcurrency int

	AdminUserIDs  []int64 // ADMIN_USER_IDS, comma separated
	AdminToken    string
	WebhookSecret string

	// CycleRestart starts a fresh 7-day cycle after day 7.
	CycleRestart bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RateLimit     int
	RateWindow    int
	AuthRateLimit int

	AllowedOrigins []string
	LogLevel       string
	LogJSON        bool
}

func (c *Config) IsDevelopment() bool { return c.AppEnv == EnvDevelopment }

// Load reads .env (if present) and the environment. Invalid configuration
// stops the process.
func Load() *Config {
	_ = godotenv.Load()

	cfg, err := parse(os.Getenv)
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}
	if cfg.EphemeralJWT {
		logger.Warn("JWT_SECRET is not set, using an ephemeral secret; sessions will not survive a restart")
	}
	return cfg
}

func parse(getenv func(string) string) (*Config, error) {
	env := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		AppPort:       env("APP_PORT", "8080"),
		AppEnv:        strings.ToLower(env("APP_ENV", EnvProduction)),
		StoreDriver:   strings.ToLower(env("STORE_DRIVER", StoreDriverPostgres)),
		DatabaseURL:   env("DATABASE_URL", ""),
		JWTSecret:     getenv("JWT_SECRET"),
		AdminToken:    env("ADMIN_TOKEN", ""),
		WebhookSecret: env("WEBHOOK_SECRET", ""),
		RedisAddr:     env("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD"),
		LogLevel:      strings.ToLower(env("LOG_LEVEL", "info")),
		LogJSON:       env("LOG_FORMAT", "text") == "json",
	}

	var err error
	if cfg.BcryptCost, err = intEnv(env, "BCRYPT_COST", 12); err != nil {
		return nil, err
	}
	if cfg.BcryptCost < minBcryptCost {
		return nil, fmt.Errorf("BCRYPT_COST must be at least %d", minBcryptCost)
	}
	if cfg.HashConcurrency, err = intEnv(env, "HASH_CONCURRENCY", 4); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = intEnv(env, "REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = intEnv(env, "RATE_LIMIT", 120); err != nil {
		return nil, err
	}
	if cfg.RateWindow, err = intEnv(env, "RATE_WINDOW", 60); err != nil {
		return nil, err
	}
	if cfg.AuthRateLimit, err = intEnv(env, "AUTH_RATE_LIMIT", 10); err != nil {
		return nil, err
	}

	cfg.CycleRestart, err = strconv.ParseBool(env("STREAK_CYCLE_RESTART", "true"))
	if err != nil {
		return nil, fmt.Errorf("STREAK_CYCLE_RESTART: %w", err)
	}

	for _, s := range splitList(env("ADMIN_USER_IDS", "")) {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("ADMIN_USER_IDS: invalid id %q", s)
		}
		cfg.AdminUserIDs = append(cfg.AdminUserIDs, id)
	}
	cfg.AllowedOrigins = splitList(env("ALLOWED_ORIGINS", ""))

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is not set")
		}
	case StoreDriverMemory:
		if !cfg.IsDevelopment() {
			return nil, errors.New("STORE_DRIVER=memory is only allowed with APP_ENV=development")
		}
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	if cfg.JWTSecret == "" {
		if !cfg.IsDevelopment() {
			return nil, errors.New("JWT_SECRET is not set")
		}
		cfg.EphemeralJWT = true
	}

	return cfg, nil
}

func intEnv(env func(string, string) string, key string, def int) (int, error) {
	v := env(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
