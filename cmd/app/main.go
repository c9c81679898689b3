package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"moonyetis/internal/config"
	"moonyetis/internal/db"
	httpServer "moonyetis/internal/http"
	"moonyetis/internal/http/handlers"
	"moonyetis/internal/http/middleware"
	"moonyetis/internal/logger"
	"moonyetis/internal/repository"
	"moonyetis/internal/repository/memory"
	"moonyetis/internal/service"
	"moonyetis/internal/ws"

	"github.com/gin-gonic/gin"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	var store repository.Store
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		logger.Warn("using the in-memory store; data is lost on restart")
		store = memory.New()
	default:
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("database connection failed", "error", err)
		}
		defer pool.Close()
		store = repository.NewPostgresStore(pool)
	}

	jwtSecret := cfg.JWTSecret
	if cfg.EphemeralJWT {
		jwtSecret = service.EphemeralSecret()
	}
	tokens, err := service.NewTokenIssuer(jwtSecret, service.TokenTTL)
	if err != nil {
		logger.Fatal("token issuer", "error", err)
	}

	hub := ws.NewHub()
	defer hub.Close()

	identity := service.NewIdentityService(store, service.NewPasswordHasher(cfg.BcryptCost, cfg.HashConcurrency), tokens)
	identity.UseNotifier(hub)
	streaks := service.NewStreakService(store, identity, service.StreakConfig{CycleRestart: cfg.CycleRestart})
	identity.UseDailyLogin(streaks)
	referrals := service.NewReferralService(store, identity)
	purchases := service.NewPurchaseService(store, referrals)
	purchases.UseNotifier(hub)
	admin := service.NewAdminService(identity, referrals, cfg.AdminUserIDs)

	redisClient, err := middleware.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		// keep serving; limits fall back to per-instance counters
		logger.Warn("redis unavailable, using in-process rate limits", "addr", cfg.RedisAddr, "error", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}
	limiter := middleware.NewRateLimiter(redisClient)

	var redisCheck handlers.Pinger
	if limiter.Shared() {
		redisCheck = limiter
	}

	r := httpServer.NewRouter(httpServer.Deps{
		Config:  cfg,
		Handler: handlers.NewHandler(identity, streaks, referrals, purchases, admin),
		Health:  handlers.NewHealthHandler(store, redisCheck, version),
		Hub:     hub,
		Limiter: limiter,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "env", cfg.AppEnv, "store", cfg.StoreDriver, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
