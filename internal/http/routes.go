package http

import (
	"time"

	"moonyetis/internal/config"
	"moonyetis/internal/http/handlers"
	"moonyetis/internal/http/middleware"
	"moonyetis/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps is everything the router needs.
type Deps struct {
	Config  *config.Config
	Handler *handlers.Handler
	Health  *handlers.HealthHandler
	Hub     *ws.Hub
	Limiter *middleware.RateLimiter
}

// NewRouter builds the engine with the global middleware chain.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(d.Config.AllowedOrigins))

	RegisterRoutes(r, d)
	return r
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	h := d.Handler
	cfg := d.Config
	window := time.Duration(cfg.RateWindow) * time.Second
	auth := middleware.JWT(h.Identity)

	// Health checks (no rate limiting)
	r.GET("/health", d.Health.Health)
	r.GET("/healthz", d.Health.Liveness)
	r.GET("/readyz", d.Health.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/ws", ws.Handle(d.Hub, h.Identity, cfg.AllowedOrigins))

	// per IP for every call, then per user once JWT has identified the caller
	v1 := r.Group("/api/v1")
	v1.Use(d.Limiter.Limit("api", cfg.RateLimit, window))
	user := v1.Group("", auth, d.Limiter.Limit("user", cfg.RateLimit, window))

	authRL := d.Limiter.Limit("auth", cfg.AuthRateLimit, window)
	{
		a := v1.Group("/auth")
		a.POST("/register", authRL, h.Register)
		a.POST("/login", authRL, h.Login)
		a.GET("/verify", h.Verify)
	}

	user.GET("/me", h.Me)
	user.POST("/me/wallet", h.LinkWallet)
	user.GET("/streak", h.Streak)
	user.GET("/rewards", h.Rewards)
	user.GET("/referral/info", h.ReferralInfo)
	user.GET("/referral/stats", h.ReferralStats)

	v1.GET("/referral/validate/:code", h.ValidateReferralCode)

	v1.POST("/purchases/confirm", middleware.WebhookSecret(cfg.WebhookSecret), h.ConfirmPurchase)

	admin := v1.Group("/admin")
	admin.Use(middleware.Admin(h.Identity, h.Admin, cfg.AdminToken))
	{
		admin.POST("/referrals/:id/process", h.AdminProcessReferral)
		admin.POST("/users/:id/coins", h.AdminGrantCoins)
		admin.POST("/users/:id/deactivate", h.AdminDeactivateUser)
		admin.GET("/users/:id/rewards", h.AdminRewardHistory)
	}
}
