// Package metrics holds the Prometheus collectors shared by the services and
// the HTTP layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RewardsGranted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moonyetis_rewards_granted_total",
			Help: "Rewards credited, by reward type",
		},
		[]string{"type"},
	)
	RewardCoins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moonyetis_reward_coins_total",
			Help: "MoonCoins credited through rewards, by reward type",
		},
		[]string{"type"},
	)
	DailyClaims = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moonyetis_daily_claims_total",
			Help: "Daily login claims by outcome (granted, already_claimed, reset)",
		},
		[]string{"outcome"},
	)
	ReferralEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moonyetis_referral_events_total",
			Help: "Referral purchase events by outcome",
		},
		[]string{"outcome"},
	)
	Registrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moonyetis_registrations_total",
			Help: "Registration attempts by outcome",
		},
		[]string{"outcome"},
	)
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route and status",
		},
		[]string{"route", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "moonyetis_ws_connections",
			Help: "Open reward notification websocket sessions",
		},
	)
	RLRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limiter_requests_total",
			Help: "Total requests seen by the rate limiter",
		},
		[]string{"endpoint"},
	)
	RLBlocked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limiter_blocked_total",
			Help: "Total requests blocked by the rate limiter",
		},
		[]string{"endpoint"},
	)
)

func init() {
	prometheus.MustRegister(
		RewardsGranted,
		RewardCoins,
		DailyClaims,
		ReferralEvents,
		Registrations,
		HTTPRequests,
		HTTPDuration,
		WSConnections,
		RLRequests,
		RLBlocked,
	)
}
