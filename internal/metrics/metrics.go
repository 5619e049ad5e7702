// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Completion outcomes recorded by CompletionsTotal.
const (
	OutcomeAwarded          = "awarded"
	OutcomeAlreadyCompleted = "already_completed"
	OutcomeRejected         = "rejected"
	OutcomeConflict         = "conflict"
	OutcomeUnavailable      = "unavailable"
	OutcomeError            = "error"
)

var (
	CompletionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shadowrank_completions_total",
			Help: "Quest completion attempts by outcome",
		},
		[]string{"outcome"},
	)
	XPAwardedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shadowrank_xp_awarded_total",
			Help: "Total XP awarded by quest completions",
		},
	)
	LevelUpsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shadowrank_level_ups_total",
			Help: "Completions that raised a hunter's level",
		},
	)
	RankUpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shadowrank_rank_ups_total",
			Help: "Completions that promoted a hunter, by new rank",
		},
		[]string{"rank"},
	)
	ConflictRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shadowrank_conflict_retries_total",
			Help: "Completion transactions retried after a concurrent profile update",
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

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	BotCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_commands_total",
			Help: "Telegram commands handled, by command",
		},
		[]string{"command"},
	)
)

// NewProfileLocksGauge reports the number of profiles with a live completion
// lock, read from active on every scrape.
func NewProfileLocksGauge(active func() int) prometheus.GaugeFunc {
	return prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "shadowrank_profile_locks_active",
			Help: "Profiles currently holding or waiting on a completion lock",
		},
		func() float64 { return float64(active()) },
	)
}

func init() {
	prometheus.MustRegister(
		CompletionsTotal,
		XPAwardedTotal,
		LevelUpsTotal,
		RankUpsTotal,
		ConflictRetriesTotal,
		RLRequests,
		RLBlocked,
		HTTPRequests,
		HTTPDuration,
		BotCommands,
	)
}
