package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Remote gateway calls by action and outcome (ok, remote_error, transport, malformed, cache_hit).
	GatewayCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizdesk_gateway_calls_total",
			Help: "Remote backend calls by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	GatewayDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quizdesk_gateway_call_duration_seconds",
			Help:    "Time spent waiting for the remote backend",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)

	GatewayRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizdesk_gateway_retries_total",
			Help: "Retries issued for idempotent read actions",
		},
		[]string{"action"},
	)

	Violations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizdesk_violations_total",
			Help: "Client-observed anti-cheat signals",
		},
		[]string{"type"},
	)

	QuizFinishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizdesk_quiz_finishes_total",
			Help: "Finished quiz sessions by submission reason",
		},
		[]string{"reason"},
	)

	ActiveQuizzes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quizdesk_active_quizzes",
			Help: "Quiz sessions currently in progress",
		},
	)
)

func Handler() http.Handler { return promhttp.Handler() }
