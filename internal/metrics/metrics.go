package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Engine metrics
	EngineRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_engine_runs_total",
			Help: "Total auto-execution engine runs",
		},
		[]string{"status"},
	)

	EngineRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hermes_engine_run_duration_seconds",
			Help:    "Duration of auto-execution engine runs",
			Buckets: prometheus.DefBuckets,
		},
	)

	SignalsClaimed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hermes_signals_claimed_total",
			Help: "Total expired signals claimed for auto-execution",
		},
	)

	// Trade metrics
	TradesExecuted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_trades_executed_total",
			Help: "Total trades executed by side and status",
		},
		[]string{"side", "status"},
	)

	// Notification metrics
	NotificationsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_notifications_sent_total",
			Help: "Total notifications delivered by type",
		},
		[]string{"type"},
	)

	NotificationsSuppressed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hermes_notifications_suppressed_total",
			Help: "Total notifications suppressed by the dedup registry",
		},
	)

	NotificationsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hermes_notifications_failed_total",
			Help: "Total notification deliveries that failed on every channel",
		},
	)

	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_worker_executions_total",
			Help: "Total worker executions",
		},
		[]string{"worker", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		EngineRuns,
		EngineRunDuration,
		SignalsClaimed,
		TradesExecuted,
		NotificationsSent,
		NotificationsSuppressed,
		NotificationsFailed,
		WorkerExecutions,
	)
}

// Serve exposes the /metrics endpoint. Blocks, intended to run in its
// own goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return server.ListenAndServe()
}
