// Package metrics holds the process-wide Prometheus collectors exposed on
// the server's metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "xiaozhi_active_sessions",
			Help: "Number of currently connected device sessions.",
		},
	)

	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xiaozhi_sessions_total",
			Help: "Total sessions that have completed, by teardown reason.",
		},
		[]string{"reason"},
	)

	TTSJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xiaozhi_tts_jobs_total",
			Help: "Total TTS synthesis jobs, by outcome.",
		},
		[]string{"outcome"},
	)

	DialogRoundDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "xiaozhi_dialog_round_duration_seconds",
			Help: "Wall-clock time for one chatRound call, including any tool re-entry.",
		},
	)
)
