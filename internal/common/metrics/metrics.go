// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PipelineRunsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_completed_total",
			Help: "Total number of pipeline runs that completed",
		},
		[]string{"intent"},
	)

	PipelineRunsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_failed_total",
			Help: "Total number of pipeline runs that failed",
		},
		[]string{"intent", "error_code"},
	)

	PipelineRunsSimulated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_simulated_total",
			Help: "Total number of pipeline runs served by the fallback simulator",
		},
		[]string{"intent"},
	)

	PipelineRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "pipeline_run_duration_seconds",
			Help: "Duration of pipeline runs in seconds",
		},
		[]string{"intent"},
	)

	CarrierRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carrier_requests_total",
			Help: "Total number of composite requests sent to the carrier",
		},
		[]string{"status"},
	)
)
