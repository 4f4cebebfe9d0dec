package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ChainsStarted counts accepted chain runs.
	ChainsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "postwise_chains_started_total",
		Help: "Suggestion chains accepted for background processing",
	})

	// ChainsFinished counts terminal chains by outcome (complete or error).
	ChainsFinished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "postwise_chains_finished_total",
		Help: "Suggestion chains that reached a terminal state",
	}, []string{"outcome"})

	// StepDuration observes wall time per pipeline step.
	StepDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "postwise_chain_step_duration_seconds",
		Help:    "Duration of individual chain steps",
		Buckets: prometheus.DefBuckets,
	}, []string{"step"})

	// StreamClients gauges currently connected progress stream consumers.
	StreamClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "postwise_stream_clients",
		Help: "Connected SSE progress stream consumers",
	})
)

func init() {
	prometheus.MustRegister(ChainsStarted, ChainsFinished, StepDuration, StreamClients)
}
