// Package metrics holds the prometheus instruments for the decision pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	InferenceRequests = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hannibal",
		Name:      "inference_requests_total",
		Help:      "Decision requests sent to the reasoning service.",
	})
	InferenceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hannibal",
		Name:      "inference_failures_total",
		Help:      "Failed decision requests by failure kind.",
	}, []string{"kind"})
	InferenceLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "hannibal",
		Name:      "inference_latency_seconds",
		Help:      "Round-trip latency of decision requests.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	})

	FallbackApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hannibal",
		Name:      "fallback_applied_total",
		Help:      "Fallback decisions applied, by reason.",
	}, []string{"reason"})
	CommandsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hannibal",
		Name:      "commands_applied_total",
		Help:      "Commands translated into orders, by action.",
	}, []string{"action"})
	CommandsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hannibal",
		Name:      "commands_skipped_total",
		Help:      "Commands dropped during translation, by reason.",
	}, []string{"reason"})
	StaleResponses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hannibal",
		Name:      "stale_responses_total",
		Help:      "Responses discarded because their battle session had ended.",
	})

	BattlesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hannibal",
		Name:      "battles_started_total",
		Help:      "Battles observed by the decision loop.",
	})
	BattlesEnded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hannibal",
		Name:      "battles_ended_total",
		Help:      "Finished battles by outcome.",
	}, []string{"outcome"})
	LoopPanics = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "hannibal",
		Name:      "loop_panics_total",
		Help:      "Panics recovered inside a decision loop tick.",
	})
	BackoffActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "hannibal",
		Name:      "inference_backoff_active",
		Help:      "1 while remote requests are suspended after repeated failures.",
	})

	CommandersStored = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "hannibal",
		Name:      "commanders_stored",
		Help:      "Commanders currently held in memory.",
	})
)
