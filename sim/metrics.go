package sim

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	modelsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stagehand_sim_models",
		Help: "The number of registered models.",
	})

	stallCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stagehand_sim_stalls_total",
		Help: "The number of times a model entered the stalled state.",
	})

	collisionCounter = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stagehand_sim_collisions_total",
		Help: "The number of collision tests that reported a hit.",
	})

	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stagehand_sim_tick_duration_seconds",
		Help:    "The wall-clock time spent in one world update.",
		Buckets: prometheus.ExponentialBuckets(0.00001, 2, 16),
	})
)
