package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProbesTotal tracks stream probes by verdict
	ProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_probes_total",
		Help: "Total number of stream reachability probes by result",
	}, []string{"result"})

	// SweepsTotal tracks completed health sweeps
	SweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_sweeps_total",
		Help: "Total number of completed stream health sweeps",
	})

	// SweepDuration tracks how long a full sweep takes
	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_sweep_duration_seconds",
		Help:    "Duration of full stream health sweeps",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	// ChannelsKnown tracks the catalog size as of the last sweep
	ChannelsKnown = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_channels_known",
		Help: "Number of channels in the catalog as of the last sweep",
	})

	// ChannelsActive tracks channels whose stream was reachable in the last sweep
	ChannelsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_channels_active",
		Help: "Number of channels with a reachable stream as of the last sweep",
	})

	// ChannelCreations tracks create requests by outcome
	ChannelCreations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_channel_creations_total",
		Help: "Total number of channel create requests by outcome",
	}, []string{"outcome"})
)

// RecordProbe increments the probe counter for the given verdict
func RecordProbe(reachable bool) {
	result := "down"
	if reachable {
		result = "up"
	}
	ProbesTotal.WithLabelValues(result).Inc()
}

// RecordSweep records the stats of one completed sweep
func RecordSweep(duration time.Duration, active, total int) {
	SweepsTotal.Inc()
	SweepDuration.Observe(duration.Seconds())
	ChannelsActive.Set(float64(active))
	ChannelsKnown.Set(float64(total))
}

// RecordCreation increments the creation counter for an outcome
// ("created", "duplicate" or "rejected")
func RecordCreation(outcome string) {
	ChannelCreations.WithLabelValues(outcome).Inc()
}
