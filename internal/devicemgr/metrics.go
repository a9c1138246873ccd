package devicemgr

import "github.com/prometheus/client_golang/prometheus"

var (
	pollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netvault_device_polls_total",
			Help: "Device poll attempts by connector kind and resulting status.",
		},
		[]string{"kind", "result"},
	)
	pollDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "netvault_device_poll_duration_seconds",
			Help:    "Device poll duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
	pollsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "netvault_device_polls_in_flight",
			Help: "Device polls currently holding the concurrency gate.",
		},
	)
)

func init() {
	prometheus.MustRegister(pollsTotal)
	prometheus.MustRegister(pollDuration)
	prometheus.MustRegister(pollsInFlight)
}
