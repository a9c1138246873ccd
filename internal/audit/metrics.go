package audit

import "github.com/prometheus/client_golang/prometheus"

var (
	auditsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netvault_audits_total",
			Help: "Completed audits by audit type and overall status.",
		},
		[]string{"type", "status"},
	)
	alertsTriggered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netvault_alerts_triggered_total",
			Help: "Alerts raised from audit findings by severity.",
		},
		[]string{"severity"},
	)
)

func init() {
	prometheus.MustRegister(auditsTotal)
	prometheus.MustRegister(alertsTriggered)
}
