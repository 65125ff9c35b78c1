package monitor

import "github.com/prometheus/client_golang/prometheus"

var (
	probeAttemptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "opwatch_probe_attempts_total",
			Help: "Total number of status probe invocations.",
		},
	)

	watchesFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opwatch_watches_finished_total",
			Help: "Total number of finished watches.",
		},
		[]string{"mode", "status"},
	)

	messagesDeliveredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "opwatch_messages_delivered_total",
			Help: "Total number of subscription messages delivered.",
		},
	)

	watchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "opwatch_watch_duration_seconds",
			Help:    "Observation duration from start to terminal outcome.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)
)

func init() {
	prometheus.MustRegister(probeAttemptsTotal)
	prometheus.MustRegister(watchesFinishedTotal)
	prometheus.MustRegister(messagesDeliveredTotal)
	prometheus.MustRegister(watchDuration)
}
