package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AnalyticsLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "signaldesk",
			Subsystem: "analytics",
			Name:      "latency_seconds",
			Help:      "Latency of sentiment and predictor calls",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	AnalyticsErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "signaldesk",
			Subsystem: "analytics",
			Name:      "errors_total",
			Help:      "Failed sentiment and predictor calls by endpoint",
		},
		[]string{"endpoint"},
	)
)

// ObserveAnalytics records one call to an analytics endpoint.
func ObserveAnalytics(endpoint string, d time.Duration, err error) {
	AnalyticsLatency.WithLabelValues(endpoint).Observe(d.Seconds())
	if err != nil {
		AnalyticsErrors.WithLabelValues(endpoint).Inc()
	}
}
