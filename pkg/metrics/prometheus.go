package metrics

import (
	"SignalDesk/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	signalsCreated  *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	poolActive      prometheus.Gauge
	poolTarget      prometheus.Gauge
	eventsPublished *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	lastPrice       *prometheus.GaugeVec
	latency         *prometheus.HistogramVec
}

// New registers the recorder on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the recorder on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		signalsCreated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signaldesk_signals_created_total",
				Help: "Signals inserted into the active pool",
			},
			[]string{"symbol", "direction"},
		),
		transitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signaldesk_signal_transitions_total",
				Help: "Terminal transitions applied by the lifecycle manager",
			},
			[]string{"status"},
		),
		poolActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "signaldesk_pool_active",
			Help: "Active signals after the last cycle",
		}),
		poolTarget: f.NewGauge(prometheus.GaugeOpts{
			Name: "signaldesk_pool_target",
			Help: "Configured active pool size",
		}),
		eventsPublished: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signaldesk_events_published_total",
				Help: "Signal events delivered to a sink",
			},
			[]string{"sink"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signaldesk_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "signaldesk_last_price",
				Help: "Last observed price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signaldesk_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordSignalCreated(symbol string, direction models.Direction) {
	r.signalsCreated.WithLabelValues(symbol, string(direction)).Inc()
}

func (r *Recorder) RecordTransition(to models.Status) {
	r.transitions.WithLabelValues(string(to)).Inc()
}

// RecordPoolSize records the active count against the configured target.
func (r *Recorder) RecordPoolSize(active, target int) {
	r.poolActive.Set(float64(active))
	r.poolTarget.Set(float64(target))
}

func (r *Recorder) RecordEventPublished(sink string) {
	r.eventsPublished.WithLabelValues(sink).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards everything. Used by tests and tools.
type Nop struct{}

func (Nop) RecordSignalCreated(string, models.Direction) {}
func (Nop) RecordTransition(models.Status) {}
func (Nop) RecordPoolSize(int, int) {}
func (Nop) RecordEventPublished(string) {}
func (Nop) RecordError(string) {}
func (Nop) RecordLastPrice(string, float64) {}
func (Nop) RecordLatency(string, float64) {}
