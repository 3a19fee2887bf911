package dashboard

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the dashboard's Prometheus collectors on a private registry
type Metrics struct {
	registry  *prometheus.Registry
	callbacks *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	ticks     prometheus.Counter
}

// NewMetrics registers the collectors. sessions reports the live session count.
func NewMetrics(sessions func() int) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "energydash",
			Name:      "callbacks_total",
			Help:      "Callback dispatches by output widget and status.",
		}, []string{"output", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "energydash",
			Name:      "callback_duration_seconds",
			Help:      "Time spent computing and rendering a callback.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"output"}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "energydash",
			Name:      "meter_ticks_total",
			Help:      "Running-total timer ticks handled.",
		}),
	}

	m.registry.MustRegister(
		m.callbacks,
		m.duration,
		m.ticks,
		collectors.NewGoCollector(),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "energydash",
			Name:      "sessions",
			Help:      "Browser sessions holding a running total.",
		}, func() float64 { return float64(sessions()) }),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observe(output, status string, seconds float64) {
	m.callbacks.WithLabelValues(output, status).Inc()
	m.duration.WithLabelValues(output).Observe(seconds)
}
