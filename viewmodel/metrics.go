package viewmodel

import (
	"time"

	"github.com/gohealthy/models"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "gohealthy_"

	resultSuccess = "success"
	resultError   = "error"
	resultStale   = "stale"
)

// Metrics counts refreshes and fetch outcomes. A nil *Metrics records nothing.
type Metrics struct {
	refreshes     *prometheus.CounterVec
	fetches       *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "refresh_total",
				Help: "Refreshes issued by trigger",
			},
			[]string{"trigger"},
		),
		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "fetch_total",
				Help: "Completed series fetches by metric and result",
			},
			[]string{"metric", "result"},
		),
		fetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "fetch_duration_seconds",
				Help:    "Series fetch latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"metric"},
		),
	}
	reg.MustRegister(m.refreshes, m.fetches, m.fetchDuration)
	return m
}

func (m *Metrics) refreshed(trigger string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(trigger).Inc()
}

func (m *Metrics) fetched(metric models.Metric, result string) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(metric.String(), result).Inc()
}

func (m *Metrics) observe(metric models.Metric, d time.Duration) {
	if m == nil {
		return
	}
	m.fetchDuration.WithLabelValues(metric.String()).Observe(d.Seconds())
}
