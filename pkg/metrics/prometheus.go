package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	snapshotsSent *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	consensus     *prometheus.GaugeVec
	lastPrice     *prometheus.GaugeVec
	latency       *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		snapshotsSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sellingoptions_snapshots_sent_total",
				Help: "Total number of sentiment snapshots sent to backend",
			},
			[]string{"backend", "symbol"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sellingoptions_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		consensus: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sellingoptions_consensus_price",
				Help: "Last computed consensus price target for a symbol",
			},
			[]string{"symbol"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sellingoptions_last_price",
				Help: "Last streamed price for an underlying symbol",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sellingoptions_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordSnapshotSent records a sentiment snapshot sent to a backend.
func (r *Recorder) RecordSnapshotSent(backend, symbol string) {
	r.snapshotsSent.WithLabelValues(backend, symbol).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordConsensus records the last consensus target for a symbol.
func (r *Recorder) RecordConsensus(symbol string, price float64) {
	r.consensus.WithLabelValues(symbol).Set(price)
}

// RecordLastPrice records the last streamed price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
