package indexer

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

// MetricsSubsystem is a subsystem shared by all metrics exposed by this
// package.
const MetricsSubsystem = "indexer"

// Metrics contains metrics exposed by this package.
type Metrics struct {
	// Number of transactions committed to the index.
	TransactionsIndexed metrics.Counter
	// Number of notifications indexed, labeled by notify_type class.
	NotificationsIndexed metrics.Counter
	// Number of notifications that could not be decoded.
	NotificationsSkipped metrics.Counter
	// Number of contracts detected as tokens.
	TokensDetected metrics.Counter
	// Time spent indexing one transaction, commit included.
	IndexSeconds metrics.Histogram
	// Last block height written by the indexer.
	Height metrics.Gauge
}

// PrometheusMetrics returns Metrics build using Prometheus client library.
// Optionally, labels can be provided along with their values ("foo",
// "fooValue").
func PrometheusMetrics(namespace string, labelsAndValues ...string) *Metrics {
	labels := []string{}
	for i := 0; i < len(labelsAndValues); i += 2 {
		labels = append(labels, labelsAndValues[i])
	}
	return &Metrics{
		TransactionsIndexed: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "transactions_indexed",
			Help:      "Number of transactions committed to the index.",
		}, labels).With(labelsAndValues...),
		NotificationsIndexed: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "notifications_indexed",
			Help:      "Number of notifications indexed.",
		}, append(labels, "event_class")).With(labelsAndValues...),
		NotificationsSkipped: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "notifications_skipped",
			Help:      "Number of notifications that could not be decoded or were not tagged.",
		}, labels).With(labelsAndValues...),
		TokensDetected: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "tokens_detected",
			Help:      "Number of contracts detected as tokens.",
		}, labels).With(labelsAndValues...),
		IndexSeconds: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "index_seconds",
			Help:      "Time spent indexing one transaction.",
			Buckets:   stdprometheus.ExponentialBuckets(0.0001, 4, 10),
		}, labels).With(labelsAndValues...),
		Height: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "height",
			Help:      "Last block height written by the indexer.",
		}, labels).With(labelsAndValues...),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		TransactionsIndexed:  discard.NewCounter(),
		NotificationsIndexed: discard.NewCounter(),
		NotificationsSkipped: discard.NewCounter(),
		TokensDetected:       discard.NewCounter(),
		IndexSeconds:         discard.NewHistogram(),
		Height:               discard.NewGauge(),
	}
}

// eventClass bounds the label cardinality of NotificationsIndexed, since
// generic event names are chosen by contracts.
func eventClass(ev Event) string {
	if _, ok := ev.(Generic); ok {
		return "generic"
	}
	return ev.EventType()
}
