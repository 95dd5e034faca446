// Package metrics provides Prometheus metrics for the stripe writer:
// flush decisions by outcome, stripes flushed, stripe sizes, and
// dictionary memory usage.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FlushDecisions counts dictionary flush decisions by policy and
	// outcome.
	//
	// Example:
	//	metrics.FlushDecisions.WithLabelValues("default", "evaluate_dictionary").Inc()
	FlushDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stripewriter_flush_decisions_total",
			Help: "Total dictionary flush decisions by outcome",
		},
		[]string{"policy", "decision"},
	)

	// StripesFlushed counts finalized stripes by policy.
	StripesFlushed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stripewriter_stripes_flushed_total",
			Help: "Total stripes finalized and handed to the sink",
		},
		[]string{"policy"},
	)

	// StripeRows tracks the distribution of rows per flushed stripe.
	StripeRows = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stripewriter_stripe_rows",
			Help:    "Rows per flushed stripe",
			Buckets: prometheus.ExponentialBuckets(100, 4, 10),
		},
	)

	// StripeBytes tracks the distribution of estimated bytes per flushed
	// stripe.
	StripeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stripewriter_stripe_bytes",
			Help:    "Estimated bytes per flushed stripe",
			Buckets: prometheus.ExponentialBuckets(64*1024, 4, 10),
		},
	)

	// DictionaryMemory tracks current dictionary memory usage per writer.
	DictionaryMemory = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stripewriter_dictionary_memory_bytes",
			Help: "Current dictionary memory usage in bytes",
		},
		[]string{"writer"},
	)

	// DictionariesAbandoned counts columns converted from dictionary to
	// direct encoding, by reason (memory_pressure or ineffective).
	DictionariesAbandoned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stripewriter_dictionaries_abandoned_total",
			Help: "Columns converted from dictionary to direct encoding",
		},
		[]string{"reason"},
	)

	// FlushLatency tracks the time spent finalizing a stripe, in
	// nanoseconds.
	FlushLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "stripewriter_flush_latency_nanoseconds",
			Help: "Stripe finalization latency in nanoseconds",
			Buckets: []float64{
				1e4, // 10μs
				1e5, // 100μs
				1e6, // 1ms
				1e7, // 10ms
				1e8, // 100ms
				1e9, // 1s
			},
		},
	)
)

// Timer measures the duration of an operation.
type Timer struct {
	start time.Time
}

// NewTimer creates a timer that starts immediately.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed time since the timer was created.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ObserveFlush records the latency of one stripe flush.
func (t *Timer) ObserveFlush() {
	FlushLatency.Observe(float64(t.Stop().Nanoseconds()))
}
