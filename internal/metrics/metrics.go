// Package metrics provides Prometheus collection for the session service.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonathan/cvperfect-sessions/internal/session"
)

// Collector aggregates the session-flow counters. It implements
// recovery.Metrics so the orchestrator can report outcomes without knowing
// about Prometheus.
type Collector struct {
	saves         prometheus.Counter
	saveFailures  prometheus.Counter
	lookups       *prometheus.CounterVec
	recoveries    *prometheus.CounterVec
	lookupLatency prometheus.Histogram
	swept         prometheus.Counter
}

// NewCollector registers the session metrics on reg and returns the
// collector.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		saves: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cvperfect_session_saves_total",
			Help: "Total session records written at pay time.",
		}),
		saveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cvperfect_session_save_failures_total",
			Help: "Total session save attempts rejected or failed.",
		}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cvperfect_session_lookups_total",
			Help: "Session store lookups by outcome.",
		}, []string{"outcome"}),
		recoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cvperfect_session_recoveries_total",
			Help: "Recovery orchestrator runs by data source.",
		}, []string{"source"}),
		lookupLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cvperfect_session_lookup_latency_seconds",
			Help:    "Latency of session store lookups.",
			Buckets: prometheus.DefBuckets,
		}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cvperfect_sessions_swept_total",
			Help: "Expired session records removed by the retention job.",
		}),
	}

	reg.MustRegister(
		c.saves,
		c.saveFailures,
		c.lookups,
		c.recoveries,
		c.lookupLatency,
		c.swept,
	)
	return c
}

// RecordSave counts a successful session write.
func (c *Collector) RecordSave() {
	c.saves.Inc()
}

// RecordSaveFailure counts a rejected or failed save.
func (c *Collector) RecordSaveFailure() {
	c.saveFailures.Inc()
}

// RecordLookup counts a successful store lookup.
func (c *Collector) RecordLookup() {
	c.lookups.WithLabelValues("hit").Inc()
}

// RecordLookupError classifies a failed lookup by its taxonomy entry.
func (c *Collector) RecordLookupError(err error) {
	c.lookups.WithLabelValues(lookupOutcome(err)).Inc()
}

// RecordRecovery counts an orchestrator run by data source
// (store, mirror, none).
func (c *Collector) RecordRecovery(source string) {
	c.recoveries.WithLabelValues(source).Inc()
}

// RecordLookupLatency observes one store lookup duration.
func (c *Collector) RecordLookupLatency(d time.Duration) {
	c.lookupLatency.Observe(d.Seconds())
}

// RecordSwept adds the number of records removed by a retention sweep.
func (c *Collector) RecordSwept(count int) {
	c.swept.Add(float64(count))
}

// lookupOutcome maps a lookup error to its metric label. Expired stays
// distinct from not_found on purpose; the recovery path treats them the
// same but operators should not.
func lookupOutcome(err error) string {
	switch {
	case errors.Is(err, session.ErrInvalidIDFormat):
		return "invalid_format"
	case errors.Is(err, session.ErrExpired):
		return "expired"
	case errors.Is(err, session.ErrNotFound):
		return "not_found"
	case errors.Is(err, session.ErrStoreUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

// Handler returns the Prometheus scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
