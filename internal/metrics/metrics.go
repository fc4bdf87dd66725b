// Package metrics exposes the Prometheus collectors shared by the services.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups the service counters. A nil *Metrics is valid and records
// nothing, which keeps wiring optional in tests.
type Metrics struct {
	Mutations   *prometheus.CounterVec
	Retries     *prometheus.CounterVec
	Cache       *prometheus.CounterVec
	RateLimited prometheus.Counter
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "membership",
			Name:      "ledger_mutations_total",
			Help:      "Ledger writes by ledger, operation and outcome.",
		}, []string{"ledger", "op", "outcome"}),
		Retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "membership",
			Name:      "optimistic_retries_total",
			Help:      "Versioned writes repeated after a concurrent modification.",
		}, []string{"document"}),
		Cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "membership",
			Name:      "session_cache_lookups_total",
			Help:      "Session cache lookups by key kind and result.",
		}, []string{"kind", "result"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "membership",
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
	}
	reg.MustRegister(m.Mutations, m.Retries, m.Cache, m.RateLimited)
	return m
}

// Mutation records one ledger write attempt.
func (m *Metrics) Mutation(ledger, op, outcome string) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(ledger, op, outcome).Inc()
}

// Retry records a repeated optimistic write.
func (m *Metrics) Retry(document string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(document).Inc()
}

// CacheLookup records a cache hit or miss.
func (m *Metrics) CacheLookup(kind string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.Cache.WithLabelValues(kind, result).Inc()
}

// Limited records a rate-limited request.
func (m *Metrics) Limited() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}
