package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry            *prometheus.Registry
	syncRuns            *prometheus.CounterVec // cycles by outcome
	syncDuration        prometheus.Histogram   // time per cycle
	consecutiveFailures prometheus.Gauge       // current failure streak
	nextSyncDelay       prometheus.Gauge       // delay before next cycle
	dnsRequests         *prometheus.CounterVec // record provider requests
	resolverRequests    *prometheus.CounterVec // ip echo requests
	historyRequests     *prometheus.CounterVec // badgerdb journal requests
}

func (m *Metrics) IncSyncRun(outcome string) {
	if !isValidOutcome(outcome) {
		return
	}
	m.syncRuns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetSyncDuration(duration time.Duration) {
	m.syncDuration.Observe(duration.Seconds())
}

func (m *Metrics) SetConsecutiveFailures(n uint) {
	m.consecutiveFailures.Set(float64(n))
}

func (m *Metrics) SetNextSyncDelay(delay time.Duration) {
	m.nextSyncDelay.Set(delay.Seconds())
}

func (m *Metrics) IncDNSRequest(operation string, success bool) {
	if !isValidOperation(operation) {
		return
	}
	m.dnsRequests.WithLabelValues(operation, boolToResult(success)).Inc()
}

func (m *Metrics) IncResolverRequest(success bool) {
	m.resolverRequests.WithLabelValues(boolToResult(success)).Inc()
}

func (m *Metrics) IncHistoryRequest(operation string, success bool) {
	if !isValidOperation(operation) {
		return
	}
	m.historyRequests.WithLabelValues(operation, boolToResult(success)).Inc()
}

// Validation helpers
func boolToResult(b bool) string {
	if b {
		return "success"
	}
	return "failure"
}

func isValidOperation(op string) bool {
	switch op {
	case "read", "update", "append":
		return true
	}
	return false
}

func isValidOutcome(outcome string) bool {
	switch outcome {
	case "unchanged", "updated", "failed":
		return true
	}
	return false
}

func New(register bool) *Metrics {
	registry := prometheus.NewRegistry()
	namespace := "ddns_agent"

	m := &Metrics{
		registry: registry,

		syncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Total number of reconciliation cycles by outcome",
		}, []string{"outcome"}),

		syncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Duration of reconciliation cycles in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		consecutiveFailures: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "consecutive_failures",
			Help:      "Number of failed cycles since the last successful one",
		}),

		nextSyncDelay: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "next_sync_delay_seconds",
			Help:      "Delay scheduled before the next cycle",
		}),

		dnsRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dns_requests_total",
			Help:      "Total record provider requests",
		}, []string{"operation", "status"}),

		resolverRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolver_requests_total",
			Help:      "Total public ip lookups",
		}, []string{"status"}),

		historyRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "badgerdb_requests_total",
			Help:      "Total update history requests",
		}, []string{"operation", "status"}),
	}

	if register {
		registry.MustRegister(
			m.syncRuns,
			m.syncDuration,
			m.consecutiveFailures,
			m.nextSyncDelay,
			m.dnsRequests,
			m.resolverRequests,
			m.historyRequests,
		)
	}
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
