// Package metrics exposes Prometheus counters for the merchant-facing flows.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lunalink"

// Metrics holds the collectors registered on its own registry.
type Metrics struct {
	registry         *prometheus.Registry
	callbackOutcomes *prometheus.CounterVec
	checkouts        *prometheus.CounterVec
	webhookEvents    *prometheus.CounterVec
	callsRecorded    *prometheus.CounterVec
}

// New registers the LunaLink collectors plus the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		callbackOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shopify_callback_total",
			Help:      "Shopify OAuth callbacks by redirect outcome.",
		}, []string{"outcome"}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_sessions_total",
			Help:      "Checkout session requests by plan and result.",
		}, []string{"plan", "result"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stripe_webhooks_total",
			Help:      "Stripe webhook deliveries by result.",
		}, []string{"result"}),
		callsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usage_calls_total",
			Help:      "Metered call reports by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.callbackOutcomes,
		m.checkouts,
		m.webhookEvents,
		m.callsRecorded,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// CallbackOutcome counts one OAuth callback by its redirect code.
func (m *Metrics) CallbackOutcome(code string) {
	if m == nil {
		return
	}
	m.callbackOutcomes.WithLabelValues(code).Inc()
}

// Checkout counts one checkout request. result is "created", "rate_limited" or "failed".
func (m *Metrics) Checkout(plan, result string) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(plan, result).Inc()
}

// WebhookEvent counts one webhook delivery.
func (m *Metrics) WebhookEvent(result string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(result).Inc()
}

// CallsRecorded counts one usage report.
func (m *Metrics) CallsRecorded(result string) {
	if m == nil {
		return
	}
	m.callsRecorded.WithLabelValues(result).Inc()
}
