// Package metrics holds the Prometheus collectors shared by the api and worker services.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "radio"

// Metrics owns a registry and its collectors. A nil *Metrics records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	httpInFlight   prometheus.Gauge
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	jobsSubmitted  *prometheus.CounterVec
	jobsFinished   *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	jobsRequeued   *prometheus.CounterVec
	earnPurchases  *prometheus.CounterVec
	creditsCharged *prometheus.CounterVec
	webhookEvents  *prometheus.CounterVec
	rateLimited    *prometheus.CounterVec
}

// New registers all collectors on a fresh registry
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "route"}),
		jobsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "submitted_total",
			Help:      "Generation jobs accepted by the API.",
		}, []string{"type"}),
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "finished_total",
			Help:      "Generation jobs that reached a terminal status.",
		}, []string{"type", "status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "Wall time from claim to terminal status.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"type"}),
		jobsRequeued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "requeued_total",
			Help:      "Job messages returned to the queue by the worker.",
		}, []string{"reason"}),
		earnPurchases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "earn",
			Name:      "purchases_total",
			Help:      "Marketplace track downloads paid with credits.",
		}, []string{"stems"}),
		creditsCharged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "credits",
			Name:      "deducted_total",
			Help:      "Credits deducted for completed generations.",
		}, []string{"type"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhooks",
			Name:      "events_total",
			Help:      "Webhook deliveries by provider and outcome.",
		}, []string{"provider", "event", "result"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}, []string{"scope"}),
	}

	m.Registry.MustRegister(
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.jobsSubmitted,
		m.jobsFinished,
		m.jobDuration,
		m.jobsRequeued,
		m.earnPurchases,
		m.creditsCharged,
		m.webhookEvents,
		m.rateLimited,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return m
}

// Handler exposes the registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// RequestStarted increments the in-flight gauge and returns the matching decrement
func (m *Metrics) RequestStarted() func() {
	if m == nil {
		return func() {}
	}
	m.httpInFlight.Inc()
	return m.httpInFlight.Dec
}

func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) JobSubmitted(jobType string) {
	if m == nil {
		return
	}
	m.jobsSubmitted.WithLabelValues(jobType).Inc()
}

func (m *Metrics) JobFinished(jobType, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobsFinished.WithLabelValues(jobType, status).Inc()
	if d > 0 {
		m.jobDuration.WithLabelValues(jobType).Observe(d.Seconds())
	}
}

func (m *Metrics) CreditsDeducted(jobType string, amount int) {
	if m == nil {
		return
	}
	m.creditsCharged.WithLabelValues(jobType).Add(float64(amount))
}

func (m *Metrics) WebhookEvent(provider, event, result string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(provider, event, result).Inc()
}

func (m *Metrics) RateLimited(scope string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(scope).Inc()
}

// JobRequeued counts messages handed back to the queue: "rate_limited", "busy" or "stale"
func (m *Metrics) JobRequeued(reason string) {
	if m == nil {
		return
	}
	m.jobsRequeued.WithLabelValues(reason).Inc()
}

func (m *Metrics) EarnPurchase(withStems bool) {
	if m == nil {
		return
	}
	m.earnPurchases.WithLabelValues(strconv.FormatBool(withStems)).Inc()
}
