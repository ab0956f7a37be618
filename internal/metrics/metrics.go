// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeSuccess  = "success"
	OutcomeConflict = "conflict"
	OutcomeInvalid  = "invalid"
	OutcomeLimited  = "limited"
	OutcomeError    = "error"
)

// Recorder is what services and middleware record into.
type Recorder interface {
	RecordRegistration(outcome string)
	RecordLogin(outcome string)
	RecordVerification(channel, outcome string)
	RecordNotification(channel string, delivered bool, d time.Duration)
	RecordHTTPRequest(method, route string, status int, d time.Duration)
}

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	registrations *prometheus.CounterVec
	logins        *prometheus.CounterVec
	verifications *prometheus.CounterVec
	notifications *prometheus.CounterVec
	notifyLatency *prometheus.HistogramVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "accounts_registrations_total",
			Help: "Registration attempts by outcome.",
		}, []string{"outcome"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "accounts_logins_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "accounts_code_verifications_total",
			Help: "One-time code verification attempts by channel and outcome.",
		}, []string{"channel", "outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "accounts_notifications_total",
			Help: "Notification sends by channel and result.",
		}, []string{"channel", "result"}),
		notifyLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "accounts_notification_latency_seconds",
			Help:    "Notification send latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"channel"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "accounts_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "accounts_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		c.registrations,
		c.logins,
		c.verifications,
		c.notifications,
		c.notifyLatency,
		c.httpRequests,
		c.httpDuration,
	)
	return c
}

func (c *Collector) RecordRegistration(outcome string) {
	c.registrations.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordLogin(outcome string) {
	c.logins.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordVerification(channel, outcome string) {
	c.verifications.WithLabelValues(channel, outcome).Inc()
}

func (c *Collector) RecordNotification(channel string, delivered bool, d time.Duration) {
	result := "delivered"
	if !delivered {
		result = "failed"
	}
	c.notifications.WithLabelValues(channel, result).Inc()
	c.notifyLatency.WithLabelValues(channel).Observe(d.Seconds())
}

func (c *Collector) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Nop discards everything. Used in tests and when metrics are disabled.
type Nop struct{}

func (Nop) RecordRegistration(string) {}
func (Nop) RecordLogin(string) {}
func (Nop) RecordVerification(string, string) {}
func (Nop) RecordNotification(string, bool, time.Duration) {}
func (Nop) RecordHTTPRequest(string, string, int, time.Duration) {}

// Handler returns the HTTP handler Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
