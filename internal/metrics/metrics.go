// Package metrics exposes the service's Prometheus instruments.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "draftpay"

// Recorder groups the counters and histograms updated by the service.
type Recorder struct {
	confirmations   *prometheus.CounterVec
	confirmDuration *prometheus.HistogramVec
	stockConflicts  *prometheus.CounterVec
	cancellations   *prometheus.CounterVec
	sessions        *prometheus.CounterVec
	gatewayCalls    *prometheus.CounterVec
	gatewayDuration *prometheus.HistogramVec
	verifierChecks  *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// NewRecorder creates the instruments and registers them with reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_confirmations_total",
			Help:      "Payment confirmation attempts by channel and outcome.",
		}, []string{"channel", "outcome"}),
		confirmDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "payment_confirmation_duration_seconds",
			Help:      "Duration of payment confirmation in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"channel"}),
		stockConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_conflicts_total",
			Help:      "Payments captured for carts whose stock could not be committed.",
		}, []string{"channel"}),
		cancellations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_cancellations_total",
			Help:      "Order cancellations by actor.",
		}, []string{"changed_by"}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_sessions_total",
			Help:      "Payment session requests by outcome.",
		}, []string{"outcome"}),
		gatewayCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_requests_total",
			Help:      "Outbound payment gateway requests by operation and outcome.",
		}, []string{"operation", "outcome"}),
		gatewayDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_duration_seconds",
			Help:      "Duration of outbound payment gateway requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		verifierChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_verifier_checks_total",
			Help:      "Background payment status checks by outcome.",
		}, []string{"outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	for _, c := range []prometheus.Collector{
		r.confirmations, r.confirmDuration, r.stockConflicts, r.cancellations, r.sessions,
		r.gatewayCalls, r.gatewayDuration, r.verifierChecks, r.httpRequests, r.httpDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// NewRegistry returns a registry preloaded with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Nop returns a recorder bound to a throwaway registry.
func Nop() *Recorder {
	r, _ := NewRecorder(prometheus.NewRegistry())
	return r
}

func (r *Recorder) ObserveConfirmation(channel, outcome string, elapsed time.Duration) {
	r.confirmations.WithLabelValues(channel, outcome).Inc()
	r.confirmDuration.WithLabelValues(channel).Observe(elapsed.Seconds())
}

func (r *Recorder) StockConflict(channel string) {
	r.stockConflicts.WithLabelValues(channel).Inc()
}

func (r *Recorder) Cancellation(changedBy string) {
	r.cancellations.WithLabelValues(changedBy).Inc()
}

func (r *Recorder) Session(outcome string) {
	r.sessions.WithLabelValues(outcome).Inc()
}

func (r *Recorder) ObserveGateway(operation, outcome string, elapsed time.Duration) {
	r.gatewayCalls.WithLabelValues(operation, outcome).Inc()
	r.gatewayDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (r *Recorder) VerifierCheck(outcome string) {
	r.verifierChecks.WithLabelValues(outcome).Inc()
}

func (r *Recorder) ObserveHTTP(method, route string, code int, elapsed time.Duration) {
	r.httpRequests.WithLabelValues(method, route, httpCode(code)).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func httpCode(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
