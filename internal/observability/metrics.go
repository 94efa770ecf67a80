package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/frahmantamala/payment-gateway/internal/core/events"
)

// Metrics owns the gateway's Prometheus collectors on a private registry.
type Metrics struct {
	registry            *prometheus.Registry
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	paymentsTotal       *prometheus.CounterVec
	paymentAmountMinor  *prometheus.CounterVec
	bankCallDuration    *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "route", "code"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		paymentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payments_processed_total",
				Help: "Payments that reached a terminal status.",
			},
			[]string{"status", "currency"},
		),
		paymentAmountMinor: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payments_amount_minor_total",
				Help: "Sum of processed payment amounts in minor units.",
			},
			[]string{"status", "currency"},
		),
		bankCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bank_authorization_duration_seconds",
				Help:    "Duration of acquiring bank authorization calls.",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"result"},
		),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, route, fmt.Sprintf("%d", code)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (m *Metrics) ObserveBankCall(result string, duration time.Duration) {
	m.bankCallDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// HandlePaymentProcessed is an event bus handler counting terminal outcomes.
func (m *Metrics) HandlePaymentProcessed(_ context.Context, event events.Event) error {
	processed, ok := event.(*events.PaymentProcessedEvent)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	m.paymentsTotal.WithLabelValues(processed.Status, processed.Currency).Inc()
	if processed.Amount > 0 {
		m.paymentAmountMinor.WithLabelValues(processed.Status, processed.Currency).Add(float64(processed.Amount))
	}
	return nil
}

func (m *Metrics) RegisterEventHandlers(bus *events.EventBus) {
	bus.Subscribe(events.EventTypePaymentProcessed, m.HandlePaymentProcessed)
}
