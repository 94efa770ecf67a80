package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/payment-gateway/api"
	"github.com/frahmantamala/payment-gateway/internal/payment"
	"github.com/frahmantamala/payment-gateway/internal/transport/middleware"
	"github.com/frahmantamala/payment-gateway/internal/transport/swagger"
)

type RouterDeps struct {
	Health         *HealthHandler
	PaymentHandler *payment.Handler
	// AuthMiddleware guards /payments when merchant auth is enabled.
	AuthMiddleware func(http.Handler) http.Handler
	Metrics        http.Handler
	MetricsPath    string
	HTTPObserver   middleware.HTTPObserver
	Tracing        func(http.Handler) http.Handler
	Logger         *slog.Logger
}

func RegisterAllRoutes(router *chi.Mux, deps RouterDeps) {
	// Apply global middleware
	if deps.Tracing != nil {
		router.Use(deps.Tracing)
	}
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(deps.Logger))
	if deps.HTTPObserver != nil {
		router.Use(middleware.MetricsMiddleware(deps.HTTPObserver))
	}
	router.Use(middleware.LoggingMiddleware(deps.Logger))

	// Serve OpenAPI spec at root
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		w.Write(api.OpenAPI)
	})
	router.Handle("/swagger/*", swagger.Handler())

	if deps.Health != nil {
		router.Get("/health", deps.Health.healthCheckHandler)
		router.Get("/ping", deps.Health.pingHandler)
	}

	if deps.Metrics != nil {
		path := deps.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.Handle(path, deps.Metrics)
	}

	if deps.PaymentHandler != nil {
		router.Route("/payments", func(r chi.Router) {
			if deps.AuthMiddleware != nil {
				r.Use(deps.AuthMiddleware)
			}
			r.Post("/", deps.PaymentHandler.SubmitPayment)
			r.Get("/{id}", deps.PaymentHandler.GetPayment)
		})
	}
}
