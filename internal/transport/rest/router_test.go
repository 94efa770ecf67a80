package rest_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	_ "github.com/mattn/go-sqlite3"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/payment-gateway/internal"
	"github.com/frahmantamala/payment-gateway/internal/observability"
	"github.com/frahmantamala/payment-gateway/internal/payment"
	"github.com/frahmantamala/payment-gateway/internal/transport/middleware"
	"github.com/frahmantamala/payment-gateway/internal/transport/rest"
	"github.com/frahmantamala/payment-gateway/pkg/logger"
)

func TestRest(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "REST Router Suite")
}

type stubPaymentService struct {
	submitted int
}

func (s *stubPaymentService) SubmitPayment(_ context.Context, _ string, req *payment.PaymentRequest) (*payment.SubmitResult, error) {
	s.submitted++
	return &payment.SubmitResult{Outcome: &payment.PaymentOutcome{
		ID:       "0b4c3e1a-8a4f-4d1e-9b1b-7a3c2d1e0f00",
		Status:   string(payment.StatusAuthorized),
		Currency: req.Currency,
		Amount:   payment.NewAmount(req.Amount),
	}}, nil
}

func (s *stubPaymentService) GetPayment(context.Context, string) (*payment.PaymentOutcome, error) {
	return nil, internal.ErrPaymentNotFound
}

type pinger struct {
	err error
}

func (p pinger) Ping(context.Context) error {
	return p.err
}

var _ = Describe("Router", func() {
	var (
		db       *sql.DB
		router   *chi.Mux
		health   *rest.HealthHandler
		service  *stubPaymentService
		metrics  *observability.Metrics
		authGate func(http.Handler) http.Handler
	)

	serve := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(payment.IdempotencyKeyHeader, "key-1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	build := func() {
		router = chi.NewRouter()
		rest.RegisterAllRoutes(router, rest.RouterDeps{
			Health:         health,
			PaymentHandler: payment.NewHandler(service, logger.Discard()),
			AuthMiddleware: authGate,
			Metrics:        metrics.Handler(),
			MetricsPath:    "/metrics",
			HTTPObserver:   metrics,
			Logger:         logger.Discard(),
		})
	}

	BeforeEach(func() {
		var err error
		db, err = sql.Open("sqlite3", ":memory:")
		Expect(err).NotTo(HaveOccurred())

		health = rest.NewHealthHandler(db)
		service = &stubPaymentService{}
		metrics = observability.NewMetrics()
		authGate = nil
		build()
	})

	AfterEach(func() {
		db.Close()
	})

	It("answers liveness probes", func() {
		w := serve(http.MethodGet, "/ping", "")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring("OK"))
	})

	It("reports healthy components", func() {
		health.WithChecker("redis", pinger{})

		w := serve(http.MethodGet, "/health", "")

		Expect(w.Code).To(Equal(http.StatusOK))
		var resp rest.HealthResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		Expect(resp.Status).To(Equal(rest.HealthHealthy))
		Expect(resp.Components).To(HaveKey("database"))
		Expect(resp.Components).To(HaveKey("redis"))
	})

	It("returns 503 when a component is down", func() {
		health.WithChecker("redis", pinger{err: errors.New("connection refused")})

		w := serve(http.MethodGet, "/health", "")

		Expect(w.Code).To(Equal(http.StatusServiceUnavailable))
		var resp rest.HealthResponse
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		Expect(resp.Status).To(Equal(rest.HealthUnhealthy))
		Expect(resp.Components["redis"].Message).To(Equal("connection refused"))
	})

	It("serves the OpenAPI document", func() {
		w := serve(http.MethodGet, "/openapi.yml", "")
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Body.String()).To(ContainSubstring("/payments/{id}"))
	})

	It("routes payments through the handler with a trace id", func() {
		w := serve(http.MethodPost, "/payments", `{"currency":"GBP","amount":10.5}`)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Header().Get(middleware.TraceIDHeader)).NotTo(BeEmpty())
		Expect(service.submitted).To(Equal(1))

		Expect(serve(http.MethodGet, "/payments/0b4c3e1a-8a4f-4d1e-9b1b-7a3c2d1e0f00", "").Code).To(Equal(http.StatusNotFound))
	})

	It("exposes request metrics", func() {
		serve(http.MethodGet, "/payments/abc", "")

		w := serve(http.MethodGet, "/metrics", "")
		body, err := io.ReadAll(w.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(body)).To(ContainSubstring(`route="/payments/{id}"`))
	})

	It("puts payments behind the auth middleware when configured", func() {
		authGate = func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			})
		}
		build()

		Expect(serve(http.MethodPost, "/payments", `{}`).Code).To(Equal(http.StatusUnauthorized))
		Expect(service.submitted).To(BeZero())
		Expect(serve(http.MethodGet, "/ping", "").Code).To(Equal(http.StatusOK))
	})
})
