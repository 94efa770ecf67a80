package payment_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	apperrors "github.com/frahmantamala/payment-gateway/internal"
	"github.com/frahmantamala/payment-gateway/internal/bank"
	"github.com/frahmantamala/payment-gateway/internal/idempotency"
	"github.com/frahmantamala/payment-gateway/internal/payment"
	"github.com/frahmantamala/payment-gateway/pkg/logger"
)

var _ = Describe("Payment Handler Integration", func() {
	var (
		repo     *mockRepository
		bankMock *mockBank
		router   *chi.Mux
	)

	paymentBody := func(card, currency string) string {
		return `{
			"card_number": "` + card + `",
			"merchant_id": "merchant-1",
			"expiry_month": 4,
			"expiry_year": ` + time.Now().AddDate(1, 0, 0).Format("2006") + `,
			"currency": "` + currency + `",
			"amount": 100.75,
			"cvv": 123
		}`
	}

	post := func(key, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if key != "" {
			req.Header.Set(payment.IdempotencyKeyHeader, key)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	get := func(id string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/payments/"+id, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	decodeOutcome := func(w *httptest.ResponseRecorder) payment.PaymentOutcome {
		var outcome payment.PaymentOutcome
		Expect(json.NewDecoder(w.Body).Decode(&outcome)).To(Succeed())
		return outcome
	}

	BeforeEach(func() {
		repo = newMockRepository()
		bankMock = &mockBank{response: &bank.AuthorizationResponse{Authorized: true, AuthorizationCode: "AUTH-1"}}

		guard := idempotency.NewGuard(idempotency.NewMemoryStore(), idempotency.Config{}, logger.Discard())
		service := payment.NewService(repo, payment.NewRequestValidator(nil), bankMock, guard, nil, logger.Discard())
		handler := payment.NewHandler(service, logger.Discard())

		router = chi.NewRouter()
		router.Post("/payments", handler.SubmitPayment)
		router.Get("/payments/{id}", handler.GetPayment)
	})

	It("returns 200 with the outcome for an authorized payment", func() {
		w := post("key-1", paymentBody("2222405343248877", "GBP"))

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Header().Get("Content-Type")).To(ContainSubstring("application/json"))
		Expect(w.Header().Get(payment.ReplayedHeader)).To(BeEmpty())

		outcome := decodeOutcome(w)
		Expect(outcome.ID).NotTo(BeEmpty())
		Expect(outcome.Status).To(Equal("Authorized"))
		Expect(outcome.Message).To(BeNil())
		Expect(outcome.CardNumberLastFour).To(Equal("8877"))
		Expect(outcome.Amount.String()).To(Equal("100.75"))
	})

	It("returns 400 with the outcome for a declined payment", func() {
		bankMock.response = &bank.AuthorizationResponse{Authorized: false}

		w := post("key-1", paymentBody("2222405343248112", "USD"))

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		outcome := decodeOutcome(w)
		Expect(outcome.Status).To(Equal("Declined"))
		Expect(*outcome.Message).To(Equal("Payment was declined"))
	})

	It("returns 400 with the validation messages for a rejected payment", func() {
		w := post("key-1", paymentBody("2222405343248877", "JPY"))

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		outcome := decodeOutcome(w)
		Expect(outcome.ID).NotTo(BeEmpty())
		Expect(outcome.Status).To(Equal("Rejected"))
		Expect(*outcome.Message).To(Equal("Invalid currency. Allowed values are GBP, USD, EUR."))
		Expect(bankMock.callCount()).To(Equal(0))
	})

	It("replays a repeated key with the replay header", func() {
		first := post("key-1", paymentBody("2222405343248877", "GBP"))
		Expect(first.Code).To(Equal(http.StatusOK))
		firstOutcome := decodeOutcome(first)

		second := post("key-1", paymentBody("2222405343248877", "GBP"))
		Expect(second.Code).To(Equal(http.StatusOK))
		Expect(second.Header().Get(payment.ReplayedHeader)).To(Equal("true"))
		Expect(decodeOutcome(second).ID).To(Equal(firstOutcome.ID))
		Expect(bankMock.callCount()).To(Equal(1))
	})

	It("requires the idempotency key", func() {
		w := post("", paymentBody("2222405343248877", "GBP"))

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		var body apperrors.Response
		Expect(json.NewDecoder(w.Body).Decode(&body)).To(Succeed())
		Expect(body.Error.Code).To(Equal(apperrors.ErrCodeMissingIdempotencyKey))
		Expect(repo.count()).To(Equal(0))
	})

	It("rejects malformed JSON before orchestration", func() {
		w := post("key-1", `{"card_number": `)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		var body apperrors.Response
		Expect(json.NewDecoder(w.Body).Decode(&body)).To(Succeed())
		Expect(body.Error.Code).To(Equal(apperrors.ErrCodeInvalidRequestBody))
		Expect(repo.count()).To(Equal(0))
	})

	It("rejects an amount whose exponent cannot be scaled", func() {
		body := strings.Replace(paymentBody("2222405343248877", "GBP"), `"amount": 100.75`, `"amount": 1e50000000`, 1)

		w := post("key-1", body)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		var resp apperrors.Response
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		Expect(resp.Error.Code).To(Equal(apperrors.ErrCodeInvalidRequestBody))
		Expect(repo.count()).To(Equal(0))
		Expect(bankMock.callCount()).To(Equal(0))
	})

	It("returns 400 with every expiry message when the month is missing", func() {
		body := strings.Replace(paymentBody("22224053432877", "GBP"), `"expiry_month": 4`, `"expiry_month": 0`, 1)

		w := post("key-1", body)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		outcome := decodeOutcome(w)
		Expect(outcome.Status).To(Equal("Rejected"))
		Expect(outcome.CardNumberLastFour).To(Equal("2877"))
		Expect(*outcome.Message).To(ContainSubstring("Expiry month is required."))
		Expect(*outcome.Message).To(ContainSubstring("Expiry month must be greater than 0."))
		Expect(bankMock.callCount()).To(Equal(0))
	})

	It("returns 403 when the body names another merchant", func() {
		req := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(paymentBody("2222405343248877", "GBP")))
		req.Header.Set(payment.IdempotencyKeyHeader, "key-1")
		req = req.WithContext(apperrors.ContextWithMerchantID(req.Context(), "merchant-2"))
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusForbidden))
	})

	Describe("GET /payments/{id}", func() {
		It("returns a previously processed payment", func() {
			created := decodeOutcome(post("key-1", paymentBody("2222405343248877", "EUR")))

			w := get(created.ID)

			Expect(w.Code).To(Equal(http.StatusOK))
			found := decodeOutcome(w)
			Expect(found.ID).To(Equal(created.ID))
			Expect(found.Status).To(Equal("Authorized"))
			Expect(found.Currency).To(Equal("EUR"))
			Expect(found.Message).To(BeNil())
		})

		It("returns 404 for an unknown id", func() {
			Expect(get("0b4c3e1a-8a4f-4d1e-9b1b-7a3c2d1e0f00").Code).To(Equal(http.StatusNotFound))
			Expect(get("nope").Code).To(Equal(http.StatusNotFound))
		})
	})
})
