package payment

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi"

	errors "github.com/frahmantamala/payment-gateway/internal"
	"github.com/frahmantamala/payment-gateway/internal/transport"
	"github.com/frahmantamala/payment-gateway/pkg/logger"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	ReplayedHeader       = "Idempotent-Replayed"
)

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI, lg *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

// SubmitPayment handles POST /payments
func (h *Handler) SubmitPayment(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if key == "" {
		h.HandleError(w, errors.ErrMissingIdempotencyKey)
		return
	}

	var req PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.From(r.Context()).Warn("SubmitPayment: invalid request body", "error", err)
		h.HandleError(w, errors.ErrInvalidRequestBody.WithCause(err))
		return
	}

	result, err := h.Service.SubmitPayment(r.Context(), key, &req)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	if result.Replayed {
		w.Header().Set(ReplayedHeader, "true")
	}

	status := http.StatusBadRequest
	if result.Outcome.Authorized() {
		status = http.StatusOK
	}

	h.WriteJSON(w, status, result.Outcome)
}

// GetPayment handles GET /payments/{id}
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	outcome, err := h.Service.GetPayment(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, outcome)
}
