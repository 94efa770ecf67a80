package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/payment-gateway/internal"
	"github.com/frahmantamala/payment-gateway/internal/transport"
	"github.com/frahmantamala/payment-gateway/pkg/logger"
)

type ServiceAPI interface {
	ValidateAccessToken(tokenString string) (*Claims, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI, lg *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

// AuthMiddleware requires a valid merchant bearer token and stores the
// merchant id in the request context and logger.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := transport.BearerToken(r)
		if token == "" {
			h.Logger.Warn("auth middleware: missing authorization token")
			h.HandleError(w, internal.ErrInvalidToken)
			return
		}

		claims, err := h.Service.ValidateAccessToken(token)
		if err != nil {
			h.Logger.Warn("token validation failed", "error", err)
			if errors.Is(err, ErrTokenExpired) {
				h.HandleError(w, internal.ErrTokenExpired)
				return
			}
			h.HandleError(w, internal.ErrInvalidToken)
			return
		}

		ctx := internal.ContextWithMerchantID(r.Context(), claims.MerchantID)
		ctx = logger.With(ctx, "merchant_id", claims.MerchantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
