package payment

import (
	"context"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	errors "github.com/frahmantamala/payment-gateway/internal"
	"github.com/frahmantamala/payment-gateway/internal/bank"
	"github.com/frahmantamala/payment-gateway/internal/core/datamodel/transaction"
	"github.com/frahmantamala/payment-gateway/internal/core/events"
	"github.com/frahmantamala/payment-gateway/internal/idempotency"
	"github.com/frahmantamala/payment-gateway/pkg/logger"
)

// RepositoryAPI is the transaction store used by the orchestrator.
type RepositoryAPI interface {
	Create(ctx context.Context, tx *transaction.Transaction) error
	Update(ctx context.Context, tx *transaction.Transaction) error
	FindByID(ctx context.Context, id string) (*transaction.Transaction, error)
}

type Validator interface {
	Validate(req *PaymentRequest) []string
}

type BankClient interface {
	Authorize(ctx context.Context, req *bank.AuthorizationRequest) (*bank.AuthorizationResponse, error)
}

type IdempotencyGuard interface {
	Execute(ctx context.Context, key, fingerprint string, run idempotency.RunFunc) (json.RawMessage, bool, error)
}

type ServiceAPI interface {
	SubmitPayment(ctx context.Context, idempotencyKey string, req *PaymentRequest) (*SubmitResult, error)
	GetPayment(ctx context.Context, id string) (*PaymentOutcome, error)
}

type Service struct {
	repository RepositoryAPI
	validator  Validator
	bank       BankClient
	guard      IdempotencyGuard
	publisher  events.Publisher
	logger     *slog.Logger
	newID      func() string
}

func NewService(repository RepositoryAPI, validator Validator, bankClient BankClient, guard IdempotencyGuard, publisher events.Publisher, lg *slog.Logger) *Service {
	if lg == nil {
		lg = logger.LoggerWrapper()
	}
	return &Service{
		repository: repository,
		validator:  validator,
		bank:       bankClient,
		guard:      guard,
		publisher:  publisher,
		logger:     lg,
		newID:      uuid.NewString,
	}
}

// SubmitPayment runs the payment through the idempotency guard so that a key
// reaches the bank at most once.
func (s *Service) SubmitPayment(ctx context.Context, idempotencyKey string, req *PaymentRequest) (*SubmitResult, error) {
	if merchantID := errors.MerchantIDFromContext(ctx); merchantID != "" && merchantID != req.MerchantID {
		s.logger.Warn("merchant mismatch on payment submission",
			"authenticated_merchant", merchantID,
			"requested_merchant", req.MerchantID)
		return nil, errors.ErrMerchantMismatch
	}

	raw, replayed, err := s.guard.Execute(ctx, idempotencyKey, Fingerprint(req), func(ctx context.Context) (json.RawMessage, error) {
		return json.Marshal(s.ProcessPayment(ctx, req))
	})
	if err != nil {
		switch {
		case stderrors.Is(err, idempotency.ErrMissingKey):
			return nil, errors.ErrMissingIdempotencyKey
		case stderrors.Is(err, idempotency.ErrInProgress):
			return nil, errors.ErrDuplicateInProgress
		default:
			s.logger.Error("idempotency guard failed", "error", err, "idempotency_key", idempotencyKey)
			return nil, errors.ErrIdempotencyStore.WithCause(err)
		}
	}

	var outcome PaymentOutcome
	if err := json.Unmarshal(raw, &outcome); err != nil {
		s.logger.Error("failed to decode stored payment outcome", "error", err, "idempotency_key", idempotencyKey)
		return nil, errors.NewInternalError("failed to decode stored payment outcome", err)
	}

	if replayed {
		s.logger.Info("payment outcome replayed", "idempotency_key", idempotencyKey, "transaction_id", outcome.ID)
	}

	return &SubmitResult{Outcome: &outcome, Replayed: replayed}, nil
}

// ProcessPayment is the orchestration workflow. It never returns an error:
// every failure becomes a Rejected outcome.
func (s *Service) ProcessPayment(ctx context.Context, req *PaymentRequest) (outcome *PaymentOutcome) {
	var tx *transaction.Transaction

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic while processing payment",
				"panic", r,
				"stack", string(debug.Stack()))
			if tx == nil {
				outcome = rejectedWithoutID(req, MessageUnexpectedError)
				return
			}
			outcome = s.finish(ctx, tx, StatusRejected, MessageUnexpectedError, nil)
		}
	}()

	created, err := NewTransaction(s.newID(), req)
	if err != nil {
		s.logger.Error("failed to map payment request", "error", err, "merchant_id", req.MerchantID)
		return rejectedWithoutID(req, MessageMappingError)
	}

	if err := s.repository.Create(ctx, created); err != nil {
		s.logger.Error("failed to create transaction", "error", err, "merchant_id", req.MerchantID)
		return rejectedWithoutID(req, MessageUnexpectedError)
	}
	tx = created

	lg := s.logger.With("transaction_id", tx.ID, "merchant_id", tx.MerchantID)

	if violations := s.validator.Validate(req); len(violations) > 0 {
		lg.Info("payment request rejected by validation", "violations", len(violations))
		return s.finish(ctx, tx, StatusRejected, strings.Join(violations, "\n"), nil)
	}

	resp, err := s.bank.Authorize(ctx, NewAuthorizationRequest(req, tx.Amount))

	switch bank.Classify(resp, err) {
	case bank.Authorized:
		lg.Info("payment authorized")
		code := resp.AuthorizationCode
		return s.finish(ctx, tx, StatusAuthorized, "", &code)
	case bank.NotAuthorized:
		lg.Info("payment declined by bank")
		return s.finish(ctx, tx, StatusDeclined, MessageDeclined, nil)
	case bank.TransportFailure:
		lg.Error("bank call failed", "error", err)
		return s.finish(ctx, tx, StatusRejected, MessageNetworkError, nil)
	case bank.MalformedResponse:
		lg.Error("bank returned a malformed response", "error", err)
		return s.finish(ctx, tx, StatusRejected, MessageInvalidResponse, nil)
	default:
		lg.Error("unexpected bank client failure", "error", err)
		return s.finish(ctx, tx, StatusRejected, MessageUnexpectedError, nil)
	}
}

// finish applies the terminal transition. A failed persist is logged and the
// outcome is still returned.
func (s *Service) finish(ctx context.Context, tx *transaction.Transaction, status Status, message string, authorizationCode *string) *PaymentOutcome {
	current := Status(tx.Status)
	if !current.CanTransitionTo(status) {
		s.logger.Error("refusing invalid status transition",
			"transaction_id", tx.ID,
			"from", current,
			"to", status)
		return ToOutcome(tx, message)
	}

	tx.Status = string(status)
	tx.AuthorizationCode = authorizationCode

	persistCtx := context.WithoutCancel(ctx)
	if err := s.repository.Update(persistCtx, tx); err != nil {
		s.logger.Error("failed to persist terminal status",
			"error", err,
			"transaction_id", tx.ID,
			"status", status)
	}

	if s.publisher != nil {
		event := events.NewPaymentProcessedEvent(tx.ID, tx.MerchantID, tx.Status, tx.Currency, tx.Amount, message)
		if err := s.publisher.Publish(persistCtx, event); err != nil {
			s.logger.Warn("failed to publish payment processed event", "error", err, "transaction_id", tx.ID)
		}
	}

	return ToOutcome(tx, message)
}

func (s *Service) GetPayment(ctx context.Context, id string) (*PaymentOutcome, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.ErrPaymentNotFound
	}

	tx, err := s.repository.FindByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, ErrTransactionNotFound) {
			return nil, errors.ErrPaymentNotFound
		}
		s.logger.Error("failed to load transaction", "error", err, "transaction_id", id)
		return nil, errors.NewInternalError("failed to load payment", err)
	}

	// another merchant's payment is reported as missing
	if merchantID := errors.MerchantIDFromContext(ctx); merchantID != "" && merchantID != tx.MerchantID {
		return nil, errors.ErrPaymentNotFound
	}

	return ToOutcome(tx, ""), nil
}

// Fingerprint hashes the request body so that a key reused for a different
// payment can be detected.
func Fingerprint(req *PaymentRequest) string {
	canonical := fmt.Sprintf("%s|%s|%d|%d|%s|%s|%d",
		req.CardNumber,
		req.MerchantID,
		req.ExpiryMonth,
		req.ExpiryYear,
		req.Currency,
		req.Amount.String(),
		req.CVV)
	sum := blake2b.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
