package payment

import (
	"errors"

	"github.com/frahmantamala/payment-gateway/internal/core/datamodel/transaction"
)

// Status is the lifecycle state of a transaction.
type Status string

const (
	StatusRequested  Status = transaction.StatusRequested
	StatusRejected   Status = transaction.StatusRejected
	StatusDeclined   Status = transaction.StatusDeclined
	StatusAuthorized Status = transaction.StatusAuthorized
)

// Outcome messages returned to the merchant.
const (
	MessageDeclined        = "Payment was declined"
	MessageNetworkError    = "Network error occurred while processing payment."
	MessageInvalidResponse = "Invalid response format from payment gateway."
	MessageMappingError    = "Mapping error occurred."
	MessageUnexpectedError = "An unexpected error occurred."
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidTransition   = errors.New("invalid transaction status transition")
	ErrAmountOutOfRange    = errors.New("amount cannot be represented in minor units")
)

func (s Status) IsTerminal() bool {
	switch s {
	case StatusRejected, StatusDeclined, StatusAuthorized:
		return true
	}
	return false
}

// CanTransitionTo allows only Requested -> terminal.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusRequested && next.IsTerminal()
}

func (s Status) String() string {
	return string(s)
}
