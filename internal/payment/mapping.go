package payment

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/frahmantamala/payment-gateway/internal/bank"
	"github.com/frahmantamala/payment-gateway/internal/core/datamodel/transaction"
)

var (
	hundred  = decimal.NewFromInt(100)
	maxMinor = decimal.NewFromInt(math.MaxInt64)
	minMinor = decimal.NewFromInt(math.MinInt64)
)

// ToMinorUnits multiplies by 100 and truncates toward zero.
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	minor := amount.Mul(hundred).Truncate(0)
	if minor.GreaterThan(maxMinor) || minor.LessThan(minMinor) {
		return 0, fmt.Errorf("%w: %s", ErrAmountOutOfRange, amount.String())
	}
	return minor.IntPart(), nil
}

func ToMajorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// LastFourDigits returns the trailing four digits, or "" when the card number
// is too short or does not end in digits.
func LastFourDigits(cardNumber string) string {
	if len(cardNumber) < 4 {
		return ""
	}
	last := cardNumber[len(cardNumber)-4:]
	if !isDigits(last) {
		return ""
	}
	return last
}

// ExpiryDate formats the bank's MM/YYYY expiry.
func ExpiryDate(month, year int) string {
	return fmt.Sprintf("%02d/%d", month, year)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// NewTransaction derives the persisted record from a request.
func NewTransaction(id string, req *PaymentRequest) (*transaction.Transaction, error) {
	amount, err := ToMinorUnits(req.Amount)
	if err != nil {
		return nil, err
	}

	return &transaction.Transaction{
		ID:           id,
		Amount:       amount,
		Currency:     req.Currency,
		MerchantID:   req.MerchantID,
		CardLastFour: LastFourDigits(req.CardNumber),
		ExpiryMonth:  req.ExpiryMonth,
		ExpiryYear:   req.ExpiryYear,
		Status:       string(StatusRequested),
	}, nil
}

func NewAuthorizationRequest(req *PaymentRequest, minorAmount int64) *bank.AuthorizationRequest {
	return &bank.AuthorizationRequest{
		CardNumber: req.CardNumber,
		ExpiryDate: ExpiryDate(req.ExpiryMonth, req.ExpiryYear),
		Currency:   req.Currency,
		Amount:     minorAmount,
		CVV:        fmt.Sprintf("%d", req.CVV),
	}
}

func ToOutcome(tx *transaction.Transaction, message string) *PaymentOutcome {
	return &PaymentOutcome{
		ID:                 tx.ID,
		Status:             tx.Status,
		Message:            optionalMessage(message),
		CardNumberLastFour: tx.CardLastFour,
		ExpiryMonth:        tx.ExpiryMonth,
		ExpiryYear:         tx.ExpiryYear,
		Currency:           tx.Currency,
		Amount:             NewAmount(ToMajorUnits(tx.Amount)),
	}
}

// rejectedWithoutID builds the outcome for failures that happen before a
// transaction exists.
func rejectedWithoutID(req *PaymentRequest, message string) *PaymentOutcome {
	return &PaymentOutcome{
		Status:             string(StatusRejected),
		Message:            optionalMessage(message),
		CardNumberLastFour: LastFourDigits(req.CardNumber),
		ExpiryMonth:        req.ExpiryMonth,
		ExpiryYear:         req.ExpiryYear,
		Currency:           req.Currency,
		Amount:             NewAmount(req.Amount),
	}
}

func optionalMessage(message string) *string {
	if message == "" {
		return nil
	}
	return &message
}
