package payment

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Decoded amounts outside these bounds are refused before any arithmetic.
const (
	maxAmountExponent = 18
	maxAmountDigits   = 30
)

// PaymentRequest is the merchant's submission. Amount is in major units.
type PaymentRequest struct {
	CardNumber  string          `json:"card_number"`
	MerchantID  string          `json:"merchant_id"`
	ExpiryMonth int             `json:"expiry_month"`
	ExpiryYear  int             `json:"expiry_year"`
	Currency    string          `json:"currency"`
	Amount      decimal.Decimal `json:"amount"`
	CVV         int             `json:"cvv"`
}

func (r *PaymentRequest) UnmarshalJSON(data []byte) error {
	type plain PaymentRequest
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	if err := checkAmountBounds(decoded.Amount); err != nil {
		return err
	}
	*r = PaymentRequest(decoded)
	return nil
}

func checkAmountBounds(amount decimal.Decimal) error {
	exp := amount.Exponent()
	if exp > maxAmountExponent || exp < -maxAmountExponent || amount.NumDigits() > maxAmountDigits {
		return fmt.Errorf("%w: exponent %d with %d digits", ErrAmountOutOfRange, exp, amount.NumDigits())
	}
	return nil
}

// PaymentOutcome is the normalized result of a submission or lookup.
type PaymentOutcome struct {
	ID                 string  `json:"id,omitempty"`
	Status             string  `json:"status"`
	Message            *string `json:"message"`
	CardNumberLastFour string  `json:"card_number_last_four"`
	ExpiryMonth        int     `json:"expiry_month"`
	ExpiryYear         int     `json:"expiry_year"`
	Currency           string  `json:"currency"`
	Amount             Amount  `json:"amount"`
}

func (o *PaymentOutcome) Authorized() bool {
	return o.Status == string(StatusAuthorized)
}

// Amount renders a decimal as a bare JSON number.
type Amount struct {
	decimal.Decimal
}

func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	return a.Decimal.UnmarshalJSON(data)
}

// SubmitResult wraps an outcome with whether it was replayed from an earlier
// submission under the same idempotency key.
type SubmitResult struct {
	Outcome  *PaymentOutcome
	Replayed bool
}
