package payment

import (
	"time"

	"github.com/shopspring/decimal"

	errors "github.com/frahmantamala/payment-gateway/internal"
	"github.com/frahmantamala/payment-gateway/internal/core/common/validation"
)

var AllowedCurrencies = []string{"GBP", "USD", "EUR"}

// RequestValidator checks a payment request against the card, expiry,
// currency, amount and CVV rules. The clock decides what "current" means.
type RequestValidator struct {
	now func() time.Time
}

func NewRequestValidator(now func() time.Time) *RequestValidator {
	if now == nil {
		now = time.Now
	}
	return &RequestValidator{now: now}
}

// Validate returns every violation message in rule order; empty means valid.
func (v *RequestValidator) Validate(req *PaymentRequest) []string {
	return errors.ValidationErrors{Errors: v.Violations(req)}.Messages()
}

func (v *RequestValidator) Violations(req *PaymentRequest) []errors.ValidationError {
	now := v.now()
	currentYear, currentMonth := now.Year(), int(now.Month())

	validator := validation.NewValidator()

	validator.Field("card_number", req.CardNumber).
		Required("Card number is required.", errors.ErrCodeInvalidCardNumber).
		Must(func(value interface{}) bool {
			return isDigits(value.(string))
		}, "Card number must be numeric.", errors.ErrCodeInvalidCardNumber).
		Must(func(value interface{}) bool {
			n := len(value.(string))
			return n >= 14 && n <= 19
		}, "Card number must be between 14 and 19 digits.", errors.ErrCodeInvalidCardNumber)

	validator.Field("expiry_month", req.ExpiryMonth).
		Required("Expiry month is required.", errors.ErrCodeInvalidExpiry).
		GreaterThan(0, "Expiry month must be greater than 0.", errors.ErrCodeInvalidExpiry).
		LessThan(13, "Expiry month must be less than 13.", errors.ErrCodeInvalidExpiry)

	validator.Field("expiry_year", req.ExpiryYear).
		Required("Expiry year is required.", errors.ErrCodeInvalidExpiry).
		Must(func(value interface{}) bool {
			return value.(int) >= currentYear
		}, "Expiry year must be greater than or equal to the current year.", errors.ErrCodeInvalidExpiry).
		Must(func(value interface{}) bool {
			return notExpired(value.(int), req.ExpiryMonth, currentYear, currentMonth)
		}, "Expiry date must be a future date.", errors.ErrCodeInvalidExpiry)

	validator.Field("currency", req.Currency).
		Required("Currency is required.", errors.ErrCodeInvalidCurrency).
		OneOf(AllowedCurrencies, "Invalid currency. Allowed values are GBP, USD, EUR.", errors.ErrCodeInvalidCurrency)

	validator.Field("amount", req.Amount).
		Required("Amount is required.", errors.ErrCodeInvalidAmount).
		Must(func(value interface{}) bool {
			return value.(decimal.Decimal).IsPositive()
		}, "Amount must be greater than 0.", errors.ErrCodeInvalidAmount)

	validator.Field("cvv", req.CVV).
		IntBetween(100, 9999, "CVV must be between 100 and 9999.", errors.ErrCodeInvalidCVV)

	return validator.Errors()
}

// notExpired accepts the current month: a card is usable through the end of
// its expiry month.
func notExpired(year, month, currentYear, currentMonth int) bool {
	if year == 0 || month < 1 || month > 12 {
		return false
	}
	if year != currentYear {
		return year > currentYear
	}
	return month >= currentMonth
}
