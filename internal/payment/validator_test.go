package payment_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/frahmantamala/payment-gateway/internal/payment"
)

var _ = Describe("RequestValidator", func() {
	var (
		validator *payment.RequestValidator
		req       *payment.PaymentRequest
	)

	BeforeEach(func() {
		clock := func() time.Time { return time.Date(2024, time.June, 15, 10, 0, 0, 0, time.UTC) }
		validator = payment.NewRequestValidator(clock)
		req = &payment.PaymentRequest{
			CardNumber:  "2222405343248877",
			MerchantID:  "merchant-1",
			ExpiryMonth: 4,
			ExpiryYear:  2025,
			Currency:    "GBP",
			Amount:      decimal.RequireFromString("100.75"),
			CVV:         123,
		}
	})

	It("accepts a well formed request", func() {
		Expect(validator.Validate(req)).To(BeEmpty())
	})

	It("reports every violation of an empty request in rule order", func() {
		Expect(validator.Validate(&payment.PaymentRequest{})).To(Equal([]string{
			"Card number is required.",
			"Card number must be numeric.",
			"Card number must be between 14 and 19 digits.",
			"Expiry month is required.",
			"Expiry month must be greater than 0.",
			"Expiry year is required.",
			"Expiry year must be greater than or equal to the current year.",
			"Expiry date must be a future date.",
			"Currency is required.",
			"Invalid currency. Allowed values are GBP, USD, EUR.",
			"Amount is required.",
			"Amount must be greater than 0.",
			"CVV must be between 100 and 9999.",
		}))
	})

	It("tags violations with their field", func() {
		req.Currency = "JPY"
		req.CVV = 12

		violations := validator.Violations(req)
		Expect(violations).To(HaveLen(2))
		Expect(violations[0].Field).To(Equal("currency"))
		Expect(violations[1].Field).To(Equal("cvv"))
	})

	Describe("card number", func() {
		It("rejects non-digit characters", func() {
			req.CardNumber = "2222-4053-4324-8877"
			Expect(validator.Validate(req)).To(Equal([]string{"Card number must be numeric."}))
		})

		DescribeTable("enforces 14 to 19 digits",
			func(card string, valid bool) {
				req.CardNumber = card
				if valid {
					Expect(validator.Validate(req)).To(BeEmpty())
				} else {
					Expect(validator.Validate(req)).To(Equal([]string{"Card number must be between 14 and 19 digits."}))
				}
			},
			Entry("13 digits", "1234567890123", false),
			Entry("14 digits", "12345678901234", true),
			Entry("19 digits", "1234567890123456789", true),
			Entry("20 digits", "12345678901234567890", false),
		)
	})

	Describe("expiry", func() {
		It("accepts the current month", func() {
			req.ExpiryYear = 2024
			req.ExpiryMonth = 6
			Expect(validator.Validate(req)).To(BeEmpty())
		})

		It("rejects an earlier month of the current year", func() {
			req.ExpiryYear = 2024
			req.ExpiryMonth = 5
			Expect(validator.Validate(req)).To(Equal([]string{"Expiry date must be a future date."}))
		})

		It("rejects a past year", func() {
			req.ExpiryYear = 2023
			req.ExpiryMonth = 12
			Expect(validator.Validate(req)).To(Equal([]string{
				"Expiry year must be greater than or equal to the current year.",
				"Expiry date must be a future date.",
			}))
		})

		It("rejects month 13", func() {
			req.ExpiryMonth = 13
			Expect(validator.Validate(req)).To(Equal([]string{
				"Expiry month must be less than 13.",
				"Expiry date must be a future date.",
			}))
		})
	})

	It("rejects currencies outside GBP, USD and EUR", func() {
		req.Currency = "JPY"
		Expect(validator.Validate(req)).To(Equal([]string{"Invalid currency. Allowed values are GBP, USD, EUR."}))
	})

	It("rejects a negative amount", func() {
		req.Amount = decimal.RequireFromString("-1.50")
		Expect(validator.Validate(req)).To(Equal([]string{"Amount must be greater than 0."}))
	})

	DescribeTable("bounds the CVV inclusively",
		func(cvv int, valid bool) {
			req.CVV = cvv
			if valid {
				Expect(validator.Validate(req)).To(BeEmpty())
			} else {
				Expect(validator.Validate(req)).To(Equal([]string{"CVV must be between 100 and 9999."}))
			}
		},
		Entry("99", 99, false),
		Entry("100", 100, true),
		Entry("9999", 9999, true),
		Entry("10000", 10000, false),
	)
})
