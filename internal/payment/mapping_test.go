package payment_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/frahmantamala/payment-gateway/internal/core/datamodel/transaction"
	"github.com/frahmantamala/payment-gateway/internal/payment"
)

var _ = Describe("Mapping", func() {
	DescribeTable("ToMinorUnits truncates toward zero",
		func(major string, minor int64) {
			got, err := payment.ToMinorUnits(decimal.RequireFromString(major))
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(minor))
		},
		Entry("100.75", "100.75", int64(10075)),
		Entry("0.01", "0.01", int64(1)),
		Entry("-100.75", "-100.75", int64(-10075)),
		Entry("123.999", "123.999", int64(12399)),
		Entry("-0.019", "-0.019", int64(-1)),
	)

	It("refuses amounts beyond int64 minor units", func() {
		_, err := payment.ToMinorUnits(decimal.RequireFromString("1e30"))
		Expect(err).To(MatchError(payment.ErrAmountOutOfRange))
	})

	DescribeTable("refuses amounts with an unbounded exponent at decode",
		func(amount string) {
			var req payment.PaymentRequest
			err := json.Unmarshal([]byte(`{"amount": `+amount+`}`), &req)
			Expect(err).To(MatchError(payment.ErrAmountOutOfRange))
		},
		Entry("huge exponent", "1e50000000"),
		Entry("tiny exponent", "1e-50000000"),
		Entry("too many digits", "1234567890123456789012345678901"),
	)

	It("decodes ordinary amounts unchanged", func() {
		var req payment.PaymentRequest
		Expect(json.Unmarshal([]byte(`{"amount": 100.75, "currency": "GBP"}`), &req)).To(Succeed())
		Expect(req.Amount.String()).To(Equal("100.75"))
		Expect(req.Currency).To(Equal("GBP"))
	})

	It("converts minor units back to major units", func() {
		Expect(payment.ToMajorUnits(10075).Equal(decimal.RequireFromString("100.75"))).To(BeTrue())
		Expect(payment.ToMajorUnits(-1).Equal(decimal.RequireFromString("-0.01"))).To(BeTrue())
	})

	DescribeTable("LastFourDigits",
		func(card, want string) {
			Expect(payment.LastFourDigits(card)).To(Equal(want))
		},
		Entry("ordinary card", "2222405343248877", "8877"),
		Entry("zeros", "4000000000000000", "0000"),
		Entry("too short", "123", ""),
		Entry("non-digit tail", "22224053432488ab", ""),
	)

	It("formats the bank expiry as MM/YYYY", func() {
		Expect(payment.ExpiryDate(4, 2025)).To(Equal("04/2025"))
		Expect(payment.ExpiryDate(12, 2030)).To(Equal("12/2030"))
	})

	It("builds the bank request from the submission", func() {
		req := &payment.PaymentRequest{
			CardNumber:  "2222405343248877",
			ExpiryMonth: 4,
			ExpiryYear:  2025,
			Currency:    "GBP",
			Amount:      decimal.RequireFromString("100.75"),
			CVV:         123,
		}

		wire := payment.NewAuthorizationRequest(req, 10075)
		Expect(wire.CardNumber).To(Equal("2222405343248877"))
		Expect(wire.ExpiryDate).To(Equal("04/2025"))
		Expect(wire.Currency).To(Equal("GBP"))
		Expect(wire.Amount).To(Equal(int64(10075)))
		Expect(wire.CVV).To(Equal("123"))
	})

	It("keeps only the last four card digits on the transaction", func() {
		tx, err := payment.NewTransaction("id-1", &payment.PaymentRequest{
			CardNumber:  "2222405343248877",
			MerchantID:  "merchant-1",
			ExpiryMonth: 4,
			ExpiryYear:  2025,
			Currency:    "USD",
			Amount:      decimal.RequireFromString("0.01"),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(tx.CardLastFour).To(Equal("8877"))
		Expect(tx.Amount).To(Equal(int64(1)))
		Expect(tx.Status).To(Equal(transaction.StatusRequested))
	})

	Describe("ToOutcome", func() {
		var tx *transaction.Transaction

		BeforeEach(func() {
			tx = &transaction.Transaction{
				ID:           "id-1",
				Amount:       10075,
				Currency:     "EUR",
				CardLastFour: "8877",
				ExpiryMonth:  4,
				ExpiryYear:   2025,
				Status:       transaction.StatusDeclined,
			}
		})

		It("renders the amount as a bare number and a null message", func() {
			body, err := json.Marshal(payment.ToOutcome(tx, ""))
			Expect(err).NotTo(HaveOccurred())
			Expect(body).To(MatchJSON(`{
				"id": "id-1",
				"status": "Declined",
				"message": null,
				"card_number_last_four": "8877",
				"expiry_month": 4,
				"expiry_year": 2025,
				"currency": "EUR",
				"amount": 100.75
			}`))
		})

		It("carries the message when present", func() {
			outcome := payment.ToOutcome(tx, payment.MessageDeclined)
			Expect(outcome.Message).NotTo(BeNil())
			Expect(*outcome.Message).To(Equal("Payment was declined"))
		})
	})

	It("allows only Requested to move to a terminal status", func() {
		Expect(payment.StatusRequested.CanTransitionTo(payment.StatusAuthorized)).To(BeTrue())
		Expect(payment.StatusRequested.CanTransitionTo(payment.StatusRequested)).To(BeFalse())
		for _, terminal := range []payment.Status{payment.StatusAuthorized, payment.StatusDeclined, payment.StatusRejected} {
			Expect(terminal.IsTerminal()).To(BeTrue())
			Expect(terminal.CanTransitionTo(payment.StatusRejected)).To(BeFalse())
		}
	})
})
