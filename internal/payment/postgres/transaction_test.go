package postgres_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/frahmantamala/payment-gateway/internal/core/datamodel/transaction"
	"github.com/frahmantamala/payment-gateway/internal/payment"
	"github.com/frahmantamala/payment-gateway/internal/payment/postgres"
)

func TestTransactionRepository(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "TransactionRepository Suite")
}

var _ = Describe("Transaction Repository", func() {
	var (
		db   *gorm.DB
		repo *postgres.TransactionRepository
		ctx  context.Context
	)

	newTransaction := func() *transaction.Transaction {
		return &transaction.Transaction{
			ID:           uuid.NewString(),
			Amount:       10075,
			Currency:     "GBP",
			MerchantID:   "merchant-1",
			CardLastFour: "8877",
			ExpiryMonth:  4,
			ExpiryYear:   2030,
			Status:       transaction.StatusRequested,
		}
	}

	BeforeEach(func() {
		var err error
		ctx = context.Background()

		// Use SQLite in-memory database for testing
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(postgres.AutoMigrate(db)).To(Succeed())

		repo = postgres.NewTransactionRepository(db)
	})

	Describe("Create", func() {
		It("stores a requested transaction", func() {
			tx := newTransaction()
			Expect(repo.Create(ctx, tx)).To(Succeed())
			Expect(tx.CreatedAt).NotTo(BeZero())

			found, err := repo.FindByID(ctx, tx.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(found.Status).To(Equal(transaction.StatusRequested))
			Expect(found.Amount).To(Equal(int64(10075)))
			Expect(found.CardLastFour).To(Equal("8877"))
			Expect(found.AuthorizationCode).To(BeNil())
		})

		It("refuses a duplicate id", func() {
			tx := newTransaction()
			Expect(repo.Create(ctx, tx)).To(Succeed())

			dup := newTransaction()
			dup.ID = tx.ID
			Expect(repo.Create(ctx, dup)).NotTo(Succeed())
		})
	})

	Describe("Update", func() {
		It("moves a requested transaction to its terminal status", func() {
			tx := newTransaction()
			Expect(repo.Create(ctx, tx)).To(Succeed())

			code := "AUTH-1"
			tx.Status = transaction.StatusAuthorized
			tx.AuthorizationCode = &code
			Expect(repo.Update(ctx, tx)).To(Succeed())

			found, err := repo.FindByID(ctx, tx.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(found.Status).To(Equal(transaction.StatusAuthorized))
			Expect(found.AuthorizationCode).NotTo(BeNil())
			Expect(*found.AuthorizationCode).To(Equal("AUTH-1"))
		})

		It("never leaves a terminal status", func() {
			tx := newTransaction()
			Expect(repo.Create(ctx, tx)).To(Succeed())

			tx.Status = transaction.StatusDeclined
			Expect(repo.Update(ctx, tx)).To(Succeed())

			tx.Status = transaction.StatusAuthorized
			Expect(repo.Update(ctx, tx)).To(MatchError(payment.ErrInvalidTransition))

			found, err := repo.FindByID(ctx, tx.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(found.Status).To(Equal(transaction.StatusDeclined))
		})

		It("reports a missing transaction", func() {
			tx := newTransaction()
			tx.Status = transaction.StatusRejected
			Expect(repo.Update(ctx, tx)).To(MatchError(payment.ErrTransactionNotFound))
		})
	})

	Describe("FindByID", func() {
		It("returns ErrTransactionNotFound for an unknown id", func() {
			_, err := repo.FindByID(ctx, uuid.NewString())
			Expect(err).To(MatchError(payment.ErrTransactionNotFound))
		})
	})
})
