package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/payment-gateway/internal/core/datamodel/transaction"
	"github.com/frahmantamala/payment-gateway/internal/payment"
	"github.com/frahmantamala/payment-gateway/internal/payment/postgres"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample payments",
	Long:  `Seed the database with one payment per terminal status for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, sqlxDB, err := initDB(ctx, cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer sqlxDB.Close()

		repo := postgres.NewTransactionRepository(db)
		expiryYear := time.Now().Year() + 2
		authCode := "SEED-AUTH-0001"

		samples := []struct {
			Request payment.PaymentRequest
			Status  payment.Status
			Code    *string
		}{
			{
				Request: payment.PaymentRequest{CardNumber: "2222405343248877", MerchantID: "merchant-demo", ExpiryMonth: 4, ExpiryYear: expiryYear, Currency: "GBP", Amount: decimal.RequireFromString("100.00"), CVV: 123},
				Status:  payment.StatusAuthorized,
				Code:    &authCode,
			},
			{
				Request: payment.PaymentRequest{CardNumber: "2222405343248112", MerchantID: "merchant-demo", ExpiryMonth: 1, ExpiryYear: expiryYear, Currency: "USD", Amount: decimal.RequireFromString("60.00"), CVV: 456},
				Status:  payment.StatusDeclined,
			},
			{
				Request: payment.PaymentRequest{CardNumber: "4000000000000000", MerchantID: "merchant-demo", ExpiryMonth: 12, ExpiryYear: expiryYear, Currency: "EUR", Amount: decimal.RequireFromString("0.01"), CVV: 789},
				Status:  payment.StatusRejected,
			},
		}

		for _, s := range samples {
			tx, err := payment.NewTransaction(uuid.NewString(), &s.Request)
			if err != nil {
				log.Fatalf("failed to map sample payment: %v", err)
			}
			if err := repo.Create(ctx, tx); err != nil {
				log.Fatalf("failed to insert sample payment: %v", err)
			}

			tx.Status = string(s.Status)
			tx.AuthorizationCode = s.Code
			if err := repo.Update(ctx, tx); err != nil {
				log.Fatalf("failed to finalize sample payment %s: %v", tx.ID, err)
			}
			fmt.Printf("Seeded %s payment: %s\n", s.Status, tx.ID)
		}

		var total int64
		if err := db.WithContext(ctx).Model(&transaction.Transaction{}).Count(&total).Error; err != nil {
			log.Fatalf("failed to count payments: %v", err)
		}
		fmt.Printf("Sample payments seeded successfully (%d transactions stored)\n", total)
	},
}
