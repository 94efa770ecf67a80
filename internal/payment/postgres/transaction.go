package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/frahmantamala/payment-gateway/internal/core/datamodel/transaction"
	paymentpkg "github.com/frahmantamala/payment-gateway/internal/payment"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{
		db: db,
	}
}

// AutoMigrate creates the transactions table for the SQLite dev profile.
// PostgreSQL deployments use the goose migrations instead.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&transaction.Transaction{})
}

func (r *TransactionRepository) Create(ctx context.Context, tx *transaction.Transaction) error {
	return r.db.WithContext(ctx).Create(tx).Error
}

// Update writes the terminal status. The WHERE on status makes the
// Requested -> terminal transition happen at most once.
func (r *TransactionRepository) Update(ctx context.Context, tx *transaction.Transaction) error {
	now := time.Now().UTC()

	result := r.db.WithContext(ctx).
		Model(&transaction.Transaction{}).
		Where("id = ? AND status = ?", tx.ID, transaction.StatusRequested).
		Updates(map[string]interface{}{
			"status":             tx.Status,
			"authorization_code": tx.AuthorizationCode,
			"updated_at":         now,
		})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&transaction.Transaction{}).Where("id = ?", tx.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return paymentpkg.ErrTransactionNotFound
		}
		return paymentpkg.ErrInvalidTransition
	}

	tx.UpdatedAt = now
	return nil
}

func (r *TransactionRepository) FindByID(ctx context.Context, id string) (*transaction.Transaction, error) {
	var tx transaction.Transaction
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&tx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, paymentpkg.ErrTransactionNotFound
		}
		return nil, err
	}
	return &tx, nil
}
