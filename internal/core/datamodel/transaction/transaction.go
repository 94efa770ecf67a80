package transaction

import (
	"time"
)

const (
	StatusRequested  = "Requested"
	StatusRejected   = "Rejected"
	StatusDeclined   = "Declined"
	StatusAuthorized = "Authorized"
)

// Transaction is the persisted record of one payment submission. Amount is in
// minor units and only the last four card digits are kept.
type Transaction struct {
	ID                string    `gorm:"primaryKey;type:uuid"`
	Amount            int64     `gorm:"column:amount;not null"`
	Currency          string    `gorm:"column:currency;size:3;not null"`
	MerchantID        string    `gorm:"column:merchant_id;not null;index"`
	CardLastFour      string    `gorm:"column:card_last_four;size:4;not null"`
	ExpiryMonth       int       `gorm:"column:expiry_month;not null"`
	ExpiryYear        int       `gorm:"column:expiry_year;not null"`
	Status            string    `gorm:"column:status;not null;default:Requested"`
	AuthorizationCode *string   `gorm:"column:authorization_code"`
	CreatedAt         time.Time `gorm:"column:created_at"`
	UpdatedAt         time.Time `gorm:"column:updated_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}
