package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypePaymentProcessed = "payment.processed"
)

// PaymentProcessedEvent is raised once a transaction reaches a terminal status.
type PaymentProcessedEvent struct {
	BaseEvent
	TransactionID string `json:"transaction_id"`
	MerchantID    string `json:"merchant_id"`
	Status        string `json:"status"`
	Currency      string `json:"currency"`
	Amount        int64  `json:"amount"`
	Reason        string `json:"reason,omitempty"`
}

func NewPaymentProcessedEvent(transactionID, merchantID, status, currency string, amount int64, reason string) *PaymentProcessedEvent {
	return &PaymentProcessedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentProcessed,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"transaction_id": transactionID,
				"merchant_id":    merchantID,
				"status":         status,
				"currency":       currency,
				"amount":         amount,
				"reason":         reason,
			},
		},
		TransactionID: transactionID,
		MerchantID:    merchantID,
		Status:        status,
		Currency:      currency,
		Amount:        amount,
		Reason:        reason,
	}
}
