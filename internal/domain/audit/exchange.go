package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pos-backoffice/wirepos/internal/domain/payment"
	"github.com/pos-backoffice/wirepos/internal/domain/shared"
)

// Exchange is one raw payload exchanged with the terminal gateway, kept for audit
type Exchange struct {
	ID               string                   `json:"id" bson:"_id"`
	TransactionID    string                   `json:"transaction_id" bson:"transaction_id"`
	Operation        shared.ExchangeOperation `json:"operation" bson:"operation"`
	Attempt          int                      `json:"attempt" bson:"attempt"`
	DeviceID         string                   `json:"device_id" bson:"device_id"`
	GatewayRequestID string                   `json:"gateway_request_id,omitempty" bson:"gateway_request_id,omitempty"`
	Payload          string                   `json:"payload" bson:"payload"`
	Error            string                   `json:"error,omitempty" bson:"error,omitempty"`
	RecordedAt       time.Time                `json:"recorded_at" bson:"recorded_at"`
}

// Repository stores the gateway audit trail
type Repository interface {
	Record(ctx context.Context, exchange *Exchange) error
	ListByTransactionID(ctx context.Context, transactionID string) ([]*Exchange, error)
}

// NewExchange captures a payload exchanged for the given transaction
func NewExchange(tx *payment.Transaction, operation shared.ExchangeOperation, payload, errMessage string, now time.Time) *Exchange {
	return &Exchange{
		ID:               uuid.NewString(),
		TransactionID:    tx.ID,
		Operation:        operation,
		Attempt:          tx.Attempts,
		DeviceID:         tx.DeviceID,
		GatewayRequestID: tx.GatewayRequestID,
		Payload:          payload,
		Error:            errMessage,
		RecordedAt:       now,
	}
}
