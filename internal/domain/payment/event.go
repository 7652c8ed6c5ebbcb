package payment

import (
	"time"

	"github.com/pos-backoffice/wirepos/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// FinalizedEvent is published once a transaction reaches a terminal state
type FinalizedEvent struct {
	TransactionID    string                  `json:"transaction_id"`
	State            shared.TransactionState `json:"state"`
	Kind             string                  `json:"kind"`
	DeviceID         string                  `json:"device_id"`
	Amount           decimal.Decimal         `json:"amount"`
	InvoiceRef       string                  `json:"invoice_ref"`
	GatewayRequestID string                  `json:"gateway_request_id"`
	Result           *Result                 `json:"result,omitempty"`
	Attempts         int                     `json:"attempts"`
	ErrorMessage     string                  `json:"error_message,omitempty"`
	Environment      string                  `json:"environment,omitempty"`
	CompletedAt      *time.Time              `json:"completed_at,omitempty"`
	Timestamp        time.Time               `json:"timestamp"`
}

// NewFinalizedEvent builds the event for a terminal transaction
func NewFinalizedEvent(tx *Transaction, now time.Time) *FinalizedEvent {
	return &FinalizedEvent{
		TransactionID:    tx.ID,
		State:            tx.State,
		Kind:             tx.Kind,
		DeviceID:         tx.DeviceID,
		Amount:           tx.Amount,
		InvoiceRef:       tx.InvoiceRef,
		GatewayRequestID: tx.GatewayRequestID,
		Result:           tx.Result.Clone(),
		Attempts:         tx.Attempts,
		ErrorMessage:     tx.ErrorMessage,
		Environment:      tx.Environment,
		CompletedAt:      tx.CompletedAt,
		Timestamp:        now,
	}
}
