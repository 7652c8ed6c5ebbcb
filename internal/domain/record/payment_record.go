package record

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pos-backoffice/wirepos/internal/domain/payment"
	"github.com/pos-backoffice/wirepos/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// PaymentRecord is the durable copy of a transaction, written when a cashier
// confirms the invoice it pays for
type PaymentRecord struct {
	ID               uuid.UUID               `json:"id"`
	TransactionID    string                  `json:"transactionId"`
	DeviceID         string                  `json:"deviceId"`
	FrontendDeviceID string                  `json:"frontendDeviceId,omitempty"`
	Kind             string                  `json:"kind"`
	Amount           decimal.Decimal         `json:"amount"`
	InvoiceRef       string                  `json:"invoiceRef"`
	InvoiceID        string                  `json:"invoiceId"`
	GatewayRequestID string                  `json:"gatewayRequestId"`
	GatewayInvoiceID *string                 `json:"gatewayInvoiceId"`
	State            shared.TransactionState `json:"state"`
	ResponseCode     *string                 `json:"responseCode"`
	AuthCode         *string                 `json:"authCode"`
	CardLast4        *string                 `json:"cardLast4"`
	CardBrand        *string                 `json:"cardBrand"`
	Reference        *string                 `json:"reference"`
	LotNumber        *string                 `json:"lotNumber"`
	ResultPayload    *string                 `json:"resultPayload,omitempty"`
	ErrorMessage     *string                 `json:"errorMessage,omitempty"`
	Attempts         int                     `json:"attempts"`
	Environment      string                  `json:"environment,omitempty"`
	CreatedAt        time.Time               `json:"createdAt"`
	CompletedAt      *time.Time              `json:"completedAt"`
	LinkedAt         time.Time               `json:"linkedAt"`
}

// NewPaymentRecord copies a transaction into a record linked to invoiceID.
// Result fields stay nil for transactions that never reached DONE.
func NewPaymentRecord(tx *payment.Transaction, invoiceID string, now time.Time) *PaymentRecord {
	rec := &PaymentRecord{
		ID:               uuid.New(),
		TransactionID:    tx.ID,
		DeviceID:         tx.DeviceID,
		FrontendDeviceID: tx.FrontendDeviceID,
		Kind:             tx.Kind,
		Amount:           tx.Amount,
		InvoiceRef:       tx.InvoiceRef,
		InvoiceID:        invoiceID,
		GatewayRequestID: tx.GatewayRequestID,
		State:            tx.State,
		Attempts:         tx.Attempts,
		Environment:      tx.Environment,
		CreatedAt:        tx.CreatedAt,
		CompletedAt:      tx.CompletedAt,
		LinkedAt:         now,
	}

	if tx.ErrorMessage != "" {
		message := tx.ErrorMessage
		rec.ErrorMessage = &message
	}

	if result := tx.Result.Clone(); result != nil {
		rec.GatewayInvoiceID = result.GatewayInvoiceID
		rec.ResponseCode = result.ResponseCode
		rec.AuthCode = result.AuthCode
		rec.CardLast4 = result.CardLast4
		rec.CardBrand = result.CardBrand
		rec.Reference = result.Reference
		rec.LotNumber = result.LotNumber
		payload := result.String()
		rec.ResultPayload = &payload
	}

	return rec
}

// Repository manages payment record persistence
type Repository interface {
	// Upsert inserts the record or refreshes the existing one for the same transaction id.
	// The stored record is written back into rec.
	Upsert(ctx context.Context, rec *PaymentRecord) error
	GetByTransactionID(ctx context.Context, transactionID string) (*PaymentRecord, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrRecordNotFound indicates missing payment record
type ErrRecordNotFound struct {
	TransactionID string
}

func (e ErrRecordNotFound) Error() string {
	return "payment record not found: " + e.TransactionID
}

// Is implements the errors.Is interface for ErrRecordNotFound
func (e ErrRecordNotFound) Is(target error) bool {
	t, ok := target.(ErrRecordNotFound)
	if !ok {
		return false
	}
	return t.TransactionID == "" || t.TransactionID == e.TransactionID
}
