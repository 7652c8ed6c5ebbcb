// Package postgres provides PostgreSQL implementations of the durable repositories:
// payment records and the invoice payment link.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/pos-backoffice/wirepos/internal/domain/record"
	"github.com/pos-backoffice/wirepos/internal/domain/shared"
	"github.com/pos-backoffice/wirepos/internal/platform/persistence"
	"github.com/shopspring/decimal"
)

// PaymentRecordRepository implements the record.Repository interface for PostgreSQL
type PaymentRecordRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewPaymentRecordRepository creates a new PostgreSQL payment record repository
func NewPaymentRecordRepository(logger *slog.Logger, db *persistence.PostgresDB) record.Repository {
	return &PaymentRecordRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx returns a repository bound to tx
func (r *PaymentRecordRepository) WithTx(tx pgx.Tx) record.Repository {
	return &PaymentRecordRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Upsert keeps one row per transaction id. A repeated link refreshes the row
// but keeps its original id, which is written back into rec.
func (r *PaymentRecordRepository) Upsert(ctx context.Context, rec *record.PaymentRecord) error {
	query := `
		INSERT INTO payment_records (
			id, transaction_id, device_id, frontend_device_id, kind, amount, invoice_ref, invoice_id,
			gateway_request_id, gateway_invoice_id, state, response_code, auth_code, card_last4,
			card_brand, reference, lot_number, result_payload, error_message, attempts, environment,
			created_at, completed_at, linked_at
		)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
		ON CONFLICT (transaction_id) DO UPDATE SET
			invoice_id = EXCLUDED.invoice_id,
			gateway_invoice_id = EXCLUDED.gateway_invoice_id,
			state = EXCLUDED.state,
			response_code = EXCLUDED.response_code,
			auth_code = EXCLUDED.auth_code,
			card_last4 = EXCLUDED.card_last4,
			card_brand = EXCLUDED.card_brand,
			reference = EXCLUDED.reference,
			lot_number = EXCLUDED.lot_number,
			result_payload = EXCLUDED.result_payload,
			error_message = EXCLUDED.error_message,
			attempts = EXCLUDED.attempts,
			completed_at = EXCLUDED.completed_at,
			linked_at = EXCLUDED.linked_at
		RETURNING id
	`

	err := r.querier.QueryRow(ctx, query,
		rec.ID,
		rec.TransactionID,
		rec.DeviceID,
		rec.FrontendDeviceID,
		rec.Kind,
		rec.Amount.String(),
		rec.InvoiceRef,
		rec.InvoiceID,
		rec.GatewayRequestID,
		rec.GatewayInvoiceID,
		string(rec.State),
		rec.ResponseCode,
		rec.AuthCode,
		rec.CardLast4,
		rec.CardBrand,
		rec.Reference,
		rec.LotNumber,
		rec.ResultPayload,
		rec.ErrorMessage,
		rec.Attempts,
		rec.Environment,
		rec.CreatedAt,
		rec.CompletedAt,
		rec.LinkedAt,
	).Scan(&rec.ID)
	if err != nil {
		r.logger.Error("Failed to upsert payment record", "transaction_id", rec.TransactionID, "error", err)
		return fmt.Errorf("failed to upsert payment record: %w", err)
	}

	return nil
}

// GetByTransactionID retrieves the record written for a transaction
func (r *PaymentRecordRepository) GetByTransactionID(ctx context.Context, transactionID string) (*record.PaymentRecord, error) {
	query := `
		SELECT id, transaction_id, device_id, frontend_device_id, kind, amount::text, invoice_ref, invoice_id,
			gateway_request_id, gateway_invoice_id, state, response_code, auth_code, card_last4,
			card_brand, reference, lot_number, result_payload, error_message, attempts, environment,
			created_at, completed_at, linked_at
		FROM payment_records
		WHERE transaction_id = $1
	`

	var (
		rec    record.PaymentRecord
		amount string
		state  string
	)
	err := r.querier.QueryRow(ctx, query, transactionID).Scan(
		&rec.ID,
		&rec.TransactionID,
		&rec.DeviceID,
		&rec.FrontendDeviceID,
		&rec.Kind,
		&amount,
		&rec.InvoiceRef,
		&rec.InvoiceID,
		&rec.GatewayRequestID,
		&rec.GatewayInvoiceID,
		&state,
		&rec.ResponseCode,
		&rec.AuthCode,
		&rec.CardLast4,
		&rec.CardBrand,
		&rec.Reference,
		&rec.LotNumber,
		&rec.ResultPayload,
		&rec.ErrorMessage,
		&rec.Attempts,
		&rec.Environment,
		&rec.CreatedAt,
		&rec.CompletedAt,
		&rec.LinkedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, record.ErrRecordNotFound{TransactionID: transactionID}
		}
		r.logger.Error("Failed to get payment record", "transaction_id", transactionID, "error", err)
		return nil, fmt.Errorf("failed to get payment record: %w", err)
	}

	rec.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid stored amount %q: %w", amount, err)
	}
	rec.State = shared.TransactionState(state)

	return &rec, nil
}
