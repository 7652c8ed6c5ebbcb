package handler

import (
	"time"

	"github.com/pos-backoffice/wirepos/internal/domain/audit"
	"github.com/pos-backoffice/wirepos/internal/domain/payment"
	"github.com/pos-backoffice/wirepos/internal/domain/record"
	"github.com/pos-backoffice/wirepos/internal/domain/shared"
)

// AddRequestRequest starts a card charge
type AddRequestRequest struct {
	ID        string `json:"id,omitempty"`
	Command   string `json:"command,omitempty"`
	Params    string `json:"params"`
	Timestamp string `json:"timestamp,omitempty"`
}

// AddRequestResponse acknowledges a queued charge
type AddRequestResponse struct {
	Success          bool   `json:"success"`
	TransactionID    string `json:"transactionId"`
	GatewayRequestID string `json:"gatewayRequestId"`
	Status           string `json:"status"`
	PollURL          string `json:"pollUrl"`
}

// StatusResponse describes a finished transaction
type StatusResponse struct {
	Status       string          `json:"status"`
	Result       *payment.Result `json:"result"`
	CreatedAt    time.Time       `json:"createdAt"`
	CompletedAt  *time.Time      `json:"completedAt"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
}

// LegacyCheckResponse is the terminal-facing CheckRequest shape
type LegacyCheckResponse struct {
	ResponseString string          `json:"ResponseString"`
	Status         string          `json:"status,omitempty"`
	Result         *payment.Result `json:"result,omitempty"`
}

// PendingItem is one charge waiting for a terminal
type PendingItem struct {
	ID              string `json:"id"`
	InvoiceNumber   string `json:"invoiceNumber"`
	Amount          string `json:"amount"`
	DeviceID        string `json:"deviceId"`
	TransactionType string `json:"transactionType"`
}

// PendingResponse lists every PENDING transaction
type PendingResponse struct {
	Success bool          `json:"success"`
	Pending []PendingItem `json:"pending"`
}

// CallbackRequest is a push-style terminal response
type CallbackRequest struct {
	ID             string `json:"id" binding:"required"`
	ResponseString string `json:"responseString"`
}

// CallbackResponse acknowledges an applied terminal response
type CallbackResponse struct {
	Success       bool            `json:"success"`
	TransactionID string          `json:"transactionId"`
	Status        string          `json:"status"`
	Result        *payment.Result `json:"result"`
}

// LinkRequest confirms the invoice a transaction pays for
type LinkRequest struct {
	InvoiceID string `json:"invoiceId,omitempty"`
}

// LinkResponse returns the durable payment record
type LinkResponse struct {
	Success bool                  `json:"success"`
	Record  *record.PaymentRecord `json:"record"`
}

// ExchangeResponse is one audited gateway payload
type ExchangeResponse struct {
	Operation        string    `json:"operation"`
	Attempt          int       `json:"attempt"`
	GatewayRequestID string    `json:"gatewayRequestId,omitempty"`
	Payload          string    `json:"payload"`
	Error            string    `json:"error,omitempty"`
	RecordedAt       time.Time `json:"recordedAt"`
}

// ExchangeListResponse is the audit trail of one transaction
type ExchangeListResponse struct {
	Success   bool               `json:"success"`
	Exchanges []ExchangeResponse `json:"exchanges"`
}

func newStatusResponse(tx *payment.Transaction) StatusResponse {
	return StatusResponse{
		Status:       string(tx.State),
		Result:       tx.Result,
		CreatedAt:    tx.CreatedAt,
		CompletedAt:  tx.CompletedAt,
		ErrorMessage: tx.ErrorMessage,
	}
}

func newLegacyCheckResponse(tx *payment.Transaction) LegacyCheckResponse {
	if tx.State == shared.TransactionStatePending {
		return LegacyCheckResponse{
			ResponseString: tx.LegacyResponseString(),
			Status:         string(tx.State),
		}
	}
	return LegacyCheckResponse{
		Status: string(tx.State),
		Result: tx.Result,
	}
}

func newPendingItem(tx *payment.Transaction) PendingItem {
	return PendingItem{
		ID:              tx.ID,
		InvoiceNumber:   tx.InvoiceRef,
		Amount:          tx.Amount.String(),
		DeviceID:        tx.DeviceID,
		TransactionType: tx.Kind,
	}
}

func newExchangeResponse(e *audit.Exchange) ExchangeResponse {
	return ExchangeResponse{
		Operation:        string(e.Operation),
		Attempt:          e.Attempt,
		GatewayRequestID: e.GatewayRequestID,
		Payload:          e.Payload,
		Error:            e.Error,
		RecordedAt:       e.RecordedAt,
	}
}
