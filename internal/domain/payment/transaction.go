package payment

import (
	"time"

	"github.com/pos-backoffice/wirepos/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Transaction is the correlation record for one charge attempt on the terminal gateway
type Transaction struct {
	ID               string                  `json:"id"`
	Kind             string                  `json:"kind"`
	DeviceID         string                  `json:"deviceId"`
	FrontendDeviceID string                  `json:"frontendDeviceId,omitempty"`
	Amount           decimal.Decimal         `json:"amount"`
	AmountText       string                  `json:"amountText,omitempty"`
	InvoiceRef       string                  `json:"invoiceRef"`
	State            shared.TransactionState `json:"state"`
	GatewayRequestID string                  `json:"gatewayRequestId"`
	RawAddResponse   string                  `json:"rawAddResponse,omitempty"`
	RawCheckResponse string                  `json:"rawCheckResponse,omitempty"`
	Result           *Result                 `json:"result,omitempty"`
	Attempts         int                     `json:"attempts"`
	ErrorMessage     string                  `json:"errorMessage,omitempty"`
	CreatedAt        time.Time               `json:"createdAt"`
	CompletedAt      *time.Time              `json:"completedAt,omitempty"`
	Environment      string                  `json:"environment,omitempty"`
}

// NewTransaction creates a PENDING transaction for a charge accepted by the gateway.
// deviceID is the authoritative terminal id; the caller's id is kept for traceability only.
func NewTransaction(id string, cmd *ChargeCommand, deviceID, gatewayRequestID, environment string, now time.Time) *Transaction {
	return &Transaction{
		ID:               id,
		Kind:             cmd.Kind,
		DeviceID:         deviceID,
		FrontendDeviceID: cmd.DeviceID,
		Amount:           cmd.Amount,
		AmountText:       cmd.AmountText,
		InvoiceRef:       cmd.Invoice,
		State:            shared.TransactionStatePending,
		GatewayRequestID: gatewayRequestID,
		CreatedAt:        now,
		Environment:      environment,
	}
}

// IsPending reports whether the transaction still awaits a terminal outcome
func (t *Transaction) IsPending() bool {
	return t.State == shared.TransactionStatePending
}

func (t *Transaction) ensurePending() error {
	if !t.IsPending() {
		return ErrTransactionFinalized{ID: t.ID, State: t.State}
	}
	return nil
}

func (t *Transaction) finish(state shared.TransactionState, now time.Time) {
	t.State = state
	completedAt := now
	t.CompletedAt = &completedAt
}

// RecordNotReady counts a poll that found no response yet.
// The transaction times out once maxAttempts polls have been made.
func (t *Transaction) RecordNotReady(raw string, maxAttempts int, now time.Time) error {
	if err := t.ensurePending(); err != nil {
		return err
	}
	t.Attempts++
	t.RawCheckResponse = raw
	if t.Attempts >= maxAttempts {
		t.finish(shared.TransactionStateTimeout, now)
	}
	return nil
}

// RecordCheckFailure counts a poll whose gateway call failed.
// The failure is tolerated until maxAttempts is reached, then the transaction errors.
func (t *Transaction) RecordCheckFailure(message string, maxAttempts int, now time.Time) error {
	if err := t.ensurePending(); err != nil {
		return err
	}
	t.Attempts++
	if t.Attempts >= maxAttempts {
		t.ErrorMessage = message
		t.finish(shared.TransactionStateError, now)
	}
	return nil
}

// RecordReady counts a poll that returned the terminal response and completes the transaction
func (t *Transaction) RecordReady(result *Result, raw string, now time.Time) error {
	if err := t.ensurePending(); err != nil {
		return err
	}
	t.Attempts++
	return t.Complete(result, raw, now)
}

// Complete moves the transaction to DONE with the parsed terminal result
func (t *Transaction) Complete(result *Result, raw string, now time.Time) error {
	if err := t.ensurePending(); err != nil {
		return err
	}
	if result == nil {
		result = &Result{}
	}
	t.Result = result
	t.RawCheckResponse = raw
	t.finish(shared.TransactionStateDone, now)
	return nil
}

// Fail moves the transaction to ERROR without a poll, e.g. when no poller could be started
func (t *Transaction) Fail(message string, now time.Time) error {
	if err := t.ensurePending(); err != nil {
		return err
	}
	t.ErrorMessage = message
	t.finish(shared.TransactionStateError, now)
	return nil
}

// LegacyResponseString renders the pending charge in the terminal-facing DEVICE|AMOUNT|INVOICE|TYPE form
func (t *Transaction) LegacyResponseString() string {
	amount := t.AmountText
	if amount == "" {
		amount = t.Amount.String()
	}
	return t.DeviceID + CommandDelimiter + amount + CommandDelimiter + t.InvoiceRef + CommandDelimiter + t.Kind
}

// Clone returns a deep copy safe to hand to readers
func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	clone := *t
	clone.Result = t.Result.Clone()
	if t.CompletedAt != nil {
		completedAt := *t.CompletedAt
		clone.CompletedAt = &completedAt
	}
	return &clone
}
