package payment

import (
	"errors"
	"fmt"

	"github.com/pos-backoffice/wirepos/internal/domain/shared"
)

// Validation codes returned to the caller when a charge command is rejected
const (
	CodeMissingParams       = "MISSING_PARAMS"
	CodeInvalidParamsFormat = "INVALID_PARAMS_FORMAT"
	CodeInvalidValues       = "INVALID_VALUES"
)

// ErrMissingRequestID indicates the gateway answered success without queueing a charge
var ErrMissingRequestID = errors.New("gateway accepted the request without an idRequest")

// ValidationError indicates a malformed or incomplete charge command
type ValidationError struct {
	Code    string
	Message string
}

func (e ValidationError) Error() string {
	return e.Code + ": " + e.Message
}

// Is matches any ValidationError when the target code is empty, otherwise by code
func (e ValidationError) Is(target error) bool {
	t, ok := target.(ValidationError)
	if !ok {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// GatewayError carries an upstream failure exactly as the gateway reported it
type GatewayError struct {
	Status  int
	Code    string
	Message string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway error (status %d, code %s): %s", e.Status, e.Code, e.Message)
}

// ErrTransactionNotFound indicates an unknown transaction id
type ErrTransactionNotFound struct {
	ID string
}

func (e ErrTransactionNotFound) Error() string {
	return "transaction not found: " + e.ID
}

// Is implements the errors.Is interface for ErrTransactionNotFound
func (e ErrTransactionNotFound) Is(target error) bool {
	t, ok := target.(ErrTransactionNotFound)
	if !ok {
		return false
	}
	// An empty target ID matches any ErrTransactionNotFound
	return t.ID == "" || t.ID == e.ID
}

// ErrDuplicateTransaction indicates the transaction id is already in use
type ErrDuplicateTransaction struct {
	ID string
}

func (e ErrDuplicateTransaction) Error() string {
	return "transaction already exists: " + e.ID
}

// Is implements the errors.Is interface for ErrDuplicateTransaction
func (e ErrDuplicateTransaction) Is(target error) bool {
	t, ok := target.(ErrDuplicateTransaction)
	if !ok {
		return false
	}
	return t.ID == "" || t.ID == e.ID
}

// ErrTransactionFinalized is returned when a state change targets a transaction
// that already left PENDING
type ErrTransactionFinalized struct {
	ID    string
	State shared.TransactionState
}

func (e ErrTransactionFinalized) Error() string {
	return fmt.Sprintf("transaction %s is already %s", e.ID, e.State)
}

// Is implements the errors.Is interface for ErrTransactionFinalized
func (e ErrTransactionFinalized) Is(target error) bool {
	t, ok := target.(ErrTransactionFinalized)
	if !ok {
		return false
	}
	return t.ID == "" || t.ID == e.ID
}
