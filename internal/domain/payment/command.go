package payment

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CommandDelimiter separates the fields of a charge command
const CommandDelimiter = "|"

// ChargeCommand is a validated TYPE|DEVICE|AMOUNT|INVOICE command
type ChargeCommand struct {
	Kind       string
	DeviceID   string // as supplied by the caller, never sent to the gateway
	Amount     decimal.Decimal
	AmountText string // amount exactly as the caller wrote it
	Invoice    string
}

// ParseCommand validates a pipe-delimited charge command
func ParseCommand(params string) (*ChargeCommand, error) {
	if strings.TrimSpace(params) == "" {
		return nil, ValidationError{Code: CodeMissingParams, Message: "params is required"}
	}

	fields := strings.Split(params, CommandDelimiter)
	if len(fields) < 4 {
		return nil, ValidationError{
			Code:    CodeInvalidParamsFormat,
			Message: "params must be TYPE|DEVICE|AMOUNT|INVOICE",
		}
	}

	cmd := &ChargeCommand{
		Kind:     strings.TrimSpace(fields[0]),
		DeviceID: strings.TrimSpace(fields[1]),
		Invoice:  strings.TrimSpace(fields[3]),
	}
	if cmd.Kind == "" {
		return nil, ValidationError{Code: CodeInvalidValues, Message: "type cannot be empty"}
	}
	if cmd.Invoice == "" {
		return nil, ValidationError{Code: CodeInvalidValues, Message: "invoice cannot be empty"}
	}

	amountText := strings.TrimSpace(fields[2])
	amount, err := decimal.NewFromString(amountText)
	if err != nil || !amount.IsPositive() {
		return nil, ValidationError{Code: CodeInvalidValues, Message: "amount must be a positive number"}
	}
	cmd.Amount = amount
	cmd.AmountText = amountText

	return cmd, nil
}
