package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pos-backoffice/wirepos/internal/domain/invoice"
	"github.com/pos-backoffice/wirepos/internal/domain/payment"
)

// Error codes beyond the validation codes defined by the payment package
const (
	CodeMissingIDRequest = "MISSING_ID_REQUEST"
	CodeConflict         = "CONFLICT"
	CodeAlreadyFinalized = "ALREADY_FINALIZED"
	CodeInvoiceNotFound  = "INVOICE_NOT_FOUND"
)

// respondWithDomainError maps service errors onto HTTP responses.
// Anything unrecognised is logged and reported as a 500.
func respondWithDomainError(c *gin.Context, logger *slog.Logger, err error) {
	var validationErr payment.ValidationError
	var gatewayErr *payment.GatewayError

	switch {
	case errors.As(err, &validationErr):
		RespondBadRequest(c, validationErr.Code, validationErr.Message)
	case errors.As(err, &gatewayErr):
		RespondWithError(c, gatewayErr.Status, gatewayErr.Code, gatewayErr.Message)
	case errors.Is(err, payment.ErrMissingRequestID):
		RespondWithError(c, http.StatusBadGateway, CodeMissingIDRequest, "Gateway did not return a request id; no charge was queued")
	case errors.Is(err, payment.ErrTransactionNotFound{}):
		RespondNotFound(c, "Transaction not found")
	case errors.Is(err, payment.ErrDuplicateTransaction{}):
		RespondConflict(c, CodeConflict, "Transaction id already in use")
	case errors.Is(err, payment.ErrTransactionFinalized{}):
		RespondConflict(c, CodeAlreadyFinalized, err.Error())
	case errors.Is(err, invoice.ErrInvoiceNotFound{}):
		RespondWithError(c, http.StatusNotFound, CodeInvoiceNotFound, "Invoice not found")
	default:
		logger.Error("Unhandled service error", "error", err, "path", c.FullPath())
		RespondInternalError(c)
	}
}
