package handler

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/pos-backoffice/wirepos/internal/api_gateway/middleware"
	"github.com/pos-backoffice/wirepos/internal/api_gateway/service"
	"github.com/pos-backoffice/wirepos/internal/domain/payment"
	"github.com/pos-backoffice/wirepos/internal/platform/metrics"
)

const callbackSourceHTTP = "http"

// WirePOSHandler handles the terminal charge endpoints
type WirePOSHandler struct {
	chargeService service.ChargeService
	statusService service.StatusService
	logger        *slog.Logger
}

// NewWirePOSHandler creates a new WirePOS handler
func NewWirePOSHandler(logger *slog.Logger, chargeService service.ChargeService, statusService service.StatusService) *WirePOSHandler {
	return &WirePOSHandler{
		chargeService: chargeService,
		statusService: statusService,
		logger:        logger,
	}
}

// AddRequest starts a card charge and returns before the terminal answers
func (h *WirePOSHandler) AddRequest(c *gin.Context) {
	logger := h.logger.With("correlation_id", middleware.GetCorrelationID(c))

	var req AddRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "", "Invalid request body: "+err.Error())
		return
	}

	receipt, err := h.chargeService.Initiate(c.Request.Context(), &service.ChargeRequest{
		ID:        req.ID,
		Command:   req.Command,
		Params:    req.Params,
		Timestamp: req.Timestamp,
	})
	if err != nil {
		logger.Warn("Charge not started", "transaction_id", req.ID, "error", err)
		respondWithDomainError(c, logger, err)
		return
	}

	RespondOK(c, AddRequestResponse{
		Success:          true,
		TransactionID:    receipt.TransactionID,
		GatewayRequestID: receipt.GatewayRequestID,
		Status:           string(receipt.Status),
		PollURL:          receipt.PollURL,
	})
}

// Status reports 204 while the charge is pending and the outcome once it is final
func (h *WirePOSHandler) Status(c *gin.Context) {
	tx, err := h.statusService.GetTransaction(c.Request.Context(), c.Param("transactionId"))
	if err != nil {
		respondWithDomainError(c, h.logger, err)
		return
	}

	if tx.IsPending() {
		RespondNoContent(c)
		return
	}
	RespondOK(c, newStatusResponse(tx))
}

// CheckRequest serves the legacy terminal-facing shape. Unknown ids are not an error.
func (h *WirePOSHandler) CheckRequest(c *gin.Context) {
	tx, err := h.statusService.GetTransaction(c.Request.Context(), c.Param("transactionId"))
	if err != nil {
		if errors.Is(err, payment.ErrTransactionNotFound{}) {
			RespondOK(c, LegacyCheckResponse{})
			return
		}
		respondWithDomainError(c, h.logger, err)
		return
	}

	RespondOK(c, newLegacyCheckResponse(tx))
}

// Pending lists every charge still waiting for a terminal
func (h *WirePOSHandler) Pending(c *gin.Context) {
	pending, err := h.statusService.ListPending(c.Request.Context())
	if err != nil {
		respondWithDomainError(c, h.logger, err)
		return
	}

	items := make([]PendingItem, 0, len(pending))
	for _, tx := range pending {
		items = append(items, newPendingItem(tx))
	}
	RespondOK(c, PendingResponse{Success: true, Pending: items})
}

// Response is the push-style callback from terminals that can call back
func (h *WirePOSHandler) Response(c *gin.Context) {
	logger := h.logger.With("correlation_id", middleware.GetCorrelationID(c))

	var req CallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.CallbacksReceived.WithLabelValues(callbackSourceHTTP, "invalid").Inc()
		logger.Error("Invalid callback body", "error", err)
		RespondBadRequest(c, "", "Invalid request body: "+err.Error())
		return
	}

	tx, err := h.chargeService.ApplyResponse(c.Request.Context(), req.ID, req.ResponseString)
	if err != nil {
		metrics.CallbacksReceived.WithLabelValues(callbackSourceHTTP, "rejected").Inc()
		logger.Warn("Callback rejected", "transaction_id", req.ID, "error", err)
		respondWithDomainError(c, logger, err)
		return
	}

	metrics.CallbacksReceived.WithLabelValues(callbackSourceHTTP, "applied").Inc()
	RespondOK(c, CallbackResponse{
		Success:       true,
		TransactionID: tx.ID,
		Status:        string(tx.State),
		Result:        tx.Result,
	})
}

// Exchanges returns the gateway audit trail of a transaction
func (h *WirePOSHandler) Exchanges(c *gin.Context) {
	exchanges, err := h.statusService.ListExchanges(c.Request.Context(), c.Param("transactionId"))
	if err != nil {
		respondWithDomainError(c, h.logger, err)
		return
	}

	items := make([]ExchangeResponse, 0, len(exchanges))
	for _, e := range exchanges {
		items = append(items, newExchangeResponse(e))
	}
	RespondOK(c, ExchangeListResponse{Success: true, Exchanges: items})
}
