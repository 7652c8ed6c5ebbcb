package handler

import (
	"errors"
	"io"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/pos-backoffice/wirepos/internal/api_gateway/middleware"
	"github.com/pos-backoffice/wirepos/internal/api_gateway/service"
)

// LinkHandler handles invoice confirmation
type LinkHandler struct {
	linkService service.LinkService
	logger      *slog.Logger
}

// NewLinkHandler creates a new link handler
func NewLinkHandler(logger *slog.Logger, linkService service.LinkService) *LinkHandler {
	return &LinkHandler{
		linkService: linkService,
		logger:      logger,
	}
}

// Link stores the transaction durably against its invoice. The body is optional.
func (h *LinkHandler) Link(c *gin.Context) {
	logger := h.logger.With("correlation_id", middleware.GetCorrelationID(c))

	var req LinkRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "", "Invalid request body: "+err.Error())
		return
	}

	rec, err := h.linkService.Link(c.Request.Context(), c.Param("transactionId"), req.InvoiceID)
	if err != nil {
		respondWithDomainError(c, logger, err)
		return
	}

	RespondOK(c, LinkResponse{Success: true, Record: rec})
}
