package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pos-backoffice/wirepos/internal/config"
	"github.com/pos-backoffice/wirepos/internal/domain/payment"
	"github.com/pos-backoffice/wirepos/internal/domain/shared"
	"github.com/pos-backoffice/wirepos/internal/platform/metrics"
)

// StatusPath is the polling endpoint returned to callers as pollUrl
const StatusPath = "/wirepos/status/"

// ChargeRequest is a charge command as received from the cashier
type ChargeRequest struct {
	ID        string // optional, generated when empty
	Command   string
	Params    string // TYPE|DEVICE|AMOUNT|INVOICE
	Timestamp string
}

// ChargeReceipt is returned as soon as the gateway queued the charge
type ChargeReceipt struct {
	TransactionID    string
	GatewayRequestID string
	Status           shared.TransactionState
	PollURL          string
}

// ChargeServiceImpl implements the ChargeService interface
type ChargeServiceImpl struct {
	store       payment.Store
	gateway     payment.Gateway
	scheduler   PollScheduler
	notifier    Notifier
	logger      *slog.Logger
	deviceID    string
	environment string
	now         func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{} // caller ids between the reuse check and store.Create
}

// NewChargeService creates a new charge service
func NewChargeService(
	logger *slog.Logger,
	cfg *config.Config,
	store payment.Store,
	gateway payment.Gateway,
	scheduler PollScheduler,
	notifier Notifier,
) *ChargeServiceImpl {
	return &ChargeServiceImpl{
		store:       store,
		gateway:     gateway,
		scheduler:   scheduler,
		notifier:    notifier,
		logger:      logger,
		deviceID:    cfg.Gateway.DeviceID,
		environment: cfg.Application.Env,
		now:         func() time.Time { return time.Now().UTC() },
		inFlight:    make(map[string]struct{}),
	}
}

// Initiate starts a charge. Nothing is stored unless the gateway queued it.
func (s *ChargeServiceImpl) Initiate(ctx context.Context, req *ChargeRequest) (*ChargeReceipt, error) {
	cmd, err := payment.ParseCommand(req.Params)
	if err != nil {
		metrics.ChargesInitiated.WithLabelValues("invalid").Inc()
		return nil, err
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	} else {
		if !s.reserve(id) {
			return nil, s.conflict(id)
		}
		defer s.release(id)
		if err := s.ensureUnused(ctx, id); err != nil {
			return nil, err
		}
	}

	logger := s.logger.With("transaction_id", id)

	out, err := s.gateway.AddRequest(ctx, payment.AddRequestInput{
		DeviceID: s.deviceID,
		Amount:   cmd.Amount,
		Invoice:  cmd.Invoice,
		ID:       id,
		Kind:     cmd.Kind,
	})
	if err != nil {
		metrics.ChargesInitiated.WithLabelValues("gateway_error").Inc()
		logger.Error("Gateway rejected charge", "invoice", cmd.Invoice, "amount", cmd.Amount.String(), "error", err)
		return nil, err
	}
	if out.RequestID == "" {
		metrics.ChargesInitiated.WithLabelValues("missing_request_id").Inc()
		logger.Error("Gateway accepted charge without idRequest", "raw_response", out.Raw)
		return nil, payment.ErrMissingRequestID
	}

	// Writes after the gateway queued the charge outlive the caller request
	ctx = context.WithoutCancel(ctx)

	tx := payment.NewTransaction(id, cmd, s.deviceID, out.RequestID, s.environment, s.now())
	tx.RawAddResponse = out.Raw
	if err := s.store.Create(ctx, tx); err != nil {
		metrics.ChargesInitiated.WithLabelValues("store_error").Inc()
		logger.Error("Failed to store accepted charge", "gateway_request_id", out.RequestID, "error", err)
		return nil, fmt.Errorf("failed to store transaction %s: %w", id, err)
	}

	s.notifier.Exchange(ctx, tx, shared.ExchangeOperationAddRequest, out.Raw, "")
	metrics.ChargesInitiated.WithLabelValues("accepted").Inc()

	logger.Info("Charge queued on terminal",
		"gateway_request_id", out.RequestID,
		"kind", cmd.Kind,
		"amount", cmd.Amount.String(),
		"invoice", cmd.Invoice,
		"frontend_device_id", cmd.DeviceID,
	)

	receipt := &ChargeReceipt{
		TransactionID:    id,
		GatewayRequestID: out.RequestID,
		Status:           tx.State,
		PollURL:          StatusPath + id,
	}

	if err := s.scheduler.Schedule(id); err != nil {
		logger.Error("Failed to start poller, failing transaction", "error", err)
		failed, updateErr := s.store.Update(ctx, id, func(current *payment.Transaction) error {
			return current.Fail("failed to start poller: "+err.Error(), s.now())
		})
		if updateErr != nil {
			logger.Error("Failed to mark unpolled transaction as ERROR", "error", updateErr)
			return receipt, nil
		}
		s.notifier.Finalized(ctx, failed, shared.ExchangeOperationAddRequest, out.Raw)
		receipt.Status = failed.State
	}

	return receipt, nil
}

// reserve claims a caller id until Initiate returns. It fails when another
// Initiate holds the same id.
func (s *ChargeServiceImpl) reserve(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.inFlight[id]; held {
		return false
	}
	s.inFlight[id] = struct{}{}
	return true
}

func (s *ChargeServiceImpl) release(id string) {
	s.mu.Lock()
	delete(s.inFlight, id)
	s.mu.Unlock()
}

func (s *ChargeServiceImpl) conflict(id string) error {
	metrics.ChargesInitiated.WithLabelValues("conflict").Inc()
	s.logger.Warn("Rejected charge with reused transaction id", "transaction_id", id)
	return payment.ErrDuplicateTransaction{ID: id}
}

func (s *ChargeServiceImpl) ensureUnused(ctx context.Context, id string) error {
	_, err := s.store.Get(ctx, id)
	switch {
	case err == nil:
		return s.conflict(id)
	case errors.Is(err, payment.ErrTransactionNotFound{}):
		return nil
	default:
		return fmt.Errorf("failed to check transaction %s: %w", id, err)
	}
}

// ApplyResponse moves a PENDING transaction to DONE and stops its poller
func (s *ChargeServiceImpl) ApplyResponse(ctx context.Context, id, responseString string) (*payment.Transaction, error) {
	tx, err := s.store.Update(ctx, id, func(current *payment.Transaction) error {
		return current.Complete(payment.ParseResult(responseString), responseString, s.now())
	})
	if err != nil {
		return nil, err
	}

	s.scheduler.Cancel(id)
	s.notifier.Finalized(ctx, tx, shared.ExchangeOperationCallback, responseString)
	return tx, nil
}
