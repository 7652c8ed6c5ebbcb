package poller

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pos-backoffice/wirepos/internal/config"
	"github.com/pos-backoffice/wirepos/internal/domain/payment"
	"github.com/pos-backoffice/wirepos/internal/domain/shared"
	"github.com/pos-backoffice/wirepos/internal/platform/metrics"
)

// Poll tick outcomes
const (
	outcomeNotReady    = "not_ready"
	outcomeReady       = "ready"
	outcomeCheckFailed = "check_failed"
	outcomeStoreFailed = "store_failed"
)

// pollRun is the state of one Run
type pollRun struct {
	id            string
	logger        *slog.Logger
	storeFailures int // consecutive, reset by a successful write
}

// Poller reconciles one PENDING transaction against the gateway
type Poller struct {
	store       payment.Store
	gateway     payment.Gateway
	notifier    Notifier
	logger      *slog.Logger
	interval    time.Duration
	maxAttempts int
	now         func() time.Time
}

func NewPoller(
	cfg *config.PollerConfig,
	store payment.Store,
	gateway payment.Gateway,
	notifier Notifier,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		store:       store,
		gateway:     gateway,
		notifier:    notifier,
		logger:      logger,
		interval:    cfg.Interval,
		maxAttempts: cfg.MaxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Run polls until the transaction leaves PENDING or ctx is canceled.
// Ticks run sequentially and no tick fires after a terminal transition.
func (p *Poller) Run(ctx context.Context, id string) {
	run := p.newRun(id)
	logger := run.logger
	logger.Info("Starting poller", "interval", p.interval.String(), "max_attempts", p.maxAttempts)

	metrics.ActivePollers.Inc()
	defer metrics.ActivePollers.Dec()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Poller stopping due to context cancellation")
			return
		case <-ticker.C:
			if done := p.tick(ctx, run); done {
				return
			}
		}
	}
}

func (p *Poller) newRun(id string) *pollRun {
	return &pollRun{id: id, logger: p.logger.With("transaction_id", id)}
}

// tick performs one CheckRequest and records it. It reports whether polling is over.
func (p *Poller) tick(ctx context.Context, run *pollRun) bool {
	id, logger := run.id, run.logger

	tx, err := p.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, payment.ErrTransactionNotFound{}) {
			logger.Warn("Transaction no longer in store, stopping poller")
			return true
		}
		return p.storeFailed(ctx, run, "Failed to load transaction", err)
	}
	if !tx.IsPending() {
		logger.Debug("Transaction already finalized, stopping poller", "state", tx.State)
		return true
	}

	out, checkErr := p.gateway.CheckRequest(ctx, tx.DeviceID, tx.GatewayRequestID)
	if checkErr != nil && ctx.Err() != nil {
		return true
	}

	outcome := outcomeNotReady
	payload := ""
	switch {
	case checkErr != nil:
		outcome = outcomeCheckFailed
		logger.Warn("CheckRequest failed", "attempt", tx.Attempts+1, "error", checkErr)
	case out.ResponseString != "":
		outcome = outcomeReady
		payload = out.Raw
	default:
		payload = out.Raw
	}

	updated, err := p.store.Update(ctx, id, func(current *payment.Transaction) error {
		now := p.now()
		switch outcome {
		case outcomeCheckFailed:
			return current.RecordCheckFailure(checkErr.Error(), p.maxAttempts, now)
		case outcomeReady:
			return current.RecordReady(payment.ParseResult(out.ResponseString), out.ResponseString, now)
		default:
			return current.RecordNotReady(out.Raw, p.maxAttempts, now)
		}
	})
	if err != nil {
		if errors.Is(err, payment.ErrTransactionFinalized{}) || errors.Is(err, payment.ErrTransactionNotFound{}) {
			logger.Info("Transaction finalized elsewhere, stopping poller")
			return true
		}
		return p.storeFailed(ctx, run, "Failed to record poll result", err)
	}
	run.storeFailures = 0

	metrics.PollTicks.WithLabelValues(outcome).Inc()

	if updated.IsPending() {
		logger.Debug("Terminal response not ready", "attempts", updated.Attempts)
		return false
	}

	p.notifier.Finalized(context.WithoutCancel(ctx), updated, shared.ExchangeOperationCheckRequest, payload)
	return true
}

// storeFailed counts a store error. The poller gives up after maxAttempts
// consecutive failures and leaves the transaction PENDING for the recovery job.
func (p *Poller) storeFailed(ctx context.Context, run *pollRun, msg string, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	run.storeFailures++
	if run.storeFailures >= p.maxAttempts {
		metrics.PollTicks.WithLabelValues(outcomeStoreFailed).Inc()
		run.logger.Error(msg+", abandoning poller", "store_failures", run.storeFailures, "error", err)
		return true
	}
	run.logger.Error(msg+", retrying on next tick", "store_failures", run.storeFailures, "error", err)
	return false
}
