package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pos-backoffice/wirepos/internal/config"
	"github.com/pos-backoffice/wirepos/internal/domain/payment"
	"github.com/pos-backoffice/wirepos/internal/platform/metrics"
)

// PollScheduler starts a poller for a transaction id
type PollScheduler interface {
	Schedule(id string) error
}

// RecoveryJob resumes pollers for PENDING transactions left over from a previous run
// and evicts old finished transactions from the store
type RecoveryJob struct {
	store     payment.Store
	scheduler PollScheduler
	logger    *slog.Logger
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
}

func NewRecoveryJob(
	recoveryCfg *config.RecoveryConfig,
	storeCfg *config.StoreConfig,
	store payment.Store,
	scheduler PollScheduler,
	logger *slog.Logger,
) *RecoveryJob {
	return &RecoveryJob{
		store:     store,
		scheduler: scheduler,
		logger:    logger,
		interval:  recoveryCfg.Interval,
		retention: storeCfg.Retention,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start resumes pending pollers, then evicts on every interval until ctx is canceled.
// With a zero retention it returns right after resuming.
func (j *RecoveryJob) Start(ctx context.Context) {
	if resumed, err := j.Resume(ctx); err != nil {
		j.logger.Error("Failed to resume pending transactions", "error", err)
	} else if resumed > 0 {
		j.logger.Info("Resumed pollers for pending transactions", "count", resumed)
	}

	if j.retention <= 0 {
		j.logger.Info("Store retention disabled, finished transactions are kept")
		return
	}

	j.logger.Info("Starting retention job", "interval", j.interval.String(), "retention", j.retention.String())
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("Retention job stopping due to context cancellation.")
			return
		case <-ticker.C:
			if _, err := j.Evict(ctx); err != nil {
				j.logger.Error("Error during eviction of finished transactions", "error", err)
			}
		}
	}
}

// Resume schedules a poller for every PENDING transaction in the store
func (j *RecoveryJob) Resume(ctx context.Context) (int, error) {
	pending, err := j.store.ListPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending transactions: %w", err)
	}

	resumed := 0
	for _, tx := range pending {
		err := j.scheduler.Schedule(tx.ID)
		switch {
		case err == nil:
			resumed++
		case errors.Is(err, ErrAlreadyScheduled):
		default:
			j.logger.Error("Failed to resume poller", "transaction_id", tx.ID, "error", err)
		}
	}
	return resumed, nil
}

// Evict deletes finished transactions completed more than retention ago
func (j *RecoveryJob) Evict(ctx context.Context) (int, error) {
	cutoff := j.now().Add(-j.retention)
	ids, err := j.store.ListFinishedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list finished transactions: %w", err)
	}

	evicted := 0
	for _, id := range ids {
		if err := j.store.Delete(ctx, id); err != nil {
			if errors.Is(err, payment.ErrTransactionNotFound{}) {
				continue
			}
			j.logger.Error("Failed to evict transaction", "transaction_id", id, "error", err)
			continue
		}
		evicted++
	}

	if evicted > 0 {
		metrics.TransactionsEvicted.Add(float64(evicted))
		j.logger.Info("Evicted finished transactions", "count", evicted, "cutoff", cutoff)
	}
	return evicted, nil
}
