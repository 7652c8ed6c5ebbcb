package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pos-backoffice/wirepos/internal/config"
	"github.com/pos-backoffice/wirepos/internal/data/memory"
	"github.com/pos-backoffice/wirepos/internal/domain/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecoveryJob(store payment.Store, scheduler PollScheduler, retention time.Duration) *RecoveryJob {
	return NewRecoveryJob(
		&config.RecoveryConfig{Interval: 5 * time.Millisecond},
		&config.StoreConfig{Retention: retention},
		store, scheduler, newTestLogger(),
	)
}

func TestRecoveryJob_Resume(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTransactionStore()
	require.NoError(t, store.Create(ctx, newPendingTransaction(t, "tx-1")))
	require.NoError(t, store.Create(ctx, newPendingTransaction(t, "tx-2")))
	require.NoError(t, store.Create(ctx, newPendingTransaction(t, "tx-3")))

	done := newPendingTransaction(t, "tx-done")
	require.NoError(t, done.Fail("boom", time.Now()))
	require.NoError(t, store.Create(ctx, done))

	scheduler := &MockScheduler{}
	scheduler.On("Schedule", "tx-1").Return(nil).Once()
	scheduler.On("Schedule", "tx-2").Return(ErrAlreadyScheduled).Once()
	scheduler.On("Schedule", "tx-3").Return(errors.New("pool overload")).Once()

	resumed, err := newTestRecoveryJob(store, scheduler, 0).Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resumed)
	scheduler.AssertExpectations(t)
	scheduler.AssertNotCalled(t, "Schedule", "tx-done")
}

func TestRecoveryJob_Evict(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTransactionStore()
	now := time.Now().UTC()

	old := newPendingTransaction(t, "tx-old")
	require.NoError(t, old.Fail("boom", now.Add(-2*time.Hour)))
	require.NoError(t, store.Create(ctx, old))

	recent := newPendingTransaction(t, "tx-recent")
	require.NoError(t, recent.Fail("boom", now.Add(-time.Minute)))
	require.NoError(t, store.Create(ctx, recent))

	require.NoError(t, store.Create(ctx, newPendingTransaction(t, "tx-pending")))

	job := newTestRecoveryJob(store, &MockScheduler{}, time.Hour)
	job.now = func() time.Time { return now }

	evicted, err := job.Evict(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, evicted)

	_, err = store.Get(ctx, "tx-old")
	assert.ErrorIs(t, err, payment.ErrTransactionNotFound{})
	_, err = store.Get(ctx, "tx-recent")
	assert.NoError(t, err)
	_, err = store.Get(ctx, "tx-pending")
	assert.NoError(t, err)
}

func TestRecoveryJob_Start(t *testing.T) {
	t.Run("ReturnsAfterResumeWithoutRetention", func(t *testing.T) {
		store := memory.NewTransactionStore()
		require.NoError(t, store.Create(context.Background(), newPendingTransaction(t, "tx-1")))

		scheduler := &MockScheduler{}
		scheduler.On("Schedule", "tx-1").Return(nil).Once()

		finished := make(chan struct{})
		go func() {
			newTestRecoveryJob(store, scheduler, 0).Start(context.Background())
			close(finished)
		}()

		select {
		case <-finished:
		case <-time.After(time.Second):
			t.Fatal("recovery job kept running with retention disabled")
		}
		scheduler.AssertExpectations(t)
	})

	t.Run("EvictsUntilCanceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		store := memory.NewTransactionStore()

		old := newPendingTransaction(t, "tx-old")
		require.NoError(t, old.Fail("boom", time.Now().Add(-2*time.Hour)))
		require.NoError(t, store.Create(ctx, old))

		finished := make(chan struct{})
		go func() {
			newTestRecoveryJob(store, &MockScheduler{}, time.Hour).Start(ctx)
			close(finished)
		}()

		assert.Eventually(t, func() bool {
			_, err := store.Get(context.Background(), "tx-old")
			return errors.Is(err, payment.ErrTransactionNotFound{})
		}, time.Second, 5*time.Millisecond)

		cancel()
		select {
		case <-finished:
		case <-time.After(time.Second):
			t.Fatal("recovery job ignored context cancellation")
		}
	})
}
