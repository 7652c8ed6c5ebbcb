package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/pos-backoffice/wirepos/internal/config"
	"github.com/pos-backoffice/wirepos/internal/platform/metrics"
)

var (
	ErrAlreadyScheduled = errors.New("a poller is already running for this transaction")
	ErrSchedulerClosed  = errors.New("poller scheduler is shut down")
)

// Runner polls a single transaction until ctx is canceled or it finalizes
type Runner interface {
	Run(ctx context.Context, id string)
}

type handle struct {
	cancel context.CancelFunc
}

// Scheduler runs pollers on a bounded worker pool, at most one per transaction id.
// Poller lifetimes are tied to the scheduler, not to the request that scheduled them.
type Scheduler struct {
	runner    Runner
	pool      *ants.Pool
	logger    *slog.Logger
	baseCtx   context.Context
	cancelAll context.CancelFunc

	mu     sync.Mutex
	active map[string]*handle
	closed bool
	wg     sync.WaitGroup
}

func NewScheduler(runner Runner, cfg *config.PollerConfig, logger *slog.Logger) (*Scheduler, error) {
	// Nonblocking: a full pool rejects the poller instead of stalling the HTTP request
	pool, err := ants.NewPool(cfg.PoolSize, ants.WithNonblocking(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create poller pool: %w", err)
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		runner:    runner,
		pool:      pool,
		logger:    logger,
		baseCtx:   baseCtx,
		cancelAll: cancel,
		active:    make(map[string]*handle),
	}, nil
}

// Schedule starts a poller for id. It fails with ErrAlreadyScheduled while one is running,
// with ErrSchedulerClosed after Shutdown, or with the pool error when capacity is exhausted.
func (s *Scheduler) Schedule(id string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSchedulerClosed
	}
	if _, ok := s.active[id]; ok {
		s.mu.Unlock()
		return ErrAlreadyScheduled
	}
	ctx, cancel := context.WithCancel(s.baseCtx)
	h := &handle{cancel: cancel}
	s.active[id] = h
	s.wg.Add(1)
	s.mu.Unlock()

	err := s.pool.Submit(func() {
		defer s.wg.Done()
		defer s.release(id, h)
		s.runner.Run(ctx, id)
	})
	if err != nil {
		s.release(id, h)
		s.wg.Done()
		metrics.PollerRejections.Inc()
		s.logger.Error("Failed to submit poller to worker pool",
			"transaction_id", id, "running", s.pool.Running(), "capacity", s.pool.Cap(), "error", err,
		)
		return fmt.Errorf("failed to schedule poller for %s: %w", id, err)
	}

	s.logger.Debug("Poller scheduled", "transaction_id", id)
	return nil
}

// Cancel stops the poller for id, if any. It reports whether one was running.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	h, ok := s.active[id]
	if ok {
		delete(s.active, id)
	}
	s.mu.Unlock()

	if ok {
		h.cancel()
		s.logger.Debug("Poller canceled", "transaction_id", id)
	}
	return ok
}

// release forgets h unless a newer poller has taken over the id
func (s *Scheduler) release(id string, h *handle) {
	h.cancel()
	s.mu.Lock()
	if s.active[id] == h {
		delete(s.active, id)
	}
	s.mu.Unlock()
}

// Active returns the number of transactions with a running poller
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Running returns the number of running workers in the pool.
func (s *Scheduler) Running() int {
	return s.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (s *Scheduler) Capacity() int {
	return s.pool.Cap()
}

// Shutdown cancels every poller and waits for them to return, bounded by ctx.
// The pool is released either way.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.logger.Info("Shutting down poller scheduler", "active_pollers", s.Active(), "running_workers", s.pool.Running())
	s.cancelAll()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("timed out waiting for pollers: %w", ctx.Err())
	}

	s.pool.Release()
	return err
}
