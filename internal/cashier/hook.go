package cashier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pos-backoffice/wirepos/internal/domain/payment"
	"github.com/pos-backoffice/wirepos/internal/domain/shared"
)

// State is the local view of a charge, independent of the backend transaction state
type State string

const (
	StateIdle       State = "idle"
	StateRequesting State = "requesting"
	StateProcessing State = "processing"
	StateSuccess    State = "success"
	StateError      State = "error"
	StateTimeout    State = "timeout"
	StateCancelled  State = "cancelled"
)

// InFlight reports whether a charge is being requested or polled
func (s State) InFlight() bool {
	return s == StateRequesting || s == StateProcessing
}

const (
	DefaultPollInterval  = 5 * time.Second
	DefaultTimeout       = 120 * time.Second
	DefaultLaunchTimeout = 10 * time.Second
)

var (
	ErrBusy            = errors.New("a charge is already in progress")
	ErrNothingToRetry  = errors.New("no previous charge to retry")
	ErrCancelled       = errors.New("charge polling cancelled")
	ErrPollingTimedOut = errors.New("no terminal outcome before the polling deadline")
)

// ChargeError reports a charge the backend finished as TIMEOUT or ERROR
type ChargeError struct {
	TransactionID string
	State         shared.TransactionState
	Message       string
}

func (e *ChargeError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("charge %s ended %s", e.TransactionID, e.State)
	}
	return fmt.Sprintf("charge %s ended %s: %s", e.TransactionID, e.State, e.Message)
}

// HookOption configures a Hook
type HookOption func(*Hook)

// WithPollInterval sets how often the status API is read
func WithPollInterval(d time.Duration) HookOption {
	return func(h *Hook) { h.interval = d }
}

// WithTimeout sets the overall polling ceiling
func WithTimeout(d time.Duration) HookOption {
	return func(h *Hook) { h.timeout = d }
}

// WithLaunchTimeout bounds the terminal hand-off call
func WithLaunchTimeout(d time.Duration) HookOption {
	return func(h *Hook) { h.launchTimeout = d }
}

// WithObserver registers a callback invoked on every state change
func WithObserver(fn func(State)) HookOption {
	return func(h *Hook) { h.observer = fn }
}

// Hook drives one charge at a time: request, terminal hand-off, then local polling
// of the status API until an outcome, the timeout ceiling, or Cancel.
// Cancel only stops the local loop. The backend poller keeps reconciling.
type Hook struct {
	api           API
	launcher      Launcher
	logger        *slog.Logger
	interval      time.Duration
	timeout       time.Duration
	launchTimeout time.Duration
	observer      func(State)

	mu         sync.Mutex
	state      State
	generation uint64
	receipt    *Receipt
	result     *payment.Result
	err        error
	last       *ChargeParams
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHook creates an idle hook. launcher may be nil when no terminal hand-off is needed.
func NewHook(api API, launcher Launcher, logger *slog.Logger, opts ...HookOption) *Hook {
	done := make(chan struct{})
	close(done)

	h := &Hook{
		api:           api,
		launcher:      launcher,
		logger:        logger,
		interval:      DefaultPollInterval,
		timeout:       DefaultTimeout,
		launchTimeout: DefaultLaunchTimeout,
		state:         StateIdle,
		done:          done,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Pay requests a charge. A transport or API failure ends in StateError before
// any polling starts. On success the terminal hand-off is fired and polling
// continues in the background; use Wait for the outcome.
func (h *Hook) Pay(ctx context.Context, params ChargeParams) (*Receipt, error) {
	h.mu.Lock()
	if h.state.InFlight() {
		h.mu.Unlock()
		return nil, ErrBusy
	}
	h.generation++
	gen := h.generation
	pollCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.timeout)
	h.cancel = cancel
	h.done = make(chan struct{})
	h.receipt, h.result, h.err = nil, nil, nil
	h.state = StateRequesting
	h.mu.Unlock()
	h.notify(StateRequesting)

	logger := h.logger.With("params", params.Params)

	receipt, err := h.api.AddRequest(ctx, params)
	if err != nil {
		logger.Warn("Charge request failed", "error", err)
		h.finish(gen, StateError, nil, err)
		return nil, err
	}

	h.mu.Lock()
	if gen != h.generation || h.state != StateRequesting {
		h.mu.Unlock()
		return receipt, ErrCancelled
	}
	saved := params
	h.last = &saved
	h.receipt = receipt
	h.state = StateProcessing
	h.mu.Unlock()
	h.notify(StateProcessing)

	logger = logger.With("transaction_id", receipt.TransactionID)
	logger.Info("Charge queued, waiting for terminal")

	if h.launcher != nil {
		// The hand-off is independent of polling and survives Cancel
		launchCtx, launchCancel := context.WithTimeout(context.WithoutCancel(ctx), h.launchTimeout)
		go func() {
			defer launchCancel()
			if err := h.launcher.Launch(launchCtx, receipt); err != nil {
				logger.Warn("Terminal hand-off failed", "error", err)
			}
		}()
	}
	go h.poll(pollCtx, gen, receipt.TransactionID, logger)

	return receipt, nil
}

// Retry replays the parameters of the last accepted charge under a fresh id
func (h *Hook) Retry(ctx context.Context) (*Receipt, error) {
	h.mu.Lock()
	if h.last == nil {
		h.mu.Unlock()
		return nil, ErrNothingToRetry
	}
	params := *h.last
	h.mu.Unlock()

	params.ID = uuid.NewString()
	return h.Pay(ctx, params)
}

// Cancel stops local polling and reports whether a charge was in flight
func (h *Hook) Cancel() bool {
	h.mu.Lock()
	if !h.state.InFlight() {
		h.mu.Unlock()
		return false
	}
	h.state = StateCancelled
	h.err = ErrCancelled
	h.cancel()
	close(h.done)
	h.mu.Unlock()

	h.notify(StateCancelled)
	return true
}

// Wait blocks until the current charge leaves the in-flight states or ctx ends
func (h *Hook) Wait(ctx context.Context) (State, error) {
	h.mu.Lock()
	done := h.done
	h.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return h.State(), ctx.Err()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state, h.err
}

func (h *Hook) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Hook) Receipt() *Receipt {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.receipt
}

// Result is the terminal outcome once the hook reached StateSuccess
func (h *Hook) Result() *payment.Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result
}

func (h *Hook) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *Hook) poll(ctx context.Context, gen uint64, transactionID string, logger *slog.Logger) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				logger.Warn("Charge polling timed out")
				h.finish(gen, StateTimeout, nil, ErrPollingTimedOut)
			}
			return
		case <-ticker.C:
			if h.check(ctx, gen, transactionID, logger) {
				return
			}
		}
	}
}

// check reads the status once and returns true when the hook reached an outcome
func (h *Hook) check(ctx context.Context, gen uint64, transactionID string, logger *slog.Logger) bool {
	status, err := h.api.Status(ctx, transactionID)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status < 500 {
			h.finish(gen, StateError, nil, err)
			return true
		}
		if ctx.Err() == nil {
			logger.Warn("Status check failed, will retry", "error", err)
		}
		return false
	}

	if status.Pending {
		return false
	}

	switch status.State {
	case shared.TransactionStateDone:
		logger.Info("Charge completed", "approved", status.Result.Approved())
		h.finish(gen, StateSuccess, status.Result, nil)
	default:
		h.finish(gen, StateError, nil, &ChargeError{
			TransactionID: transactionID,
			State:         status.State,
			Message:       status.ErrorMessage,
		})
	}
	return true
}

// finish records an outcome for generation gen unless the charge was already
// settled or replaced
func (h *Hook) finish(gen uint64, state State, result *payment.Result, err error) {
	h.mu.Lock()
	if gen != h.generation || !h.state.InFlight() {
		h.mu.Unlock()
		return
	}
	h.state = state
	h.result = result
	h.err = err
	h.cancel()
	close(h.done)
	h.mu.Unlock()

	h.notify(state)
}

func (h *Hook) notify(state State) {
	if h.observer != nil {
		h.observer(state)
	}
}
