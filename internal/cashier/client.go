// Package cashier is the cashier-side client of the WirePOS API: an HTTP client
// plus the Hook state machine that drives one charge from request to outcome.
package cashier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pos-backoffice/wirepos/internal/domain/payment"
	"github.com/pos-backoffice/wirepos/internal/domain/shared"
)

const maxBodyBytes = 1 << 20

// ChargeParams are the inputs of one charge. Params uses the TYPE|DEVICE|AMOUNT|INVOICE form.
type ChargeParams struct {
	ID      string
	Command string
	Params  string
}

// Receipt is the API acknowledgement of a queued charge
type Receipt struct {
	Success          bool   `json:"success"`
	TransactionID    string `json:"transactionId"`
	GatewayRequestID string `json:"gatewayRequestId"`
	Status           string `json:"status"`
	PollURL          string `json:"pollUrl"`
}

// Status is one observation of a charge. Pending is true while the API answers 204.
type Status struct {
	Pending      bool
	State        shared.TransactionState `json:"status"`
	Result       *payment.Result         `json:"result"`
	CreatedAt    time.Time               `json:"createdAt"`
	CompletedAt  *time.Time              `json:"completedAt"`
	ErrorMessage string                  `json:"errorMessage"`
}

// APIError is a non-2xx answer from the WirePOS API
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wirepos api error (status %d, code %s): %s", e.Status, e.Code, e.Message)
}

// API is the part of the WirePOS API the Hook needs
type API interface {
	AddRequest(ctx context.Context, params ChargeParams) (*Receipt, error)
	Status(ctx context.Context, transactionID string) (*Status, error)
}

// Client talks JSON/HTTP to the WirePOS API
type Client struct {
	httpClient *http.Client
	baseURL    string
	now        func() time.Time
}

var _ API = (*Client)(nil)

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		now:        time.Now,
	}
}

type addRequestBody struct {
	ID        string `json:"id,omitempty"`
	Command   string `json:"command,omitempty"`
	Params    string `json:"params"`
	Timestamp string `json:"timestamp"`
}

// AddRequest starts a charge
func (c *Client) AddRequest(ctx context.Context, params ChargeParams) (*Receipt, error) {
	body, err := json.Marshal(addRequestBody{
		ID:        params.ID,
		Command:   params.Command,
		Params:    params.Params,
		Timestamp: c.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	status, raw, err := c.do(ctx, http.MethodPost, "/wirepos/addrequest", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, decodeAPIError(status, raw)
	}

	var receipt Receipt
	if err := json.Unmarshal(raw, &receipt); err != nil {
		return nil, fmt.Errorf("unmarshal addrequest response: %w", err)
	}
	return &receipt, nil
}

// Status reads the current state of a charge
func (c *Client) Status(ctx context.Context, transactionID string) (*Status, error) {
	status, raw, err := c.do(ctx, http.MethodGet, "/wirepos/status/"+url.PathEscape(transactionID), nil)
	if err != nil {
		return nil, err
	}

	switch status {
	case http.StatusNoContent:
		return &Status{Pending: true, State: shared.TransactionStatePending}, nil
	case http.StatusOK:
		var s Status
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("unmarshal status response: %w", err)
		}
		s.Pending = s.State == shared.TransactionStatePending
		return &s, nil
	default:
		return nil, decodeAPIError(status, raw)
	}
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("read %s response: %w", path, err)
	}
	return resp.StatusCode, raw, nil
}

func decodeAPIError(status int, raw []byte) error {
	apiErr := &APIError{Status: status}
	if err := json.Unmarshal(raw, apiErr); err != nil || apiErr.Code == "" {
		apiErr.Code = http.StatusText(status)
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}

// Launcher hands a queued charge over to the physical terminal
type Launcher interface {
	Launch(ctx context.Context, receipt *Receipt) error
}

// HTTPLauncher notifies a local terminal agent that a charge is waiting
type HTTPLauncher struct {
	httpClient *http.Client
	target     string
}

func NewHTTPLauncher(target string, timeout time.Duration) *HTTPLauncher {
	return &HTTPLauncher{
		httpClient: &http.Client{Timeout: timeout},
		target:     target,
	}
}

// Launch posts the receipt to the terminal agent
func (l *HTTPLauncher) Launch(ctx context.Context, receipt *Receipt) error {
	body, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("marshal receipt: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build hand-off request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("terminal hand-off: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("terminal hand-off: unexpected status %d", resp.StatusCode)
	}
	return nil
}
