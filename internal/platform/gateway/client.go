// Package gateway is the HTTP client for the external terminal gateway.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pos-backoffice/wirepos/internal/config"
	"github.com/pos-backoffice/wirepos/internal/domain/payment"
	"github.com/pos-backoffice/wirepos/internal/domain/shared"
	"github.com/pos-backoffice/wirepos/internal/platform/metrics"
	"github.com/pos-backoffice/wirepos/internal/platform/tracing"
)

// Codes used when the gateway does not supply its own
const (
	CodeGatewayError       = "GATEWAY_ERROR"
	CodeGatewayRejected    = "GATEWAY_REJECTED"
	CodeGatewayUnreachable = "GATEWAY_UNREACHABLE"
)

// maxBodyBytes caps how much of a gateway response is read
const maxBodyBytes = 1 << 20

type addRequestBody struct {
	DeviceID string      `json:"deviceId"`
	Amount   json.Number `json:"amount"`
	Invoice  string      `json:"invoice"`
	ID       string      `json:"id"`
	Type     string      `json:"type"`
}

type addRequestReply struct {
	Success   bool          `json:"success"`
	IDRequest flexibleValue `json:"idRequest"`
	Code      string        `json:"code"`
	Message   string        `json:"message"`
}

type checkRequestReply struct {
	ResponseString string `json:"ResponseString"`
}

type errorReply struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// flexibleValue accepts a JSON string or number. The gateway has sent request
// ids in both forms.
type flexibleValue string

func (v *flexibleValue) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*v = ""
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = flexibleValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("idRequest must be a string or number: %w", err)
	}
	*v = flexibleValue(n.String())
	return nil
}

// Client implements payment.Gateway over JSON/HTTP
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *Limiter
	tracer     trace.Tracer
	logger     *slog.Logger
}

var _ payment.Gateway = (*Client)(nil)

func NewClient(cfg *config.GatewayConfig, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		limiter:    NewLimiter(cfg.RPS, cfg.Burst),
		tracer:     tracing.Tracer("wirepos/gateway"),
		logger:     logger,
	}
}

// AddRequest queues a charge on the terminal. It is never retried: a retry
// could charge the card twice.
func (c *Client) AddRequest(ctx context.Context, in payment.AddRequestInput) (*payment.AddRequestOutput, error) {
	op := string(shared.ExchangeOperationAddRequest)
	ctx, span := c.startSpan(ctx, op,
		attribute.String("wirepos.transaction_id", in.ID),
		attribute.String("wirepos.device_id", in.DeviceID),
	)
	defer span.End()

	body, err := json.Marshal(addRequestBody{
		DeviceID: in.DeviceID,
		Amount:   json.Number(in.Amount.String()),
		Invoice:  in.Invoice,
		ID:       in.ID,
		Type:     in.Kind,
	})
	if err != nil {
		return nil, c.fail(span, fmt.Errorf("marshal request: %w", err))
	}

	status, raw, err := c.do(ctx, op, http.MethodPost, c.baseURL+"/AddRequest", bytes.NewReader(body))
	if err != nil {
		return nil, c.fail(span, err)
	}

	var reply addRequestReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, c.fail(span, &payment.GatewayError{
			Status:  http.StatusBadGateway,
			Code:    CodeGatewayError,
			Message: "undecodable AddRequest response: " + err.Error(),
		})
	}
	if !reply.Success {
		return nil, c.fail(span, &payment.GatewayError{
			Status:  http.StatusBadGateway,
			Code:    orDefault(reply.Code, CodeGatewayRejected),
			Message: orDefault(reply.Message, "gateway rejected the charge"),
		})
	}

	span.SetAttributes(
		attribute.Int("http.response.status_code", status),
		attribute.String("wirepos.gateway_request_id", string(reply.IDRequest)),
	)
	return &payment.AddRequestOutput{
		RequestID: strings.TrimSpace(string(reply.IDRequest)),
		Raw:       string(raw),
	}, nil
}

// CheckRequest asks whether the terminal produced a response yet
func (c *Client) CheckRequest(ctx context.Context, deviceID, requestID string) (*payment.CheckRequestOutput, error) {
	op := string(shared.ExchangeOperationCheckRequest)
	ctx, span := c.startSpan(ctx, op,
		attribute.String("wirepos.device_id", deviceID),
		attribute.String("wirepos.gateway_request_id", requestID),
	)
	defer span.End()

	query := url.Values{}
	query.Set("deviceId", deviceID)
	query.Set("idRequest", requestID)

	_, raw, err := c.do(ctx, op, http.MethodGet, c.baseURL+"/CheckRequest?"+query.Encode(), nil)
	if err != nil {
		return nil, c.fail(span, err)
	}

	var reply checkRequestReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, c.fail(span, fmt.Errorf("unmarshal CheckRequest response: %w", err))
	}

	span.SetAttributes(attribute.Bool("wirepos.ready", reply.ResponseString != ""))
	return &payment.CheckRequestOutput{
		ResponseString: reply.ResponseString,
		Raw:            string(raw),
	}, nil
}

// do performs one throttled call. Non-2xx answers and transport failures come
// back as *payment.GatewayError; a cancelled ctx comes back as ctx.Err().
func (c *Client) do(ctx context.Context, op, method, target string, body io.Reader) (int, []byte, error) {
	if err := c.limiter.Wait(ctx, op); err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.GatewayCallDuration.WithLabelValues(op, "transport_error").Observe(time.Since(start).Seconds())
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, nil, ctxErr
		}
		c.logger.Warn("Gateway unreachable", "operation", op, "error", err)
		return 0, nil, &payment.GatewayError{
			Status:  http.StatusBadGateway,
			Code:    CodeGatewayUnreachable,
			Message: err.Error(),
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	metrics.GatewayCallDuration.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var reply errorReply
		_ = json.Unmarshal(raw, &reply)
		c.logger.Warn("Gateway returned an error status",
			"operation", op,
			"status", resp.StatusCode,
			"code", reply.Code,
		)
		return resp.StatusCode, raw, &payment.GatewayError{
			Status:  resp.StatusCode,
			Code:    orDefault(reply.Code, CodeGatewayError),
			Message: orDefault(reply.Message, http.StatusText(resp.StatusCode)),
		}
	}

	return resp.StatusCode, raw, nil
}

func (c *Client) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "gateway."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

func (c *Client) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	var gwErr *payment.GatewayError
	if errors.As(err, &gwErr) {
		span.SetAttributes(
			attribute.Int("http.response.status_code", gwErr.Status),
			attribute.String("wirepos.gateway_code", gwErr.Code),
		)
	}
	return err
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
