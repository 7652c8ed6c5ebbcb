package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pos-backoffice/wirepos/internal/api_gateway/middleware"
	"github.com/pos-backoffice/wirepos/internal/api_gateway/service"
	"github.com/pos-backoffice/wirepos/internal/domain/audit"
	"github.com/pos-backoffice/wirepos/internal/domain/payment"
	"github.com/pos-backoffice/wirepos/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const readyPayload = "00¶AUTH123¶1234¶REF1¶VISA¶APROBADA¶0101¶120000¶123¶456¶WINV01¶batch¶10000¶emv¶7"

type MockChargeService struct {
	mock.Mock
}

func (m *MockChargeService) Initiate(ctx context.Context, req *service.ChargeRequest) (*service.ChargeReceipt, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ChargeReceipt), args.Error(1)
}

func (m *MockChargeService) ApplyResponse(ctx context.Context, id, responseString string) (*payment.Transaction, error) {
	args := m.Called(ctx, id, responseString)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Transaction), args.Error(1)
}

type MockStatusService struct {
	mock.Mock
}

func (m *MockStatusService) GetTransaction(ctx context.Context, id string) (*payment.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Transaction), args.Error(1)
}

func (m *MockStatusService) ListPending(ctx context.Context) ([]*payment.Transaction, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*payment.Transaction), args.Error(1)
}

func (m *MockStatusService) ListExchanges(ctx context.Context, id string) ([]*audit.Exchange, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*audit.Exchange), args.Error(1)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestRouter(charge *MockChargeService, status *MockStatusService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewWirePOSHandler(newTestLogger(), charge, status)

	router := gin.New()
	router.Use(middleware.CorrelationID())
	router.POST("/wirepos/addrequest", h.AddRequest)
	router.GET("/wirepos/status/:transactionId", h.Status)
	router.GET("/wirepos/CheckRequest/:transactionId", h.CheckRequest)
	router.GET("/wirepos/pending", h.Pending)
	router.POST("/wirepos/response", h.Response)
	router.GET("/wirepos/transactions/:transactionId/exchanges", h.Exchanges)
	return router
}

func perform(router *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func newTransaction(t *testing.T, id string) *payment.Transaction {
	t.Helper()
	cmd, err := payment.ParseCommand("V|DEV_TERM_001|10000|INV001")
	require.NoError(t, err)
	return payment.NewTransaction(id, cmd, "AUTH_DEVICE", "REQ-"+id, "test", time.Now().UTC())
}

func TestWirePOSHandler_AddRequest(t *testing.T) {
	validBody := []byte(`{"id":"tx-1","command":"charge","params":"V|DEV_TERM_001|10000|INV001","timestamp":"2024-01-01T00:00:00Z"}`)

	t.Run("Success", func(t *testing.T) {
		charge := &MockChargeService{}
		charge.On("Initiate", mock.Anything, &service.ChargeRequest{
			ID:        "tx-1",
			Command:   "charge",
			Params:    "V|DEV_TERM_001|10000|INV001",
			Timestamp: "2024-01-01T00:00:00Z",
		}).Return(&service.ChargeReceipt{
			TransactionID:    "tx-1",
			GatewayRequestID: "REQ-1",
			Status:           shared.TransactionStatePending,
			PollURL:          "/wirepos/status/tx-1",
		}, nil).Once()

		rr := perform(newTestRouter(charge, &MockStatusService{}), http.MethodPost, "/wirepos/addrequest", validBody)

		assert.Equal(t, http.StatusOK, rr.Code)
		body := decodeBody(t, rr)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "tx-1", body["transactionId"])
		assert.Equal(t, "REQ-1", body["gatewayRequestId"])
		assert.Equal(t, "PENDING", body["status"])
		assert.Equal(t, "/wirepos/status/tx-1", body["pollUrl"])
		charge.AssertExpectations(t)
	})

	errorCases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name:       "ValidationError",
			err:        payment.ValidationError{Code: payment.CodeInvalidParamsFormat, Message: "params must be TYPE|DEVICE|AMOUNT|INVOICE"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_PARAMS_FORMAT",
		},
		{
			name:       "GatewayErrorPassthrough",
			err:        &payment.GatewayError{Status: http.StatusServiceUnavailable, Code: "TERMINAL_BUSY", Message: "terminal busy"},
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "TERMINAL_BUSY",
			wantMsg:    "terminal busy",
		},
		{
			name:       "MissingRequestID",
			err:        payment.ErrMissingRequestID,
			wantStatus: http.StatusBadGateway,
			wantCode:   "MISSING_ID_REQUEST",
		},
		{
			name:       "ReusedID",
			err:        payment.ErrDuplicateTransaction{ID: "tx-1"},
			wantStatus: http.StatusConflict,
			wantCode:   "CONFLICT",
		},
		{
			name:       "InternalError",
			err:        errors.New("redis down"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_SERVER_ERROR",
		},
	}

	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			charge := &MockChargeService{}
			charge.On("Initiate", mock.Anything, mock.Anything).Return(nil, tc.err).Once()

			rr := perform(newTestRouter(charge, &MockStatusService{}), http.MethodPost, "/wirepos/addrequest", validBody)

			assert.Equal(t, tc.wantStatus, rr.Code)
			body := decodeBody(t, rr)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tc.wantCode, body["code"])
			assert.NotEmpty(t, body["correlation_id"])
			if tc.wantMsg != "" {
				assert.Equal(t, tc.wantMsg, body["message"])
			}
		})
	}

	t.Run("InvalidRequestBody", func(t *testing.T) {
		charge := &MockChargeService{}
		rr := perform(newTestRouter(charge, &MockStatusService{}), http.MethodPost, "/wirepos/addrequest", []byte(`{"invalid`))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		charge.AssertNotCalled(t, "Initiate", mock.Anything, mock.Anything)
	})
}

func TestWirePOSHandler_Status(t *testing.T) {
	t.Run("PendingIsNoContent", func(t *testing.T) {
		status := &MockStatusService{}
		status.On("GetTransaction", mock.Anything, "tx-1").Return(newTransaction(t, "tx-1"), nil).Once()

		rr := perform(newTestRouter(&MockChargeService{}, status), http.MethodGet, "/wirepos/status/tx-1", nil)

		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Empty(t, rr.Body.Bytes())
	})

	t.Run("DoneReturnsResult", func(t *testing.T) {
		tx := newTransaction(t, "tx-1")
		require.NoError(t, tx.RecordReady(payment.ParseResult(readyPayload), readyPayload, time.Now()))
		status := &MockStatusService{}
		status.On("GetTransaction", mock.Anything, "tx-1").Return(tx, nil).Once()

		rr := perform(newTestRouter(&MockChargeService{}, status), http.MethodGet, "/wirepos/status/tx-1", nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		body := decodeBody(t, rr)
		assert.Equal(t, "DONE", body["status"])
		assert.NotEmpty(t, body["createdAt"])
		assert.NotEmpty(t, body["completedAt"])
		result, ok := body["result"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "AUTH123", result["authCode"])
		assert.Equal(t, "1234", result["cardLast4"])
		assert.Equal(t, "WINV01", result["gatewayInvoiceId"])
		_, hasError := body["errorMessage"]
		assert.False(t, hasError)
	})

	t.Run("ErrorIncludesMessage", func(t *testing.T) {
		tx := newTransaction(t, "tx-1")
		require.NoError(t, tx.RecordCheckFailure("connection refused", 1, time.Now()))
		status := &MockStatusService{}
		status.On("GetTransaction", mock.Anything, "tx-1").Return(tx, nil).Once()

		rr := perform(newTestRouter(&MockChargeService{}, status), http.MethodGet, "/wirepos/status/tx-1", nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		body := decodeBody(t, rr)
		assert.Equal(t, "ERROR", body["status"])
		assert.Nil(t, body["result"])
		assert.Equal(t, "connection refused", body["errorMessage"])
	})

	t.Run("UnknownIsNotFound", func(t *testing.T) {
		status := &MockStatusService{}
		status.On("GetTransaction", mock.Anything, "missing").Return(nil, payment.ErrTransactionNotFound{ID: "missing"}).Once()

		rr := perform(newTestRouter(&MockChargeService{}, status), http.MethodGet, "/wirepos/status/missing", nil)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "NOT_FOUND", decodeBody(t, rr)["code"])
	})
}

func TestWirePOSHandler_CheckRequest(t *testing.T) {
	t.Run("Unknown", func(t *testing.T) {
		status := &MockStatusService{}
		status.On("GetTransaction", mock.Anything, "missing").Return(nil, payment.ErrTransactionNotFound{ID: "missing"}).Once()

		rr := perform(newTestRouter(&MockChargeService{}, status), http.MethodGet, "/wirepos/CheckRequest/missing", nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"ResponseString":""}`, rr.Body.String())
	})

	t.Run("Pending", func(t *testing.T) {
		status := &MockStatusService{}
		status.On("GetTransaction", mock.Anything, "tx-1").Return(newTransaction(t, "tx-1"), nil).Once()

		rr := perform(newTestRouter(&MockChargeService{}, status), http.MethodGet, "/wirepos/CheckRequest/tx-1", nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"ResponseString":"AUTH_DEVICE|10000|INV001|V","status":"PENDING"}`, rr.Body.String())
	})

	t.Run("Resolved", func(t *testing.T) {
		tx := newTransaction(t, "tx-1")
		require.NoError(t, tx.RecordReady(payment.ParseResult(readyPayload), readyPayload, time.Now()))
		status := &MockStatusService{}
		status.On("GetTransaction", mock.Anything, "tx-1").Return(tx, nil).Once()

		rr := perform(newTestRouter(&MockChargeService{}, status), http.MethodGet, "/wirepos/CheckRequest/tx-1", nil)

		body := decodeBody(t, rr)
		assert.Equal(t, "", body["ResponseString"])
		assert.Equal(t, "DONE", body["status"])
		assert.NotNil(t, body["result"])
	})
}

func TestWirePOSHandler_Pending(t *testing.T) {
	status := &MockStatusService{}
	status.On("ListPending", mock.Anything).Return([]*payment.Transaction{newTransaction(t, "tx-1")}, nil).Once()

	rr := perform(newTestRouter(&MockChargeService{}, status), http.MethodGet, "/wirepos/pending", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{
		"success": true,
		"pending": [{"id":"tx-1","invoiceNumber":"INV001","amount":"10000","deviceId":"AUTH_DEVICE","transactionType":"V"}]
	}`, rr.Body.String())

	t.Run("Empty", func(t *testing.T) {
		status := &MockStatusService{}
		status.On("ListPending", mock.Anything).Return([]*payment.Transaction{}, nil).Once()

		rr := perform(newTestRouter(&MockChargeService{}, status), http.MethodGet, "/wirepos/pending", nil)
		assert.JSONEq(t, `{"success":true,"pending":[]}`, rr.Body.String())
	})
}

func TestWirePOSHandler_Response(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		tx := newTransaction(t, "tx-1")
		require.NoError(t, tx.Complete(payment.ParseResult(readyPayload), readyPayload, time.Now()))
		charge := &MockChargeService{}
		charge.On("ApplyResponse", mock.Anything, "tx-1", readyPayload).Return(tx, nil).Once()

		body, _ := json.Marshal(CallbackRequest{ID: "tx-1", ResponseString: readyPayload})
		rr := perform(newTestRouter(charge, &MockStatusService{}), http.MethodPost, "/wirepos/response", body)

		assert.Equal(t, http.StatusOK, rr.Code)
		got := decodeBody(t, rr)
		assert.Equal(t, true, got["success"])
		assert.Equal(t, "DONE", got["status"])
		charge.AssertExpectations(t)
	})

	t.Run("AlreadyFinalized", func(t *testing.T) {
		charge := &MockChargeService{}
		charge.On("ApplyResponse", mock.Anything, "tx-1", readyPayload).
			Return(nil, payment.ErrTransactionFinalized{ID: "tx-1", State: shared.TransactionStateTimeout}).Once()

		body, _ := json.Marshal(CallbackRequest{ID: "tx-1", ResponseString: readyPayload})
		rr := perform(newTestRouter(charge, &MockStatusService{}), http.MethodPost, "/wirepos/response", body)

		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Equal(t, "ALREADY_FINALIZED", decodeBody(t, rr)["code"])
	})

	t.Run("Unknown", func(t *testing.T) {
		charge := &MockChargeService{}
		charge.On("ApplyResponse", mock.Anything, "missing", "").Return(nil, payment.ErrTransactionNotFound{ID: "missing"}).Once()

		rr := perform(newTestRouter(charge, &MockStatusService{}), http.MethodPost, "/wirepos/response", []byte(`{"id":"missing"}`))

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("MissingID", func(t *testing.T) {
		charge := &MockChargeService{}
		rr := perform(newTestRouter(charge, &MockStatusService{}), http.MethodPost, "/wirepos/response", []byte(`{"responseString":"00"}`))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		charge.AssertNotCalled(t, "ApplyResponse", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestWirePOSHandler_Exchanges(t *testing.T) {
	recordedAt := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	status := &MockStatusService{}
	status.On("ListExchanges", mock.Anything, "tx-1").Return([]*audit.Exchange{
		{ID: "ex-1", TransactionID: "tx-1", Operation: shared.ExchangeOperationAddRequest, Payload: `{"success":true}`, RecordedAt: recordedAt},
	}, nil).Once()
	status.On("ListExchanges", mock.Anything, "missing").Return(nil, payment.ErrTransactionNotFound{ID: "missing"}).Once()

	router := newTestRouter(&MockChargeService{}, status)

	rr := perform(router, http.MethodGet, "/wirepos/transactions/tx-1/exchanges", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{
		"success": true,
		"exchanges": [{"operation":"AddRequest","attempt":0,"payload":"{\"success\":true}","recordedAt":"2024-01-01T12:00:00Z"}]
	}`, rr.Body.String())

	rr = perform(router, http.MethodGet, "/wirepos/transactions/missing/exchanges", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
