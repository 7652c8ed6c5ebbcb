package api_gateway

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pos-backoffice/wirepos/internal/api_gateway/middleware"
	"github.com/pos-backoffice/wirepos/internal/api_gateway/service"
	"github.com/pos-backoffice/wirepos/internal/config"
	"github.com/pos-backoffice/wirepos/internal/data/memory"
	"github.com/pos-backoffice/wirepos/internal/domain/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPollerStats struct{}

func (stubPollerStats) Active() int   { return 2 }
func (stubPollerStats) Running() int  { return 2 }
func (stubPollerStats) Capacity() int { return 1000 }

func newTestServer(t *testing.T, store payment.Store) *Server {
	t.Helper()
	cfg := &config.Config{
		Application: config.ApplicationConfig{Env: "test"},
		Server:      config.ServerConfig{Port: 0},
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewServer(logger, cfg, nil, service.NewStatusService(store, nil), nil, stubPollerStats{})
}

func TestServer_Routes(t *testing.T) {
	store := memory.NewTransactionStore()
	cmd, err := payment.ParseCommand("V|DEV_TERM_001|10000|INV001")
	require.NoError(t, err)
	require.NoError(t, store.Create(context.Background(), payment.NewTransaction("tx-1", cmd, "AUTH_DEVICE", "REQ-1", "test", time.Now().UTC())))

	s := newTestServer(t, store)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
	}{
		{name: "Health", path: "/health", wantStatus: http.StatusOK, wantBody: `"pollers":{"active":2,"capacity":1000,"running":2}`},
		{name: "Metrics", path: "/metrics", wantStatus: http.StatusOK, wantBody: "go_goroutines"},
		{name: "PendingStatus", path: "/wirepos/status/tx-1", wantStatus: http.StatusNoContent},
		{name: "UnknownStatus", path: "/wirepos/status/missing", wantStatus: http.StatusNotFound, wantBody: `"code":"NOT_FOUND"`},
		{name: "Pending", path: "/wirepos/pending", wantStatus: http.StatusOK, wantBody: `"id":"tx-1"`},
		{name: "LegacyCheck", path: "/wirepos/CheckRequest/tx-1", wantStatus: http.StatusOK, wantBody: `"ResponseString":"AUTH_DEVICE|10000|INV001|V"`},
		{name: "UnknownRoute", path: "/api/v1/accounts", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, tt.path, nil)
			rr := httptest.NewRecorder()
			s.Handler().ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.NotEmpty(t, rr.Header().Get(middleware.CorrelationIDHeader))
			if tt.wantBody != "" {
				assert.Contains(t, rr.Body.String(), tt.wantBody)
			}
		})
	}
}
