package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"hydrabot/internal/domain"
	"hydrabot/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopLogger struct{}

func (noopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (noopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (noopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (noopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type mockService struct {
	ingestOrder *domain.Order
	ingestErr   error
	createOrder *domain.Order
	createErr   error
	execResult  *domain.TradeExecution
	execErr     error
	portfolio   *domain.Portfolio
	pfErr       error
	stats       *domain.CommissionStats
	statsErr    error
	reconcile   []*domain.TradeExecution

	lastUserID  string
	lastOrderID string
}

func (m *mockService) IngestSignal(ctx context.Context, sig *domain.TradingSignal, userID string) (*domain.Order, error) {
	m.lastUserID = userID
	return m.ingestOrder, m.ingestErr
}

func (m *mockService) CreateOrder(ctx context.Context, userID string, side domain.OrderSide, symbol string, amount float64, engine string) (*domain.Order, error) {
	m.lastUserID = userID
	return m.createOrder, m.createErr
}

func (m *mockService) ExecuteOrder(ctx context.Context, orderID string) (*domain.TradeExecution, error) {
	m.lastOrderID = orderID
	return m.execResult, m.execErr
}

func (m *mockService) GetPortfolio(ctx context.Context, userID string) (*domain.Portfolio, error) {
	m.lastUserID = userID
	return m.portfolio, m.pfErr
}

func (m *mockService) GetCommissionStats(ctx context.Context) (*domain.CommissionStats, error) {
	return m.stats, m.statsErr
}

func (m *mockService) PendingReconciliations(ctx context.Context) ([]*domain.TradeExecution, error) {
	return m.reconcile, nil
}

func newTestServer(t *testing.T, svc TradingAPI) http.Handler {
	t.Helper()
	srv, err := NewServer(Config{Service: svc, Logger: noopLogger{}, Addr: ":0"})
	require.NoError(t, err)
	return srv.Handler()
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) response {
	t.Helper()
	var resp response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestCreateOrderRoutes(t *testing.T) {
	svc := &mockService{createOrder: &domain.Order{ID: "ord-1", Status: domain.OrderPending}}
	handler := newTestServer(t, svc)

	body := `{"userId":"user-1","side":"BUY","symbol":"BOOMROACH","amount":500,"engine":"sniper"}`
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "user-1", svc.lastUserID)
}

func TestValidationErrorMapsToBadRequest(t *testing.T) {
	svc := &mockService{createErr: ports.NewValidationError("amount", "amount must be positive")}
	handler := newTestServer(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"userId":"u"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode(t, rec)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "amount")
}

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"eligibility", ports.ErrInsufficientEligibility, http.StatusForbidden},
		{"not found", ports.ErrNotFound, http.StatusNotFound},
		{"not pending", ports.ErrOrderNotPending, http.StatusConflict},
		{"expired", ports.ErrOrderExpired, http.StatusConflict},
		{"quote down", ports.ErrQuoteUnavailable, http.StatusBadGateway},
		{"internal", ports.ErrUnknown, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := newTestServer(t, &mockService{execErr: tc.err})
			req := httptest.NewRequest(http.MethodPost, "/orders/execute", strings.NewReader(`{"orderId":"ord-1"}`))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestExecutePassesOrderID(t *testing.T) {
	svc := &mockService{execResult: &domain.TradeExecution{ID: "exec-1", Status: domain.ExecutionSuccess}}
	handler := newTestServer(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/orders/execute", strings.NewReader(`{"orderId":"ord-7"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ord-7", svc.lastOrderID)
}

func TestSignalWithoutAutoExecution(t *testing.T) {
	handler := newTestServer(t, &mockService{})

	body := `{"userId":"user-1","signalId":"sig-1","engine":"sniper","symbol":"BOOMROACH","type":"BUY","confidence":0.5}`
	req := httptest.NewRequest(http.MethodPost, "/signals", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	require.True(t, resp.Success)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, false, data["autoExecuted"])
}

func TestPortfolioQueryParam(t *testing.T) {
	svc := &mockService{portfolio: &domain.Portfolio{UserID: "user-9", TotalValue: 123.45}}
	handler := newTestServer(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/portfolio?userId=user-9", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-9", svc.lastUserID)
}

func TestMethodNotAllowed(t *testing.T) {
	handler := newTestServer(t, &mockService{})

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMalformedBodyRejected(t *testing.T) {
	handler := newTestServer(t, &mockService{})

	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
