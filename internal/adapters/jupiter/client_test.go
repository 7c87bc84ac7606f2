package jupiter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

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

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL, Logger: noopLogger{}})
	require.NoError(t, err)
	return c, srv
}

func TestGetQuote_ParsesLamportAmounts(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote", r.URL.Path)
		assert.Equal(t, "500000000000", r.URL.Query().Get("amount")) // 500 tokens in base units
		assert.Equal(t, "50", r.URL.Query().Get("slippageBps"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"inputMint": "inMint",
			"outputMint": "outMint",
			"inAmount": "500000000000",
			"outAmount": "119000000000000",
			"priceImpactPct": "0.0012",
			"routePlan": [{"swapInfo": {"label": "Raydium"}}, {"swapInfo": {"label": "Orca"}}]
		}`))
	})

	quote, err := c.GetQuote(context.Background(), "inMint", "outMint", 500.0, 50)
	require.NoError(t, err)
	assert.Equal(t, "inMint", quote.InputMint)
	assert.InDelta(t, 500.0, quote.InAmount, 1e-9)
	assert.InDelta(t, 119000.0, quote.OutAmount, 1e-9)
	assert.InDelta(t, 0.0012, quote.PriceImpactPct, 1e-9)
	assert.Equal(t, []string{"Raydium", "Orca"}, quote.RoutePlan)
}

func TestGetQuote_InvalidInput(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := c.GetQuote(context.Background(), "", "outMint", 500.0, 50)
	assert.True(t, errors.Is(err, ports.ErrInvalidRequest))

	_, err = c.GetQuote(context.Background(), "inMint", "outMint", -1, 50)
	assert.True(t, errors.Is(err, ports.ErrInvalidRequest))
}

func TestGetQuote_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, want: ports.ErrRateLimited},
		{name: "bad request", status: http.StatusBadRequest, want: ports.ErrInvalidRequest},
		{name: "server error", status: http.StatusBadGateway, want: ports.ErrProviderUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error": "nope"}`))
			})
			_, err := c.GetQuote(context.Background(), "inMint", "outMint", 1.0, 50)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestBuildSwap(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/swap", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"swapTransaction": "base64tx=="}`))
	})

	tx, err := c.BuildSwap(context.Background(), &ports.RawQuote{InputMint: "a", OutputMint: "b"}, "wallet-pubkey")
	require.NoError(t, err)
	assert.Equal(t, "base64tx==", tx)

	_, err = c.BuildSwap(context.Background(), nil, "wallet-pubkey")
	assert.True(t, errors.Is(err, ports.ErrInvalidRequest))

	_, err = c.BuildSwap(context.Background(), &ports.RawQuote{}, "")
	assert.True(t, errors.Is(err, ports.ErrInvalidRequest))
}

func TestBuildSwap_EmptyTransaction(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	})

	_, err := c.BuildSwap(context.Background(), &ports.RawQuote{InputMint: "a"}, "wallet")
	assert.True(t, errors.Is(err, ports.ErrProviderUnavailable))
}
