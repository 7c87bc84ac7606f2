package solanarpc

import (
	"context"
	"encoding/json"
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

func newTestSubmitter(t *testing.T, handler http.HandlerFunc) *Submitter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	s, err := New(Config{RPCURL: srv.URL, Logger: noopLogger{}})
	require.NoError(t, err)
	return s
}

func TestSubmit(t *testing.T) {
	s := newTestSubmitter(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "sendTransaction", req["method"])
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"sig-xyz"}`))
	})

	sig, err := s.Submit(context.Background(), "base64tx==")
	require.NoError(t, err)
	assert.Equal(t, "sig-xyz", sig)

	_, err = s.Submit(context.Background(), "")
	assert.True(t, errors.Is(err, ports.ErrInvalidRequest))
}

func TestSubmit_RPCError(t *testing.T) {
	s := newTestSubmitter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32002,"message":"Transaction simulation failed"}}`))
	})

	_, err := s.Submit(context.Background(), "base64tx==")
	assert.True(t, errors.Is(err, ports.ErrExecutionRejected))
}

func TestConfirm_States(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		confirmed bool
		chainErr  bool
	}{
		{
			name:      "finalized",
			body:      `{"result":{"value":[{"slot":12345,"confirmations":null,"confirmationStatus":"finalized","err":null}]}}`,
			confirmed: true,
		},
		{
			name:      "still processing",
			body:      `{"result":{"value":[{"slot":12345,"confirmationStatus":"processed","err":null}]}}`,
			confirmed: false,
		},
		{
			name:      "not found yet",
			body:      `{"result":{"value":[null]}}`,
			confirmed: false,
		},
		{
			name:     "chain failure",
			body:     `{"result":{"value":[{"slot":12345,"confirmationStatus":"finalized","err":{"InstructionError":[0,"Custom"]}}]}}`,
			chainErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSubmitter(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(tt.body))
			})
			result, err := s.Confirm(context.Background(), "sig-xyz")
			require.NoError(t, err)
			assert.Equal(t, tt.confirmed, result.Confirmed)
			if tt.chainErr {
				assert.NotEmpty(t, result.Err)
				assert.False(t, result.Confirmed)
			}
		})
	}
}

func TestNew_RequiresRPCURL(t *testing.T) {
	_, err := New(Config{Logger: noopLogger{}})
	assert.Error(t, err)
}
