package quote

import (
	"context"
	"errors"
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

// mockProvider implements ports.QuoteProvider with scripted responses.
type mockProvider struct {
	calls     int
	responses []func() (*ports.RawQuote, error)
	buildFunc func(ctx context.Context, quote *ports.RawQuote, userPublicKey string) (string, error)
}

func (m *mockProvider) GetQuote(ctx context.Context, inputMint, outputMint string, amount float64, slippageBps int) (*ports.RawQuote, error) {
	idx := m.calls
	m.calls++
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	return m.responses[idx]()
}

func (m *mockProvider) BuildSwap(ctx context.Context, quote *ports.RawQuote, userPublicKey string) (string, error) {
	if m.buildFunc != nil {
		return m.buildFunc(ctx, quote, userPublicKey)
	}
	return "tx", nil
}

func goodQuote() func() (*ports.RawQuote, error) {
	return func() (*ports.RawQuote, error) {
		return &ports.RawQuote{
			InputMint: "in", OutputMint: "out",
			InAmount: 500, OutAmount: 119000, PriceImpactPct: 0.001,
		}, nil
	}
}

func failWith(err error) func() (*ports.RawQuote, error) {
	return func() (*ports.RawQuote, error) { return nil, err }
}

func newBroker(t *testing.T, p ports.QuoteProvider, rate float64) *Broker {
	t.Helper()
	b, err := NewBroker(Config{Provider: p, Logger: noopLogger{}, CommissionRate: rate})
	require.NoError(t, err)
	return b
}

func TestGetQuote_ComputesCommission(t *testing.T) {
	p := &mockProvider{responses: []func() (*ports.RawQuote, error){goodQuote()}}
	b := newBroker(t, p, 0.015)

	q, err := b.GetQuote(context.Background(), "in", "out", 500, 50)
	require.NoError(t, err)
	assert.InDelta(t, 119000*0.015, q.Commission, 1e-9)
	assert.Equal(t, 50, q.SlippageBps)
	assert.Equal(t, 1, p.calls)
}

func TestGetQuote_RetriesTransientFailures(t *testing.T) {
	p := &mockProvider{responses: []func() (*ports.RawQuote, error){
		failWith(ports.ErrProviderUnavailable),
		failWith(ports.ErrRateLimited),
		goodQuote(),
	}}
	b := newBroker(t, p, 0.015)

	q, err := b.GetQuote(context.Background(), "in", "out", 500, 50)
	require.NoError(t, err)
	assert.InDelta(t, 119000.0, q.OutAmount, 1e-9)
	assert.Equal(t, 3, p.calls)
}

func TestGetQuote_ExhaustedRetriesSurfaceQuoteUnavailable(t *testing.T) {
	p := &mockProvider{responses: []func() (*ports.RawQuote, error){
		failWith(ports.ErrProviderUnavailable),
	}}
	b := newBroker(t, p, 0.015)

	_, err := b.GetQuote(context.Background(), "in", "out", 500, 50)
	assert.True(t, errors.Is(err, ports.ErrQuoteUnavailable))
	assert.Equal(t, 3, p.calls)
}

func TestGetQuote_InvalidRequestFailsImmediately(t *testing.T) {
	p := &mockProvider{responses: []func() (*ports.RawQuote, error){
		failWith(ports.ErrInvalidRequest),
	}}
	b := newBroker(t, p, 0.015)

	_, err := b.GetQuote(context.Background(), "in", "out", 500, 50)
	assert.True(t, errors.Is(err, ports.ErrQuoteUnavailable))
	assert.Equal(t, 1, p.calls, "non-retriable errors must not be retried")
}

func TestGetQuote_CancelledContextStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &mockProvider{responses: []func() (*ports.RawQuote, error){
		func() (*ports.RawQuote, error) {
			cancel()
			return nil, ports.ErrProviderUnavailable
		},
	}}
	b := newBroker(t, p, 0.015)

	_, err := b.GetQuote(ctx, "in", "out", 500, 50)
	assert.Error(t, err)
	assert.Equal(t, 1, p.calls)
}

func TestConvertAmount(t *testing.T) {
	p := &mockProvider{responses: []func() (*ports.RawQuote, error){goodQuote()}}
	b := newBroker(t, p, 0.015)

	out, err := b.ConvertAmount(context.Background(), "in", "out", 500, 1000)
	require.NoError(t, err)
	assert.InDelta(t, 119000.0, out, 1e-9)
}

func TestNewBroker_Validation(t *testing.T) {
	_, err := NewBroker(Config{Logger: noopLogger{}, CommissionRate: 0.015})
	assert.Error(t, err)

	_, err = NewBroker(Config{Provider: &mockProvider{}, CommissionRate: 0.015})
	assert.Error(t, err)

	_, err = NewBroker(Config{Provider: &mockProvider{}, Logger: noopLogger{}, CommissionRate: 1.5})
	assert.True(t, errors.Is(err, ports.ErrConfigurationError))
}
