// Package quote wraps the external DEX aggregator behind retries and
// commission accounting.
package quote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hydrabot/internal/domain"
	"hydrabot/internal/ports"

	"github.com/jpillora/backoff"
)

const (
	maxAttempts  = 3
	retryMinWait = 250 * time.Millisecond
)

// Broker fetches quotes and stamps them with the platform commission. It is
// stateless and safe for concurrent use.
type Broker struct {
	provider       ports.QuoteProvider
	logger         ports.Logger
	commissionRate float64
}

// Config holds configuration for the quote broker.
type Config struct {
	Provider       ports.QuoteProvider
	Logger         ports.Logger
	CommissionRate float64
}

// NewBroker creates a quote broker.
func NewBroker(cfg Config) (*Broker, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("quote provider is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for quote broker")
	}
	if cfg.CommissionRate < 0 || cfg.CommissionRate > 1 {
		return nil, fmt.Errorf("commission rate %f out of range: %w", cfg.CommissionRate, ports.ErrConfigurationError)
	}
	return &Broker{provider: cfg.Provider, logger: cfg.Logger, commissionRate: cfg.CommissionRate}, nil
}

// GetQuote fetches a quote with bounded retries on transient provider
// failures, then computes the commission on the output amount. All failures
// surface wrapped in ErrQuoteUnavailable.
func (b *Broker) GetQuote(ctx context.Context, inputMint, outputMint string, amount float64, slippageBps int) (*domain.Quote, error) {
	op := "GetQuote"

	raw, err := b.fetchWithRetry(ctx, inputMint, outputMint, amount, slippageBps)
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", op, err, ports.ErrQuoteUnavailable)
	}

	commission := raw.OutAmount * b.commissionRate
	b.logger.Debug(ctx, "Quote priced", map[string]interface{}{
		"op": op, "inAmount": raw.InAmount, "outAmount": raw.OutAmount, "commission": commission,
	})

	return &domain.Quote{
		InputMint:      raw.InputMint,
		OutputMint:     raw.OutputMint,
		InAmount:       raw.InAmount,
		OutAmount:      raw.OutAmount,
		PriceImpactPct: raw.PriceImpactPct,
		SlippageBps:    slippageBps,
		Commission:     commission,
	}, nil
}

// ConvertAmount quotes a conversion between two mints and returns only the
// output amount. The ledger calls it with a high slippage tolerance where an
// approximate conversion beats no conversion.
func (b *Broker) ConvertAmount(ctx context.Context, inputMint, outputMint string, amount float64, slippageBps int) (float64, error) {
	raw, err := b.fetchWithRetry(ctx, inputMint, outputMint, amount, slippageBps)
	if err != nil {
		return 0, fmt.Errorf("ConvertAmount: %v: %w", err, ports.ErrQuoteUnavailable)
	}
	return raw.OutAmount, nil
}

// BuildSwap passes through to the provider. No retries: a stale quote must
// not be silently re-fetched behind the caller's back.
func (b *Broker) BuildSwap(ctx context.Context, quote *ports.RawQuote, userPublicKey string) (string, error) {
	return b.provider.BuildSwap(ctx, quote, userPublicKey)
}

func (b *Broker) fetchWithRetry(ctx context.Context, inputMint, outputMint string, amount float64, slippageBps int) (*ports.RawQuote, error) {
	boff := &backoff.Backoff{
		Min:    retryMinWait,
		Factor: 2,
		Jitter: false,
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		raw, err := b.provider.GetQuote(ctx, inputMint, outputMint, amount, slippageBps)
		if err == nil {
			return raw, nil
		}
		lastErr = err

		if !isRetriable(err) {
			return nil, err
		}
		if attempt == maxAttempts {
			break
		}

		wait := boff.Duration()
		b.logger.Warn(ctx, "Quote attempt failed, retrying", map[string]interface{}{
			"attempt": attempt, "wait": wait.String(), "error": err.Error(),
		})
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("retry wait interrupted: %w", ports.ErrContextCanceled)
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("all %d attempts failed: %w", maxAttempts, lastErr)
}

// isRetriable reports whether a provider error is worth another attempt.
// Malformed requests never are.
func isRetriable(err error) bool {
	return errors.Is(err, ports.ErrProviderUnavailable) ||
		errors.Is(err, ports.ErrRateLimited) ||
		errors.Is(err, ports.ErrTimeout)
}
