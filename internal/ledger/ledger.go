// Package ledger apportions trade commissions into the shared platform pool.
// Every successful execution yields exactly one commission transaction; pool
// counters are updated under optimistic concurrency so concurrent trades never
// lose increments.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hydrabot/internal/domain"
	"hydrabot/internal/ports"

	"github.com/google/uuid"
)

// Converter turns a commission denominated in an arbitrary output token into
// the platform token. The quote broker satisfies this.
type Converter interface {
	ConvertAmount(ctx context.Context, inputMint, outputMint string, amount float64, slippageBps int) (float64, error)
}

// Ledger applies commissions from settled executions to the shared pool.
type Ledger struct {
	repo           ports.CommissionRepository
	converter      Converter
	logger         ports.Logger
	platformMint   string
	burnPercentage float64
	slippageBps    int
	maxRetries     int
}

// Config holds configuration for the commission ledger.
type Config struct {
	Repo      ports.CommissionRepository
	Converter Converter
	Logger    ports.Logger
	// PlatformMint is the token the pool is denominated in.
	PlatformMint string
	// BurnPercentage of each commission is earmarked for burning.
	BurnPercentage float64
	// ConversionSlippageBps is deliberately generous: an approximate
	// conversion beats blocking settlement.
	ConversionSlippageBps int
	// MaxRetries bounds optimistic-concurrency retries before escalating.
	MaxRetries int
}

// NewLedger creates a commission ledger.
func NewLedger(cfg Config) (*Ledger, error) {
	if cfg.Repo == nil {
		return nil, fmt.Errorf("commission repository is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for commission ledger")
	}
	if cfg.BurnPercentage < 0 || cfg.BurnPercentage > 1 {
		return nil, fmt.Errorf("burn percentage %f out of range: %w", cfg.BurnPercentage, ports.ErrConfigurationError)
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}
	slippage := cfg.ConversionSlippageBps
	if slippage <= 0 {
		slippage = 1000
	}
	return &Ledger{
		repo:           cfg.Repo,
		converter:      cfg.Converter,
		logger:         cfg.Logger,
		platformMint:   cfg.PlatformMint,
		burnPercentage: cfg.BurnPercentage,
		slippageBps:    slippage,
		maxRetries:     maxRetries,
	}, nil
}

// Apply records the commission of a successful execution. The transaction row
// is the idempotency claim: a duplicate execution ID means the commission was
// already applied and the call is a no-op. Pool counters are incremented under
// a version check with bounded retries; exhaustion escalates as
// ErrLedgerConflict and must be handled by an operator, never swallowed.
func (l *Ledger) Apply(ctx context.Context, exec *domain.TradeExecution) (*domain.CommissionTransaction, error) {
	op := "Apply"
	if exec == nil || exec.Status != domain.ExecutionSuccess {
		return nil, fmt.Errorf("%s: commission applies only to successful executions: %w", op, ports.ErrInvalidRequest)
	}
	if exec.Commission <= 0 {
		return nil, fmt.Errorf("%s: execution %s carries no commission: %w", op, exec.ID, ports.ErrInvalidRequest)
	}

	amount := l.toPlatformToken(ctx, exec)

	tx := &domain.CommissionTransaction{
		ID:          uuid.NewString(),
		ExecutionID: exec.ID,
		UserID:      exec.UserID,
		Amount:      amount,
		Type:        domain.CommissionTrade,
		Status:      domain.CommissionConfirmed,
		CreatedAt:   time.Now().UTC(),
	}
	if err := l.repo.CreateCommissionTx(ctx, tx); err != nil {
		if errors.Is(err, ports.ErrDuplicateEntry) {
			existing, findErr := l.repo.FindCommissionTxByExecution(ctx, exec.ID)
			if findErr != nil {
				return nil, fmt.Errorf("%s: failed to load existing commission for execution %s: %w", op, exec.ID, findErr)
			}
			l.logger.Debug(ctx, "Commission already applied", map[string]interface{}{"op": op, "executionID": exec.ID})
			return existing, nil
		}
		return nil, fmt.Errorf("%s: failed to record commission transaction: %w", op, err)
	}

	if err := l.incrementPool(ctx, amount); err != nil {
		// The transaction row exists but the pool lags behind it. Surfacing
		// the conflict keeps the conservation invariant checkable; the row
		// marks which execution needs manual pool reconciliation.
		l.logger.Error(ctx, err, "Commission pool increment failed after transaction insert", map[string]interface{}{
			"op": op, "executionID": exec.ID, "amount": amount,
		})
		return tx, err
	}

	l.logger.Info(ctx, "Commission applied", map[string]interface{}{
		"op": op, "executionID": exec.ID, "amount": amount, "burn": amount * l.burnPercentage,
	})
	return tx, nil
}

// toPlatformToken converts the commission into the platform token. Conversion
// failure falls back to a 1:1 approximation so settlement is never blocked.
func (l *Ledger) toPlatformToken(ctx context.Context, exec *domain.TradeExecution) float64 {
	if exec.CommissionInPlatform > 0 {
		return exec.CommissionInPlatform
	}
	if exec.OutputMint == l.platformMint || l.converter == nil || l.platformMint == "" {
		return exec.Commission
	}
	converted, err := l.converter.ConvertAmount(ctx, exec.OutputMint, l.platformMint, exec.Commission, l.slippageBps)
	if err != nil || converted <= 0 {
		l.logger.Warn(ctx, "Commission conversion degraded to 1:1 approximation", map[string]interface{}{
			"executionID": exec.ID, "outputMint": exec.OutputMint, "error": fmt.Sprint(err),
		})
		return exec.Commission
	}
	return converted
}

func (l *Ledger) incrementPool(ctx context.Context, amount float64) error {
	burn := amount * l.burnPercentage
	for attempt := 1; attempt <= l.maxRetries; attempt++ {
		pool, err := l.repo.GetPool(ctx)
		if err != nil {
			return fmt.Errorf("failed to read commission pool: %w", err)
		}
		err = l.repo.IncrementPool(ctx, amount, burn, 0, pool.Version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ports.ErrVersionConflict) {
			return fmt.Errorf("failed to increment commission pool: %w", err)
		}
		l.logger.Debug(ctx, "Pool version conflict, retrying increment", map[string]interface{}{
			"attempt": attempt, "version": pool.Version,
		})
	}
	return fmt.Errorf("pool increment contention not resolved after %d attempts: %w", l.maxRetries, ports.ErrLedgerConflict)
}
