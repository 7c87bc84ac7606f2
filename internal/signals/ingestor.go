// Package signals accepts external trading signals and turns eligible ones
// into orders, exactly once per (signal, user) pair.
package signals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hydrabot/internal/domain"
	"hydrabot/internal/ports"

	"github.com/google/uuid"
)

// Sizer recommends a position size for a user, typically Kelly-based.
type Sizer interface {
	RecommendedSize(ctx context.Context, userID string) (float64, error)
}

// Ingestor validates incoming signals and creates auto-execution orders.
type Ingestor struct {
	signalRepo      ports.SignalRepository
	orderRepo       ports.OrderRepository
	sizer           Sizer
	logger          ports.Logger
	whitelist       map[string]struct{}
	minConfidence   float64
	autoTradeAmount float64
	orderTTL        time.Duration
}

// Config holds configuration for the signal ingestor.
type Config struct {
	SignalRepo ports.SignalRepository
	OrderRepo  ports.OrderRepository
	// Sizer caps the auto-trade amount at the recommended position size.
	// Optional; nil means the configured amount is used as-is.
	Sizer           Sizer
	Logger          ports.Logger
	EngineWhitelist []string
	MinConfidence   float64
	AutoTradeAmount float64
	// OrderTTL bounds how long an auto-created order may sit unexecuted.
	// Zero means no expiry.
	OrderTTL time.Duration
}

// NewIngestor creates a signal ingestor.
func NewIngestor(cfg Config) (*Ingestor, error) {
	if cfg.SignalRepo == nil || cfg.OrderRepo == nil {
		return nil, fmt.Errorf("signal and order repositories are required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for signal ingestor")
	}
	if cfg.MinConfidence <= 0 || cfg.MinConfidence >= 1 {
		return nil, fmt.Errorf("min confidence %f out of range: %w", cfg.MinConfidence, ports.ErrConfigurationError)
	}
	wl := make(map[string]struct{}, len(cfg.EngineWhitelist))
	for _, e := range cfg.EngineWhitelist {
		wl[e] = struct{}{}
	}
	return &Ingestor{
		signalRepo:      cfg.SignalRepo,
		orderRepo:       cfg.OrderRepo,
		sizer:           cfg.Sizer,
		logger:          cfg.Logger,
		whitelist:       wl,
		minConfidence:   cfg.MinConfidence,
		autoTradeAmount: cfg.AutoTradeAmount,
		orderTTL:        cfg.OrderTTL,
	}, nil
}

// AutoExecutable reports whether a signal qualifies for automatic order
// creation: confidence strictly above the threshold and engine whitelisted.
func (i *Ingestor) AutoExecutable(sig *domain.TradingSignal) bool {
	if sig.Type == domain.SignalHold {
		return false
	}
	if sig.Confidence <= i.minConfidence {
		return false
	}
	_, ok := i.whitelist[sig.Engine]
	return ok
}

// Ingest stores a signal and, when it qualifies for auto-execution, creates
// at most one order for the given user. Redelivering the same signal returns
// the already-created order. A nil order with nil error means the signal was
// recorded but did not qualify.
func (i *Ingestor) Ingest(ctx context.Context, sig *domain.TradingSignal, userID string) (*domain.Order, error) {
	op := "Ingest"
	if err := validateSignal(sig); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, ports.NewValidationError("userId", "user ID is required")
	}

	if err := i.signalRepo.CreateSignal(ctx, sig); err != nil {
		if !errors.Is(err, ports.ErrDuplicateEntry) {
			return nil, fmt.Errorf("%s: failed to store signal: %w", op, err)
		}
		// Redelivery of a known signal; fall through to the order check.
	}

	if !i.AutoExecutable(sig) {
		i.logger.Debug(ctx, "Signal recorded, no auto-execution", map[string]interface{}{
			"op": op, "signalID": sig.ID, "engine": sig.Engine, "confidence": sig.Confidence,
		})
		return nil, nil
	}

	// At most one order per (signal, user).
	existing, err := i.orderRepo.FindOrderBySignalAndUser(ctx, sig.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to check for existing order: %w", op, err)
	}
	if existing != nil {
		i.logger.Debug(ctx, "Duplicate signal delivery, returning existing order", map[string]interface{}{
			"op": op, "signalID": sig.ID, "userID": userID, "orderID": existing.ID,
		})
		return existing, nil
	}

	amount, err := i.sizeOrder(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	engine, ok := domain.LookupEngine(sig.Engine)
	if !ok {
		return nil, ports.NewValidationError("engine", "unknown engine %q", sig.Engine)
	}
	if amount < engine.MinInvestment {
		return nil, ports.NewValidationError("amount", "amount %.2f below engine %s minimum %.2f", amount, engine.ID, engine.MinInvestment)
	}
	if amount > engine.MaxPosition {
		return nil, ports.NewValidationError("amount", "amount %.2f above engine %s maximum %.2f", amount, engine.ID, engine.MaxPosition)
	}

	order := &domain.Order{
		ID:             uuid.NewString(),
		UserID:         userID,
		Side:           sideFor(sig.Type),
		Symbol:         sig.Symbol,
		Amount:         amount,
		RequestedPrice: sig.Price,
		Status:         domain.OrderPending,
		SignalID:       sig.ID,
		Engine:         sig.Engine,
		CreatedAt:      time.Now().UTC(),
	}
	if i.orderTTL > 0 {
		order.ExpiresAt = order.CreatedAt.Add(i.orderTTL)
	}

	if err := i.orderRepo.CreateOrder(ctx, order); err != nil {
		if errors.Is(err, ports.ErrDuplicateEntry) {
			// Lost a race with a concurrent delivery of the same signal.
			winner, findErr := i.orderRepo.FindOrderBySignalAndUser(ctx, sig.ID, userID)
			if findErr != nil {
				return nil, fmt.Errorf("%s: failed to load winning order after duplicate: %w", op, findErr)
			}
			if winner != nil {
				return winner, nil
			}
		}
		return nil, fmt.Errorf("%s: failed to create order: %w", op, err)
	}

	i.logger.Info(ctx, "Auto-execution order created from signal", map[string]interface{}{
		"op": op, "signalID": sig.ID, "userID": userID, "orderID": order.ID,
		"engine": sig.Engine, "amount": amount, "side": order.Side,
	})
	return order, nil
}

// sizeOrder starts from the configured auto-trade amount and caps it at the
// sizer's recommendation when one is available.
func (i *Ingestor) sizeOrder(ctx context.Context, userID string) (float64, error) {
	amount := i.autoTradeAmount
	if i.sizer == nil {
		return amount, nil
	}
	recommended, err := i.sizer.RecommendedSize(ctx, userID)
	if err != nil {
		// Sizing is advisory; fall back to the configured amount.
		i.logger.Warn(ctx, "Position sizer failed, using configured amount", map[string]interface{}{
			"userID": userID, "error": err.Error(),
		})
		return amount, nil
	}
	if recommended > 0 && recommended < amount {
		amount = recommended
	}
	return amount, nil
}

func validateSignal(sig *domain.TradingSignal) error {
	if sig == nil {
		return ports.NewValidationError("signal", "signal is required")
	}
	if sig.ID == "" {
		return ports.NewValidationError("id", "signal ID is required")
	}
	if sig.Engine == "" {
		return ports.NewValidationError("engine", "engine is required")
	}
	if sig.Symbol == "" {
		return ports.NewValidationError("symbol", "symbol is required")
	}
	if sig.Confidence < 0 || sig.Confidence > 1 {
		return ports.NewValidationError("confidence", "confidence %.4f outside [0,1]", sig.Confidence)
	}
	switch sig.Type {
	case domain.SignalBuy, domain.SignalSell, domain.SignalHold:
	default:
		return ports.NewValidationError("type", "unknown signal type %q", sig.Type)
	}
	return nil
}

func sideFor(t domain.SignalType) domain.OrderSide {
	if t == domain.SignalSell {
		return domain.Sell
	}
	return domain.Buy
}
