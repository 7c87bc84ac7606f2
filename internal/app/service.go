// Package app wires the trading pipeline behind a single service: signal
// intake, order creation with eligibility checks, execution, and read-side
// portfolio and ledger queries.
package app

import (
	"context"
	"fmt"
	"time"

	"hydrabot/internal/domain"
	"hydrabot/internal/eligibility"
	"hydrabot/internal/ports"

	"github.com/google/uuid"
)

// SignalIngestor turns signals into orders. The signals package satisfies this.
type SignalIngestor interface {
	Ingest(ctx context.Context, sig *domain.TradingSignal, userID string) (*domain.Order, error)
}

// OrderExecutor settles orders. The execution coordinator satisfies this.
type OrderExecutor interface {
	ExecuteOrder(ctx context.Context, order *domain.Order) (*domain.TradeExecution, error)
}

// PortfolioReader recomputes a user's aggregate. The portfolio reconciler
// satisfies this.
type PortfolioReader interface {
	Recompute(ctx context.Context, userID string) (*domain.Portfolio, error)
}

// EligibilityChecker is the trading gate. The eligibility package satisfies
// this.
type EligibilityChecker interface {
	Check(facts eligibility.Facts) eligibility.Decision
}

// FactsProvider assembles the eligibility facts for a user. Implementations
// that cannot determine a fact leave it nil; the gate fails closed on it.
type FactsProvider interface {
	Facts(ctx context.Context, userID string) (eligibility.Facts, error)
}

// TradingService exposes the platform's trading operations.
type TradingService struct {
	ingestor   SignalIngestor
	executor   OrderExecutor
	portfolios PortfolioReader
	gate       EligibilityChecker
	facts      FactsProvider
	orders     ports.OrderRepository
	positions  ports.PositionRepository
	executions ports.ExecutionRepository
	commission ports.CommissionRepository
	events     ports.EventBroadcaster
	logger     ports.Logger
}

// Config holds the service dependencies.
type Config struct {
	Ingestor   SignalIngestor
	Executor   OrderExecutor
	Portfolios PortfolioReader
	Gate       EligibilityChecker
	Facts      FactsProvider
	Orders     ports.OrderRepository
	Positions  ports.PositionRepository
	Executions ports.ExecutionRepository
	Commission ports.CommissionRepository
	Events     ports.EventBroadcaster
	Logger     ports.Logger
}

// NewTradingService creates the trading service.
func NewTradingService(cfg Config) (*TradingService, error) {
	if cfg.Ingestor == nil || cfg.Executor == nil || cfg.Portfolios == nil {
		return nil, fmt.Errorf("ingestor, executor and portfolio reader are required")
	}
	if cfg.Gate == nil || cfg.Facts == nil {
		return nil, fmt.Errorf("eligibility gate and facts provider are required")
	}
	if cfg.Orders == nil || cfg.Positions == nil || cfg.Executions == nil || cfg.Commission == nil {
		return nil, fmt.Errorf("order, position, execution and commission repositories are required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for trading service")
	}
	return &TradingService{
		ingestor:   cfg.Ingestor,
		executor:   cfg.Executor,
		portfolios: cfg.Portfolios,
		gate:       cfg.Gate,
		facts:      cfg.Facts,
		orders:     cfg.Orders,
		positions:  cfg.Positions,
		executions: cfg.Executions,
		commission: cfg.Commission,
		events:     cfg.Events,
		logger:     cfg.Logger,
	}, nil
}

// IngestSignal records a signal and creates an auto-execution order when the
// signal qualifies and the user passes the eligibility gate. A nil order with
// nil error means the signal was recorded without auto-execution.
func (s *TradingService) IngestSignal(ctx context.Context, sig *domain.TradingSignal, userID string) (*domain.Order, error) {
	op := "IngestSignal"

	s.publish(ctx, domain.EventSignalReceived, userID, map[string]interface{}{
		"signalId": signalID(sig), "engine": signalEngine(sig),
	})

	if err := s.checkEligibility(ctx, userID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	order, err := s.ingestor.Ingest(ctx, sig, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if order != nil {
		s.publish(ctx, domain.EventOrderCreated, userID, map[string]interface{}{
			"orderId": order.ID, "signalId": order.SignalID, "amount": order.Amount, "side": order.Side,
		})
	}
	return order, nil
}

// CreateOrder places a direct user order after eligibility, engine-bound and
// holdings checks.
func (s *TradingService) CreateOrder(ctx context.Context, userID string, side domain.OrderSide, symbol string, amount float64, engine string) (*domain.Order, error) {
	op := "CreateOrder"

	if userID == "" {
		return nil, ports.NewValidationError("userId", "user ID is required")
	}
	if symbol == "" {
		return nil, ports.NewValidationError("symbol", "symbol is required")
	}
	if amount <= 0 {
		return nil, ports.NewValidationError("amount", "amount must be positive, got %.4f", amount)
	}
	if side != domain.Buy && side != domain.Sell {
		return nil, ports.NewValidationError("side", "unknown side %q", side)
	}
	params, ok := domain.LookupEngine(engine)
	if !ok {
		return nil, ports.NewValidationError("engine", "unknown engine %q", engine)
	}
	if amount < params.MinInvestment {
		return nil, ports.NewValidationError("amount", "amount %.2f below engine %s minimum %.2f", amount, engine, params.MinInvestment)
	}
	if amount > params.MaxPosition {
		return nil, ports.NewValidationError("amount", "amount %.2f above engine %s maximum %.2f", amount, engine, params.MaxPosition)
	}

	if err := s.checkEligibility(ctx, userID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Sells are bounded by holdings before anything reaches the venue.
	if side == domain.Sell {
		pos, err := s.positions.FindPosition(ctx, userID, symbol)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to check holdings: %w", op, err)
		}
		held := 0.0
		if pos != nil {
			held = pos.Amount
		}
		if amount > held {
			return nil, ports.NewValidationError("amount", "sell of %.6f exceeds held %.6f %s", amount, held, symbol)
		}
	}

	order := &domain.Order{
		ID:        uuid.NewString(),
		UserID:    userID,
		Side:      side,
		Symbol:    symbol,
		Amount:    amount,
		Status:    domain.OrderPending,
		Engine:    engine,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.orders.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("%s: failed to persist order: %w", op, err)
	}

	s.logger.Info(ctx, "Order created", map[string]interface{}{
		"op": op, "orderID": order.ID, "userID": userID, "side": side, "symbol": symbol, "amount": amount,
	})
	s.publish(ctx, domain.EventOrderCreated, userID, map[string]interface{}{
		"orderId": order.ID, "amount": amount, "side": side,
	})
	return order, nil
}

// ExecuteOrder settles a pending order and returns its terminal execution.
func (s *TradingService) ExecuteOrder(ctx context.Context, orderID string) (*domain.TradeExecution, error) {
	op := "ExecuteOrder"
	if orderID == "" {
		return nil, ports.NewValidationError("orderId", "order ID is required")
	}
	order, err := s.orders.FindOrderByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to load order: %w", op, err)
	}
	if order == nil {
		return nil, fmt.Errorf("%s: order %s: %w", op, orderID, ports.ErrNotFound)
	}
	return s.executor.ExecuteOrder(ctx, order)
}

// GetPortfolio returns the user's portfolio, recomputed from positions at
// current market prices.
func (s *TradingService) GetPortfolio(ctx context.Context, userID string) (*domain.Portfolio, error) {
	if userID == "" {
		return nil, ports.NewValidationError("userId", "user ID is required")
	}
	return s.portfolios.Recompute(ctx, userID)
}

// GetCommissionStats returns the pool counters plus commissions collected
// since the start of the current UTC day.
func (s *TradingService) GetCommissionStats(ctx context.Context) (*domain.CommissionStats, error) {
	op := "GetCommissionStats"
	pool, err := s.commission.GetPool(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read pool: %w", op, err)
	}
	midnight := time.Now().UTC().Truncate(24 * time.Hour)
	daily, err := s.commission.SumCommissionTxSince(ctx, midnight)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to sum daily commissions: %w", op, err)
	}
	return &domain.CommissionStats{Pool: *pool, DailyCommissions: daily}, nil
}

// PendingReconciliations lists live executions whose confirmation timed out
// and whose on-chain truth awaits manual verification.
func (s *TradingService) PendingReconciliations(ctx context.Context) ([]*domain.TradeExecution, error) {
	return s.executions.FindReconcileRequired(ctx)
}

func (s *TradingService) checkEligibility(ctx context.Context, userID string) error {
	facts, err := s.facts.Facts(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to assemble eligibility facts: %w", err)
	}
	decision := s.gate.Check(facts)
	if !decision.Eligible {
		s.logger.Info(ctx, "User failed eligibility gate", map[string]interface{}{
			"userID": userID, "reasons": decision.Reasons,
		})
		return fmt.Errorf("user %s: %v: %w", userID, decision.Reasons, ports.ErrInsufficientEligibility)
	}
	return nil
}

func (s *TradingService) publish(ctx context.Context, evtType domain.EventType, userID string, payload map[string]interface{}) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, domain.Event{
		Type: evtType, UserID: userID, Payload: payload, Timestamp: time.Now().UTC(),
	})
}

func signalID(sig *domain.TradingSignal) string {
	if sig == nil {
		return ""
	}
	return sig.ID
}

func signalEngine(sig *domain.TradingSignal) string {
	if sig == nil {
		return ""
	}
	return sig.Engine
}

// RepoFactsProvider builds eligibility facts from persisted state plus static
// account attributes supplied at construction. Demo deployments mark accounts
// verified; a production wiring would read these from an account service.
type RepoFactsProvider struct {
	Orders          ports.OrderRepository
	EmailVerified   bool
	WalletConnected bool
	TokenBalance    float64
	RiskTolerance   string
}

// Facts assembles the gate inputs for a user. The daily trade count comes
// from the order repository so the cap reflects reality.
func (p *RepoFactsProvider) Facts(ctx context.Context, userID string) (eligibility.Facts, error) {
	count, err := p.Orders.CountOrdersToday(ctx, userID)
	if err != nil {
		return eligibility.Facts{}, err
	}
	email := p.EmailVerified
	wallet := p.WalletConnected
	balance := p.TokenBalance
	tolerance := p.RiskTolerance
	return eligibility.Facts{
		EmailVerified:   &email,
		WalletConnected: &wallet,
		TokenBalance:    &balance,
		RiskTolerance:   &tolerance,
		DailyTradeCount: &count,
	}, nil
}

var _ FactsProvider = (*RepoFactsProvider)(nil)
