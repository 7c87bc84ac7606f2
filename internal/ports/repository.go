package ports

import (
	"context"
	"time"

	"hydrabot/internal/domain"
)

// SignalRepository stores ingested trading signals.
type SignalRepository interface {
	// CreateSignal persists a signal. Signals are immutable once created.
	CreateSignal(ctx context.Context, sig *domain.TradingSignal) error
	// FindSignalByID retrieves a signal by ID. Returns nil, nil if not found.
	FindSignalByID(ctx context.Context, id string) (*domain.TradingSignal, error)
}

// OrderRepository stores and retrieves orders.
type OrderRepository interface {
	// CreateOrder persists a new order. A (SignalID, UserID) pair may own at
	// most one order; a second insert for the same pair returns ErrDuplicateEntry.
	CreateOrder(ctx context.Context, order *domain.Order) error
	// FindOrderByID retrieves an order by ID. Returns nil, nil if not found.
	FindOrderByID(ctx context.Context, id string) (*domain.Order, error)
	// FindOrderBySignalAndUser retrieves the order created for a (signal, user)
	// pair, if any. Returns nil, nil if not found.
	FindOrderBySignalAndUser(ctx context.Context, signalID, userID string) (*domain.Order, error)
	// UpdateOrderStatus moves an order from one status to another in a single
	// conditional statement: the update matches only while the stored status
	// still equals from, so of any concurrent callers exactly one wins and
	// the rest get ErrOrderNotPending. The PENDING -> SUBMITTED transition is
	// the coordinator's order-level settlement claim.
	UpdateOrderStatus(ctx context.Context, id string, from, to domain.OrderStatus) error
	// CountOrdersToday counts orders created today by the given user.
	CountOrdersToday(ctx context.Context, userID string) (int, error)
}

// ExecutionRepository stores trade executions and guards their single
// terminal transition.
type ExecutionRepository interface {
	// CreateExecution persists a new PENDING execution.
	CreateExecution(ctx context.Context, exec *domain.TradeExecution) error
	// FindExecutionByID retrieves an execution by ID. Returns nil, nil if not found.
	FindExecutionByID(ctx context.Context, id string) (*domain.TradeExecution, error)
	// ClaimTerminal atomically moves a PENDING execution into the given
	// terminal status and records the outcome fields. It returns true when this
	// caller won the transition; false when the execution was already terminal,
	// in which case downstream settlement must not run again.
	ClaimTerminal(ctx context.Context, exec *domain.TradeExecution) (bool, error)
	// FindReconcileRequired lists live executions that timed out and await
	// manual on-chain verification.
	FindReconcileRequired(ctx context.Context) ([]*domain.TradeExecution, error)
}

// PositionRepository stores per-user token positions.
type PositionRepository interface {
	// FindPosition retrieves a user's position in a token.
	// Returns nil, nil if the user holds none.
	FindPosition(ctx context.Context, userID, tokenSymbol string) (*domain.Position, error)
	// UpsertPosition creates or replaces a user's position in a token.
	UpsertPosition(ctx context.Context, pos *domain.Position) error
	// FindPositionsByUser lists all of a user's positions.
	FindPositionsByUser(ctx context.Context, userID string) ([]*domain.Position, error)
}

// PortfolioRepository stores per-user portfolio aggregates.
type PortfolioRepository interface {
	// FindPortfolio retrieves a user's portfolio. Returns nil, nil if absent.
	FindPortfolio(ctx context.Context, userID string) (*domain.Portfolio, error)
	// UpsertPortfolio creates or replaces a user's portfolio aggregate.
	UpsertPortfolio(ctx context.Context, p *domain.Portfolio) error
}

// CommissionRepository stores the shared pool and its ledger entries.
type CommissionRepository interface {
	// GetPool retrieves the singleton commission pool, creating it on first use.
	GetPool(ctx context.Context) (*domain.CommissionPool, error)
	// IncrementPool applies deltas to the pool totals if and only if the stored
	// version still equals expectedVersion; otherwise it returns
	// ErrVersionConflict and the caller re-reads and retries.
	IncrementPool(ctx context.Context, commissionDelta, burnDelta, stakeDelta float64, expectedVersion int64) error
	// CreateCommissionTx inserts a ledger entry. ExecutionID carries a unique
	// constraint; a duplicate insert returns ErrDuplicateEntry.
	CreateCommissionTx(ctx context.Context, tx *domain.CommissionTransaction) error
	// FindCommissionTxByExecution retrieves the ledger entry for an execution.
	// Returns nil, nil if not found.
	FindCommissionTxByExecution(ctx context.Context, executionID string) (*domain.CommissionTransaction, error)
	// SumCommissionTx returns the sum of all committed transaction amounts.
	SumCommissionTx(ctx context.Context) (float64, error)
	// SumCommissionTxSince returns the sum of transaction amounts created at or
	// after the given time.
	SumCommissionTxSince(ctx context.Context, since time.Time) (float64, error)
}
