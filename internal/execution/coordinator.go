// Package execution orchestrates order settlement: quote, venue execution,
// the exactly-once terminal transition, and downstream commission and
// portfolio updates.
package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hydrabot/internal/domain"
	"hydrabot/internal/ports"

	"github.com/google/uuid"
)

// QuoteSource prices an order before execution. The quote broker satisfies
// this.
type QuoteSource interface {
	GetQuote(ctx context.Context, inputMint, outputMint string, amount float64, slippageBps int) (*domain.Quote, error)
}

// CommissionApplier records the commission of a settled execution. The
// commission ledger satisfies this.
type CommissionApplier interface {
	Apply(ctx context.Context, exec *domain.TradeExecution) (*domain.CommissionTransaction, error)
}

// FillApplier folds a settled execution into the user's holdings. The
// portfolio reconciler satisfies this.
type FillApplier interface {
	ApplyFill(ctx context.Context, order *domain.Order, exec *domain.TradeExecution) (*domain.Portfolio, error)
}

// MintTable maps trading symbols to mint addresses.
type MintTable struct {
	// Base funds buys and receives sell proceeds.
	Base   string
	Tokens map[string]string
}

// Resolve returns the mint for a symbol.
func (m MintTable) Resolve(symbol string) (string, error) {
	if mint, ok := m.Tokens[symbol]; ok && mint != "" {
		return mint, nil
	}
	return "", fmt.Errorf("no mint known for symbol %q: %w", symbol, ports.ErrInvalidRequest)
}

// Coordinator drives orders through the execution state machine and runs
// settlement exactly once per execution.
type Coordinator struct {
	orders     ports.OrderRepository
	execs      ports.ExecutionRepository
	quotes     QuoteSource
	executor   Executor
	ledger     CommissionApplier
	reconciler FillApplier
	events     ports.EventBroadcaster
	logger     ports.Logger

	mints          MintTable
	slippageBps    int
	commissionRate float64

	// userLocks serializes fills per user so avgBuyPrice folds in terminal
	// order. No ordering is imposed across users.
	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

// Config holds configuration for the execution coordinator.
type Config struct {
	Orders         ports.OrderRepository
	Executions     ports.ExecutionRepository
	Quotes         QuoteSource
	Executor       Executor
	Ledger         CommissionApplier
	Reconciler     FillApplier
	Events         ports.EventBroadcaster
	Logger         ports.Logger
	Mints          MintTable
	SlippageBps    int
	CommissionRate float64
}

// NewCoordinator creates an execution coordinator.
func NewCoordinator(cfg Config) (*Coordinator, error) {
	if cfg.Orders == nil || cfg.Executions == nil {
		return nil, fmt.Errorf("order and execution repositories are required")
	}
	if cfg.Quotes == nil || cfg.Executor == nil {
		return nil, fmt.Errorf("quote source and executor are required")
	}
	if cfg.Ledger == nil || cfg.Reconciler == nil {
		return nil, fmt.Errorf("ledger and reconciler are required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for execution coordinator")
	}
	slippage := cfg.SlippageBps
	if slippage <= 0 {
		slippage = 50
	}
	return &Coordinator{
		orders:         cfg.Orders,
		execs:          cfg.Executions,
		quotes:         cfg.Quotes,
		executor:       cfg.Executor,
		ledger:         cfg.Ledger,
		reconciler:     cfg.Reconciler,
		events:         cfg.Events,
		logger:         cfg.Logger,
		mints:          cfg.Mints,
		slippageBps:    slippage,
		commissionRate: cfg.CommissionRate,
		userLocks:      make(map[string]*sync.Mutex),
	}, nil
}

// ExecuteOrder settles a pending order end to end and returns its terminal
// execution. Quote and validation failures are returned synchronously with
// the order left PENDING; venue failures are recorded on the execution.
func (c *Coordinator) ExecuteOrder(ctx context.Context, order *domain.Order) (*domain.TradeExecution, error) {
	op := "ExecuteOrder"
	if order == nil {
		return nil, fmt.Errorf("%s: order is required: %w", op, ports.ErrInvalidRequest)
	}
	if order.Status != domain.OrderPending {
		return nil, fmt.Errorf("%s: order %s has status %s: %w", op, order.ID, order.Status, ports.ErrOrderNotPending)
	}

	unlock := c.lockUser(order.UserID)
	defer unlock()

	if order.IsExpired(time.Now().UTC()) {
		if err := c.orders.UpdateOrderStatus(ctx, order.ID, domain.OrderPending, domain.OrderCancelled); err != nil {
			c.logger.Warn(ctx, "Failed to cancel expired order", map[string]interface{}{"op": op, "orderID": order.ID, "error": err.Error()})
		}
		return nil, fmt.Errorf("%s: order %s expired at %s: %w", op, order.ID, order.ExpiresAt, ports.ErrOrderExpired)
	}

	inputMint, outputMint, err := c.mintsFor(order)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// The conditional PENDING -> SUBMITTED transition is the order-level
	// claim: callers holding a stale PENDING snapshot of the same order lose
	// the update and fail here, so at most one execution settles per order.
	if err := c.orders.UpdateOrderStatus(ctx, order.ID, domain.OrderPending, domain.OrderSubmitted); err != nil {
		return nil, fmt.Errorf("%s: could not claim order %s: %w", op, order.ID, err)
	}
	order.Status = domain.OrderSubmitted

	quote, err := c.quotes.GetQuote(ctx, inputMint, outputMint, order.Amount, c.slippageBps)
	if err != nil {
		// The order goes back to PENDING; a later retry may find the venue
		// healthy.
		c.releaseOrder(ctx, order)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	exec := &domain.TradeExecution{
		ID:             uuid.NewString(),
		OrderID:        order.ID,
		UserID:         order.UserID,
		InputMint:      inputMint,
		OutputMint:     outputMint,
		InputAmount:    order.Amount,
		ExpectedOutput: quote.OutAmount,
		Status:         domain.ExecutionPending,
		CreatedAt:      time.Now().UTC(),
	}
	if err := c.execs.CreateExecution(ctx, exec); err != nil {
		c.releaseOrder(ctx, order)
		return nil, fmt.Errorf("%s: failed to create execution: %w", op, err)
	}

	if execErr := c.executor.Execute(ctx, exec, quote); execErr != nil {
		c.abortExecution(ctx, order, exec, execErr)
		return nil, fmt.Errorf("%s: executor could not reach a terminal state: %w", op, execErr)
	}
	if exec.Status == domain.ExecutionSuccess {
		exec.Commission = exec.ActualOutput * c.commissionRate
		if exec.ActualOutput > 0 && exec.ExpectedOutput > 0 {
			exec.Slippage = (exec.ActualOutput - exec.ExpectedOutput) / exec.ExpectedOutput
		}
	}

	// The conditional transition is the settlement gate: only the claimer
	// runs ledger, reconciler and broadcast.
	claimed, err := c.execs.ClaimTerminal(ctx, exec)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to record terminal state: %w", op, err)
	}
	if !claimed {
		stored, findErr := c.execs.FindExecutionByID(ctx, exec.ID)
		if findErr != nil {
			return nil, fmt.Errorf("%s: execution already settled but could not be loaded: %w", op, findErr)
		}
		c.logger.Debug(ctx, "Execution already settled by another claimer", map[string]interface{}{"op": op, "executionID": exec.ID})
		return stored, nil
	}

	return exec, c.settle(ctx, order, exec)
}

// releaseOrder hands a claimed order back to PENDING so it stays retriable.
// Runs detached from the caller's context: the claim must not stick because
// the request that took it was cancelled.
func (c *Coordinator) releaseOrder(ctx context.Context, order *domain.Order) {
	ctx = context.WithoutCancel(ctx)
	if err := c.orders.UpdateOrderStatus(ctx, order.ID, domain.OrderSubmitted, domain.OrderPending); err != nil {
		c.logger.Warn(ctx, "Failed to release claimed order", map[string]interface{}{
			"orderID": order.ID, "error": err.Error(),
		})
		return
	}
	order.Status = domain.OrderPending
}

// abortExecution claims a FAILED terminal state for an execution whose venue
// call never finished, then releases the order for a later retry. It runs on
// a detached context because the usual cause is cancellation of the caller's.
func (c *Coordinator) abortExecution(ctx context.Context, order *domain.Order, exec *domain.TradeExecution, cause error) {
	ctx = context.WithoutCancel(ctx)
	exec.Status = domain.ExecutionFailed
	exec.ErrorMessage = fmt.Sprintf("execution aborted: %v", cause)
	if _, err := c.execs.ClaimTerminal(ctx, exec); err != nil {
		c.logger.Warn(ctx, "Failed to record aborted execution", map[string]interface{}{
			"executionID": exec.ID, "error": err.Error(),
		})
	}
	c.releaseOrder(ctx, order)
}

// settle runs the post-terminal pipeline for a claimed execution. Losing an
// order transition here means another writer moved a SUBMITTED order, which
// the claim makes impossible short of operator interference; it is an error,
// never a warning.
func (c *Coordinator) settle(ctx context.Context, order *domain.Order, exec *domain.TradeExecution) error {
	op := "settle"

	if exec.Status == domain.ExecutionFailed {
		if err := c.orders.UpdateOrderStatus(ctx, order.ID, domain.OrderSubmitted, domain.OrderCancelled); err != nil {
			return fmt.Errorf("%s: could not cancel order %s after failed execution: %w", op, order.ID, err)
		}
		order.Status = domain.OrderCancelled
		c.publish(ctx, domain.EventTradeFailed, order.UserID, map[string]interface{}{
			"orderId":           order.ID,
			"executionId":       exec.ID,
			"error":             exec.ErrorMessage,
			"reconcileRequired": exec.ReconcileRequired,
		})
		return nil
	}

	if err := c.orders.UpdateOrderStatus(ctx, order.ID, domain.OrderSubmitted, domain.OrderFilled); err != nil {
		return fmt.Errorf("%s: could not mark order %s filled: %w", op, order.ID, err)
	}
	order.Status = domain.OrderFilled
	c.publish(ctx, domain.EventTradeExecuted, order.UserID, map[string]interface{}{
		"orderId":      order.ID,
		"executionId":  exec.ID,
		"actualOutput": exec.ActualOutput,
		"slippage":     exec.Slippage,
		"commission":   exec.Commission,
		"txSignature":  exec.TxSignature,
	})

	if exec.Commission > 0 {
		commTx, err := c.ledger.Apply(ctx, exec)
		if err != nil {
			// Escalated ledger conflicts break the conservation invariant if
			// ignored; surface them to the caller for manual reconciliation.
			return fmt.Errorf("%s: commission settlement failed for execution %s: %w", op, exec.ID, err)
		}
		c.publish(ctx, domain.EventCommissionApplied, order.UserID, map[string]interface{}{
			"executionId": exec.ID,
			"amount":      commTx.Amount,
		})
	}

	pf, err := c.reconciler.ApplyFill(ctx, order, exec)
	if err != nil {
		return fmt.Errorf("%s: portfolio update failed for execution %s: %w", op, exec.ID, err)
	}
	c.publish(ctx, domain.EventPortfolioUpdated, order.UserID, map[string]interface{}{
		"totalValue": pf.TotalValue,
		"totalPnl":   pf.TotalPnl,
	})
	return nil
}

func (c *Coordinator) mintsFor(order *domain.Order) (inputMint, outputMint string, err error) {
	token, err := c.mints.Resolve(order.Symbol)
	if err != nil {
		return "", "", err
	}
	if order.Side == domain.Sell {
		return token, c.mints.Base, nil
	}
	return c.mints.Base, token, nil
}

func (c *Coordinator) publish(ctx context.Context, evtType domain.EventType, userID string, payload map[string]interface{}) {
	if c.events == nil {
		return
	}
	c.events.Publish(ctx, domain.Event{
		Type:      evtType,
		UserID:    userID,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
}

// lockUser acquires the per-user settlement lock, creating it on first use.
func (c *Coordinator) lockUser(userID string) func() {
	c.mu.Lock()
	lock, ok := c.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		c.userLocks[userID] = lock
	}
	c.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}
