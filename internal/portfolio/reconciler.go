// Package portfolio maintains per-user positions and portfolio aggregates
// from settled trade executions. Buys use weighted-average cost accounting;
// sells realize PnL against the average. The aggregate is recomputed from the
// positions themselves, and divergence from the stored value beyond tolerance
// is logged as reconciliation drift and corrected.
package portfolio

import (
	"context"
	"fmt"
	"math"
	"time"

	"hydrabot/internal/domain"
	"hydrabot/internal/ports"
)

// Reconciler applies fills to positions and keeps portfolio aggregates honest.
type Reconciler struct {
	positions      ports.PositionRepository
	portfolios     ports.PortfolioRepository
	prices         ports.PriceSource
	logger         ports.Logger
	driftTolerance float64
}

// Config holds configuration for the portfolio reconciler.
type Config struct {
	Positions  ports.PositionRepository
	Portfolios ports.PortfolioRepository
	// Prices revalues positions at market. Optional; without it positions are
	// valued at their average buy price.
	Prices ports.PriceSource
	Logger ports.Logger
	// DriftTolerance is the relative divergence between the stored aggregate
	// and the recomputed one above which drift is logged.
	DriftTolerance float64
}

// NewReconciler creates a portfolio reconciler.
func NewReconciler(cfg Config) (*Reconciler, error) {
	if cfg.Positions == nil || cfg.Portfolios == nil {
		return nil, fmt.Errorf("position and portfolio repositories are required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for portfolio reconciler")
	}
	tol := cfg.DriftTolerance
	if tol <= 0 {
		tol = 0.01
	}
	return &Reconciler{
		positions:   cfg.Positions,
		portfolios:  cfg.Portfolios,
		prices:      cfg.Prices,
		logger:      cfg.Logger,
		driftTolerance: tol,
	}, nil
}

// ApplyFill folds a successful execution into the user's position and
// portfolio. Returns the updated portfolio.
func (r *Reconciler) ApplyFill(ctx context.Context, order *domain.Order, exec *domain.TradeExecution) (*domain.Portfolio, error) {
	op := "ApplyFill"
	if order == nil || exec == nil {
		return nil, fmt.Errorf("%s: order and execution are required: %w", op, ports.ErrInvalidRequest)
	}
	if exec.Status != domain.ExecutionSuccess {
		return nil, fmt.Errorf("%s: only successful executions mutate positions: %w", op, ports.ErrInvalidRequest)
	}

	pos, err := r.positions.FindPosition(ctx, order.UserID, order.Symbol)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to load position: %w", op, err)
	}
	if pos == nil {
		pos = &domain.Position{UserID: order.UserID, TokenSymbol: order.Symbol}
	}

	var realized float64
	switch order.Side {
	case domain.Buy:
		if err := applyBuy(pos, exec); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	case domain.Sell:
		realized, err = applySell(pos, exec)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	default:
		return nil, fmt.Errorf("%s: unknown order side %q: %w", op, order.Side, ports.ErrInvalidRequest)
	}

	pos.UpdatedAt = time.Now().UTC()
	if err := r.positions.UpsertPosition(ctx, pos); err != nil {
		return nil, fmt.Errorf("%s: failed to persist position: %w", op, err)
	}

	// The fill legitimately moves the aggregate, so no drift check here.
	pf, err := r.recompute(ctx, order.UserID, false)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if realized != 0 {
		pf.TotalPnl += realized
		pf.DailyPnl += realized
		if err := r.portfolios.UpsertPortfolio(ctx, pf); err != nil {
			return nil, fmt.Errorf("%s: failed to persist realized pnl: %w", op, err)
		}
	}

	r.logger.Info(ctx, "Fill applied to portfolio", map[string]interface{}{
		"op": op, "userID": order.UserID, "symbol": order.Symbol, "side": order.Side,
		"positionAmount": pos.Amount, "avgBuyPrice": pos.AvgBuyPrice, "realizedPnl": realized,
	})
	return pf, nil
}

// applyBuy credits the net output tokens and folds the fill into the
// weighted-average cost basis.
func applyBuy(pos *domain.Position, exec *domain.TradeExecution) error {
	tokens := exec.ActualOutput - exec.Commission
	if tokens <= 0 {
		return fmt.Errorf("buy fill yields no tokens after commission: %w", ports.ErrInvalidRequest)
	}
	fillPrice := exec.InputAmount / tokens

	newAmount := pos.Amount + tokens
	pos.AvgBuyPrice = (pos.AvgBuyPrice*pos.Amount + fillPrice*tokens) / newAmount
	pos.Amount = newAmount
	return nil
}

// applySell debits the sold tokens and returns the realized PnL against the
// average cost. The position can never go below zero; oversells are rejected
// before execution, so hitting one here is a consistency failure.
func applySell(pos *domain.Position, exec *domain.TradeExecution) (float64, error) {
	tokens := exec.InputAmount
	if tokens <= 0 {
		return 0, fmt.Errorf("sell fill has no input amount: %w", ports.ErrInvalidRequest)
	}
	if tokens > pos.Amount {
		return 0, fmt.Errorf("sell of %.6f exceeds held %.6f: %w", tokens, pos.Amount, ports.ErrInvalidRequest)
	}
	sellPrice := (exec.ActualOutput - exec.Commission) / tokens
	realized := (sellPrice - pos.AvgBuyPrice) * tokens
	pos.Amount -= tokens
	if pos.Amount == 0 {
		pos.AvgBuyPrice = 0
	}
	return realized, nil
}

// Recompute rebuilds the portfolio aggregate from the union of the user's
// positions at current market prices, logging drift beyond tolerance before
// correcting it.
func (r *Reconciler) Recompute(ctx context.Context, userID string) (*domain.Portfolio, error) {
	return r.recompute(ctx, userID, true)
}

func (r *Reconciler) recompute(ctx context.Context, userID string, checkDrift bool) (*domain.Portfolio, error) {
	op := "Recompute"
	positions, err := r.positions.FindPositionsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list positions: %w", op, err)
	}

	totalValue := 0.0
	for _, pos := range positions {
		totalValue += pos.Amount * r.priceFor(ctx, pos)
	}

	stored, err := r.portfolios.FindPortfolio(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to load portfolio: %w", op, err)
	}
	pf := &domain.Portfolio{UserID: userID}
	if stored != nil {
		*pf = *stored
		drift := math.Abs(stored.TotalValue - totalValue)
		base := math.Max(math.Abs(totalValue), 1)
		if checkDrift && drift/base > r.driftTolerance {
			r.logger.Warn(ctx, "Reconciliation drift detected, correcting aggregate", map[string]interface{}{
				"op": op, "userID": userID, "stored": stored.TotalValue, "recomputed": totalValue,
				"relativeDrift": drift / base,
			})
		}
	}
	pf.TotalValue = totalValue
	pf.LastUpdated = time.Now().UTC()

	if err := r.portfolios.UpsertPortfolio(ctx, pf); err != nil {
		return nil, fmt.Errorf("%s: failed to persist portfolio: %w", op, err)
	}
	return pf, nil
}

// priceFor values a position at market, falling back to its cost basis when
// no price is available.
func (r *Reconciler) priceFor(ctx context.Context, pos *domain.Position) float64 {
	if r.prices == nil {
		return pos.AvgBuyPrice
	}
	price, err := r.prices.Price(ctx, pos.TokenSymbol)
	if err != nil || price <= 0 {
		return pos.AvgBuyPrice
	}
	return price
}
