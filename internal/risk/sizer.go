package risk

import (
	"context"
	"fmt"

	"hydrabot/internal/ports"
)

// Sizer recommends position sizes from a user's portfolio value using the
// Kelly criterion. Trade statistics are configured operator-side until enough
// per-user history accumulates to estimate them.
type Sizer struct {
	portfolios ports.PortfolioRepository
	winRate    float64
	avgWin     float64
	avgLoss    float64
}

// NewSizer creates a Kelly position sizer.
func NewSizer(portfolios ports.PortfolioRepository, winRate, avgWin, avgLoss float64) (*Sizer, error) {
	if portfolios == nil {
		return nil, fmt.Errorf("portfolio repository is required")
	}
	if winRate < 0 || winRate > 1 {
		return nil, fmt.Errorf("win rate %f out of range: %w", winRate, ports.ErrConfigurationError)
	}
	return &Sizer{portfolios: portfolios, winRate: winRate, avgWin: avgWin, avgLoss: avgLoss}, nil
}

// RecommendedSize returns the Kelly position size for the user's current
// portfolio value. A zero recommendation means the user has no portfolio yet
// and the caller's default applies.
func (s *Sizer) RecommendedSize(ctx context.Context, userID string) (float64, error) {
	pf, err := s.portfolios.FindPortfolio(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to load portfolio for sizing: %w", err)
	}
	if pf == nil || pf.TotalValue <= 0 {
		return 0, nil
	}
	return KellySize(pf.TotalValue, s.winRate, s.avgWin, s.avgLoss), nil
}
