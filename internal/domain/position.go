package domain

import "time"

// Position is a user's holding in a single token. It is owned exclusively by
// one portfolio and mutated only by the reconciler when fills settle.
type Position struct {
	UserID      string
	TokenSymbol string
	Amount      float64 // Never negative; an oversell is rejected upstream
	AvgBuyPrice float64 // Weighted-average cost basis, never negative
	UpdatedAt   time.Time
}

// MarketValue returns the position value at the given market price.
func (p *Position) MarketValue(price float64) float64 {
	return p.Amount * price
}

// Portfolio aggregates a user's positions. TotalValue is eventually consistent
// with the sum of position market values within a bounded staleness window.
type Portfolio struct {
	UserID      string
	TotalValue  float64
	TotalPnl    float64
	DailyPnl    float64
	LastUpdated time.Time
}
