package domain

import "time"

// TradingSignal is an external trading recommendation produced by one of the
// strategy engines. Signals are immutable once created and are consumed at
// most once per auto-trade decision per user.
type TradingSignal struct {
	ID             string     // Unique identifier assigned at ingestion
	Engine         string     // Originating engine (e.g., "sniper", "ai-signals")
	Symbol         string     // Token symbol the signal refers to
	Type           SignalType // BUY, SELL or HOLD
	Confidence     float64    // Engine confidence in [0, 1]
	Price          float64    // Reference price at signal creation
	Reasoning      string     // Human-readable rationale from the engine
	ExpectedReturn float64    // Engine's projected return percentage
	Strength       string     // Qualitative strength ("low", "medium", "high")
	Timeframe      string     // Horizon the signal applies to (e.g., "5m", "1h")
	CreatedAt      time.Time
}
