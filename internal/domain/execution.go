package domain

import "time"

// Quote is a swap proposal from the DEX aggregator, enriched with the
// platform commission. It is a value object and is never persisted beyond
// the execution it spawns.
type Quote struct {
	InputMint      string
	OutputMint     string
	InAmount       float64
	OutAmount      float64
	PriceImpactPct float64
	SlippageBps    int
	Commission     float64 // OutAmount x platform commission rate
}

// EffectiveRate returns the output per unit of input implied by the quote.
func (q *Quote) EffectiveRate() float64 {
	if q.InAmount == 0 {
		return 0
	}
	return q.OutAmount / q.InAmount
}

// TradeExecution records a single attempt to settle an order as an on-chain
// (or simulated) swap. Status moves PENDING -> {SUCCESS, FAILED} exactly once;
// the transition claim gates all downstream settlement so retried confirmation
// polling cannot double-apply side effects.
type TradeExecution struct {
	ID                   string
	OrderID              string
	UserID               string
	InputMint            string
	OutputMint           string
	InputAmount          float64
	ExpectedOutput       float64
	ActualOutput         float64
	Slippage             float64 // Realized deviation from ExpectedOutput, as a fraction
	Commission           float64 // In output-token units
	CommissionInPlatform float64 // Converted to the platform token
	TxSignature          string  // Chain signature; unique once set, empty for simulated
	Status               ExecutionStatus
	ErrorMessage         string
	ReconcileRequired    bool // Live-mode timeout: on-chain truth must be verified manually
	BlockTime            time.Time
	CreatedAt            time.Time
}
