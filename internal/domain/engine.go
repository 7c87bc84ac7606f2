package domain

// EngineParams bounds what a strategy engine may commit per order.
type EngineParams struct {
	ID            string
	Name          string
	MinInvestment float64 // Orders below this are rejected
	MaxPosition   float64 // Orders above this are rejected
	RiskLevel     string
}

// DefaultEngines is the built-in engine catalog. The ingestor consults it for
// position bounds; the auto-execution whitelist is configured separately.
var DefaultEngines = map[string]EngineParams{
	"sniper":     {ID: "sniper", Name: "Sniper Engine", MinInvestment: 100, MaxPosition: 50000, RiskLevel: "high"},
	"reentry":    {ID: "reentry", Name: "Re-entry Engine", MinInvestment: 250, MaxPosition: 75000, RiskLevel: "medium"},
	"ai-signals": {ID: "ai-signals", Name: "AI Signals Engine", MinInvestment: 500, MaxPosition: 40000, RiskLevel: "medium"},
	"guardian":   {ID: "guardian", Name: "Guardian Engine", MinInvestment: 1000, MaxPosition: 25000, RiskLevel: "low"},
	"scalper":    {ID: "scalper", Name: "Scalper Engine", MinInvestment: 50, MaxPosition: 30000, RiskLevel: "medium"},
	"arbitrage":  {ID: "arbitrage", Name: "Arbitrage Engine", MinInvestment: 2000, MaxPosition: 100000, RiskLevel: "low"},
}

// LookupEngine returns the parameters for an engine ID, if known.
func LookupEngine(id string) (EngineParams, bool) {
	p, ok := DefaultEngines[id]
	return p, ok
}
