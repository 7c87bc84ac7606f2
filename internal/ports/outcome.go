package ports

import "hydrabot/internal/domain"

// SimOutcome is a drawn result for one simulated execution.
type SimOutcome struct {
	Success  bool
	Slippage float64 // Signed fraction applied to the expected output
	ErrMsg   string  // Failure reason when Success is false
}

// OutcomeProvider draws the result of a simulated execution. Production wiring
// uses a seeded random provider; tests supply deterministic fixtures. Core
// execution logic never calls math/rand directly.
type OutcomeProvider interface {
	Outcome(exec *domain.TradeExecution) SimOutcome
}
