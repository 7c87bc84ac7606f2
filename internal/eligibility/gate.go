// Package eligibility decides whether a user may trade right now. The gate is
// a pure predicate over precomputed facts; it performs no I/O and fails
// closed when a fact is missing.
package eligibility

import "fmt"

// Facts are the user attributes the gate evaluates. Pointer fields separate
// "known false/zero" from "not known at all"; a nil fact makes the user
// ineligible.
type Facts struct {
	EmailVerified   *bool
	WalletConnected *bool
	TokenBalance    *float64
	RiskTolerance   *string
	DailyTradeCount *int
}

// Decision is the gate's verdict. Reasons list every failed check, not just
// the first one, so callers can report all of them at once.
type Decision struct {
	Eligible bool
	Reasons  []string
}

// Gate evaluates trading eligibility against configured thresholds.
type Gate struct {
	minTokenBalance float64
	maxDailyTrades  int
}

// NewGate creates a gate. maxDailyTrades <= 0 disables the daily cap.
func NewGate(minTokenBalance float64, maxDailyTrades int) *Gate {
	return &Gate{minTokenBalance: minTokenBalance, maxDailyTrades: maxDailyTrades}
}

// Check evaluates all facts and collects every failure reason.
func (g *Gate) Check(facts Facts) Decision {
	var reasons []string

	if facts.EmailVerified == nil {
		reasons = append(reasons, "email verification status unknown")
	} else if !*facts.EmailVerified {
		reasons = append(reasons, "email not verified")
	}

	if facts.WalletConnected == nil {
		reasons = append(reasons, "wallet connection status unknown")
	} else if !*facts.WalletConnected {
		reasons = append(reasons, "wallet not connected")
	}

	if facts.TokenBalance == nil {
		reasons = append(reasons, "token balance unknown")
	} else if *facts.TokenBalance < g.minTokenBalance {
		reasons = append(reasons, fmt.Sprintf("token balance %.4f below minimum %.4f", *facts.TokenBalance, g.minTokenBalance))
	}

	if facts.RiskTolerance == nil || *facts.RiskTolerance == "" {
		reasons = append(reasons, "risk tolerance not set")
	}

	if facts.DailyTradeCount == nil {
		reasons = append(reasons, "daily trade count unknown")
	} else if g.maxDailyTrades > 0 && *facts.DailyTradeCount >= g.maxDailyTrades {
		reasons = append(reasons, fmt.Sprintf("daily trade limit reached (%d of %d)", *facts.DailyTradeCount, g.maxDailyTrades))
	}

	return Decision{Eligible: len(reasons) == 0, Reasons: reasons}
}
