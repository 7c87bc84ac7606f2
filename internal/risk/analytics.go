// Package risk provides stateless trade-risk analytics: Kelly position
// sizing, historical value at risk, drawdown and Sharpe computations. All
// functions are deterministic over their inputs.
package risk

import (
	"math"
	"sort"

	"hydrabot/internal/domain"
)

const (
	// Kelly fraction clamp bounds. Below the floor a position is noise,
	// above the ceiling a single loss hurts too much.
	kellyFloor   = 0.01
	kellyCeiling = 0.25

	varConfidence = 0.05 // 5th percentile loss, i.e. VaR(95%)
)

// KellyFraction computes the Kelly criterion position fraction
// f = w - (1-w)/(avgWin/avgLoss), clamped to [0.01, 0.25].
// Degenerate inputs (non-positive averages, win rate outside (0,1))
// return the floor.
func KellyFraction(winRate, avgWin, avgLoss float64) float64 {
	if winRate <= 0 || winRate >= 1 || avgWin <= 0 || avgLoss <= 0 {
		return kellyFloor
	}
	ratio := avgWin / avgLoss
	f := winRate - (1-winRate)/ratio
	if f < kellyFloor {
		return kellyFloor
	}
	if f > kellyCeiling {
		return kellyCeiling
	}
	return f
}

// KellySize returns the recommended position size for a portfolio value.
func KellySize(portfolioValue, winRate, avgWin, avgLoss float64) float64 {
	if portfolioValue <= 0 {
		return 0
	}
	return portfolioValue * KellyFraction(winRate, avgWin, avgLoss)
}

// HistoricalVaR computes the 95% value at risk of a position: the 5th
// percentile of the return distribution scaled by position size, reported as
// a non-negative loss figure. Returns 0 when the series is empty.
func HistoricalVaR(returns []float64, positionSize float64) float64 {
	if len(returns) == 0 || positionSize <= 0 {
		return 0
	}
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	idx := int(math.Floor(varConfidence * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	loss := sorted[idx] * positionSize
	if loss >= 0 {
		return 0
	}
	return -loss
}

// MaxDrawdown returns the largest peak-to-trough decline over a price series,
// expressed as a fraction of the peak. Returns 0 for fewer than two prices.
func MaxDrawdown(prices []float64) float64 {
	if len(prices) < 2 {
		return 0
	}
	peak := prices[0]
	maxDD := 0.0
	for _, p := range prices[1:] {
		if p > peak {
			peak = p
			continue
		}
		if peak > 0 {
			dd := (peak - p) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// SharpeRatio computes mean return over population standard deviation.
// Annualization is left to the caller. Returns 0 when the series is empty or
// has zero variance.
func SharpeRatio(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns))
	if variance == 0 {
		return 0
	}
	return mean / math.Sqrt(variance)
}

// Volatility returns the population standard deviation of a return series.
func Volatility(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))
	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(returns)))
}

// AssessInput bundles the series and stats Assess needs.
type AssessInput struct {
	Returns        []float64
	Prices         []float64
	PortfolioValue float64
	PositionSize   float64
	WinRate        float64
	AvgWin         float64
	AvgLoss        float64
	Beta           float64
	CurrentPrice   float64
}

// Assess builds a full risk assessment from historical series and trade
// statistics.
func Assess(in AssessInput) domain.RiskAssessment {
	vol := Volatility(in.Returns)
	dd := MaxDrawdown(in.Prices)
	vaR := HistoricalVaR(in.Returns, in.PositionSize)
	recommended := KellySize(in.PortfolioValue, in.WinRate, in.AvgWin, in.AvgLoss)

	// Composite score in [0,1]: volatility and drawdown dominate, VaR share
	// of position adds the tail-risk component.
	score := 0.0
	score += math.Min(vol*4, 1.0) * 0.4
	score += math.Min(dd*2, 1.0) * 0.4
	if in.PositionSize > 0 {
		score += math.Min(vaR/in.PositionSize*4, 1.0) * 0.2
	}

	level := domain.RiskLow
	switch {
	case score >= 0.75:
		level = domain.RiskCritical
	case score >= 0.5:
		level = domain.RiskHigh
	case score >= 0.25:
		level = domain.RiskMedium
	}

	stopLoss := 0.0
	if in.CurrentPrice > 0 {
		// Stop distance widens with volatility, floored at 2%.
		dist := math.Max(0.02, vol*2)
		stopLoss = in.CurrentPrice * (1 - dist)
	}

	return domain.RiskAssessment{
		RiskLevel:               level,
		RiskScore:               score,
		ValueAtRisk:             vaR,
		MaxDrawdown:             dd,
		Volatility:              vol,
		Beta:                    in.Beta,
		RecommendedPositionSize: recommended,
		StopLoss:                stopLoss,
	}
}
