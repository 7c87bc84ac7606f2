package risk

import (
	"math"
	"testing"

	"hydrabot/internal/domain"
)

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestKellyFraction(t *testing.T) {
	tests := []struct {
		name    string
		winRate float64
		avgWin  float64
		avgLoss float64
		want    float64
	}{
		{"favorable edge", 0.6, 100, 50, 0.25},        // raw 0.4, clamped to ceiling
		{"moderate edge", 0.55, 60, 50, 0.175},        // 0.55 - 0.45/1.2
		{"no edge clamps to floor", 0.5, 50, 50, 0.01}, // raw 0
		{"negative edge clamps to floor", 0.3, 50, 50, 0.01},
		{"zero win rate degenerate", 0, 50, 50, 0.01},
		{"win rate of one degenerate", 1, 50, 50, 0.01},
		{"zero avg win degenerate", 0.6, 0, 50, 0.01},
		{"zero avg loss degenerate", 0.6, 50, 0, 0.01},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := KellyFraction(tt.winRate, tt.avgWin, tt.avgLoss)
			if !almostEqual(got, tt.want, 1e-9) {
				t.Errorf("KellyFraction(%v, %v, %v) = %v, want %v", tt.winRate, tt.avgWin, tt.avgLoss, got, tt.want)
			}
		})
	}
}

func TestKellyFraction_AlwaysBounded(t *testing.T) {
	// Property: for any inputs the fraction stays inside [0.01, 0.25].
	winRates := []float64{-1, 0, 0.01, 0.3, 0.5, 0.7, 0.99, 1, 2}
	amounts := []float64{-10, 0, 0.5, 1, 10, 1000, 1e9}
	for _, w := range winRates {
		for _, win := range amounts {
			for _, loss := range amounts {
				f := KellyFraction(w, win, loss)
				if f < 0.01 || f > 0.25 {
					t.Fatalf("KellyFraction(%v, %v, %v) = %v out of [0.01, 0.25]", w, win, loss, f)
				}
			}
		}
	}
}

func TestKellySize(t *testing.T) {
	got := KellySize(10000, 0.55, 60, 50)
	want := 10000 * 0.175
	if !almostEqual(got, want, 1e-6) {
		t.Errorf("KellySize = %v, want %v", got, want)
	}
	if KellySize(0, 0.55, 60, 50) != 0 {
		t.Error("KellySize with zero portfolio should be 0")
	}
	if KellySize(-100, 0.55, 60, 50) != 0 {
		t.Error("KellySize with negative portfolio should be 0")
	}
}

func TestHistoricalVaR(t *testing.T) {
	// 20 returns, 5th percentile lands on index 1 of the sorted slice.
	returns := []float64{
		-0.10, -0.05, -0.02, -0.01, 0.0, 0.01, 0.01, 0.02, 0.02, 0.03,
		0.03, 0.04, 0.04, 0.05, 0.05, 0.06, 0.07, 0.08, 0.09, 0.10,
	}
	got := HistoricalVaR(returns, 1000)
	want := 0.05 * 1000 // sorted[1] = -0.05
	if !almostEqual(got, want, 1e-9) {
		t.Errorf("HistoricalVaR = %v, want %v", got, want)
	}

	if HistoricalVaR(nil, 1000) != 0 {
		t.Error("empty series should give zero VaR")
	}
	if HistoricalVaR(returns, 0) != 0 {
		t.Error("zero position should give zero VaR")
	}
	// All-positive returns mean no loss at the percentile.
	if got := HistoricalVaR([]float64{0.01, 0.02, 0.03}, 1000); got != 0 {
		t.Errorf("all-gain series should give zero VaR, got %v", got)
	}
}

func TestHistoricalVaR_DoesNotMutateInput(t *testing.T) {
	returns := []float64{0.05, -0.10, 0.02}
	HistoricalVaR(returns, 100)
	if returns[0] != 0.05 || returns[1] != -0.10 || returns[2] != 0.02 {
		t.Error("input slice was reordered")
	}
}

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		want   float64
	}{
		{"single peak and trough", []float64{100, 120, 60, 90}, 0.5},
		{"monotonic rise", []float64{100, 110, 120}, 0},
		{"monotonic fall", []float64{100, 80, 50}, 0.5},
		{"later deeper drawdown wins", []float64{100, 90, 110, 40}, (110.0 - 40.0) / 110.0},
		{"too short", []float64{100}, 0},
		{"empty", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MaxDrawdown(tt.prices)
			if !almostEqual(got, tt.want, 1e-9) {
				t.Errorf("MaxDrawdown(%v) = %v, want %v", tt.prices, got, tt.want)
			}
		})
	}
}

func TestSharpeRatio(t *testing.T) {
	returns := []float64{0.01, 0.02, 0.03}
	mean := 0.02
	sigma := math.Sqrt(((0.01-mean)*(0.01-mean) + (0.02-mean)*(0.02-mean) + (0.03-mean)*(0.03-mean)) / 3)
	got := SharpeRatio(returns)
	if !almostEqual(got, mean/sigma, 1e-9) {
		t.Errorf("SharpeRatio = %v, want %v", got, mean/sigma)
	}

	if SharpeRatio(nil) != 0 {
		t.Error("empty series should give zero Sharpe")
	}
	if SharpeRatio([]float64{0.02, 0.02, 0.02}) != 0 {
		t.Error("zero-variance series should give zero Sharpe")
	}
}

func TestAssess(t *testing.T) {
	calm := Assess(AssessInput{
		Returns:        []float64{0.01, -0.005, 0.008, 0.002, -0.003},
		Prices:         []float64{100, 101, 100.5, 101.2, 101.0},
		PortfolioValue: 10000,
		PositionSize:   500,
		WinRate:        0.55,
		AvgWin:         60,
		AvgLoss:        50,
		Beta:           1.1,
		CurrentPrice:   101.0,
	})
	if calm.RiskLevel != domain.RiskLow && calm.RiskLevel != domain.RiskMedium {
		t.Errorf("calm series should be low or medium risk, got %s", calm.RiskLevel)
	}
	if calm.RecommendedPositionSize <= 0 {
		t.Error("recommended size should be positive")
	}
	if calm.StopLoss <= 0 || calm.StopLoss >= 101.0 {
		t.Errorf("stop loss %v should be below current price", calm.StopLoss)
	}
	if calm.Beta != 1.1 {
		t.Errorf("beta should pass through, got %v", calm.Beta)
	}

	wild := Assess(AssessInput{
		Returns:        []float64{0.30, -0.40, 0.25, -0.35, 0.20, -0.30},
		Prices:         []float64{100, 130, 78, 97, 63, 76},
		PortfolioValue: 10000,
		PositionSize:   500,
		WinRate:        0.5,
		AvgWin:         50,
		AvgLoss:        50,
		CurrentPrice:   76,
	})
	if wild.RiskLevel != domain.RiskHigh && wild.RiskLevel != domain.RiskCritical {
		t.Errorf("volatile series should be high or critical risk, got %s", wild.RiskLevel)
	}
	if wild.RiskScore <= calm.RiskScore {
		t.Errorf("volatile score %v should exceed calm score %v", wild.RiskScore, calm.RiskScore)
	}
}

func TestAssess_Deterministic(t *testing.T) {
	in := AssessInput{
		Returns:        []float64{0.01, -0.02, 0.03},
		Prices:         []float64{10, 11, 9, 10},
		PortfolioValue: 5000,
		PositionSize:   250,
		WinRate:        0.6,
		AvgWin:         30,
		AvgLoss:        20,
		CurrentPrice:   10,
	}
	a := Assess(in)
	b := Assess(in)
	if a != b {
		t.Error("Assess must be deterministic for identical inputs")
	}
}
