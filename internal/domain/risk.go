package domain

// RiskLevel is a coarse classification of assessed trading risk.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// RiskAssessment is derived pre-trade from a return/price series. It is not
// persisted as core state; callers recompute it as inputs change.
type RiskAssessment struct {
	RiskLevel               RiskLevel
	RiskScore               float64 // 0..10
	ValueAtRisk             float64 // Loss not expected to be exceeded at 95% confidence
	MaxDrawdown             float64 // Peak-to-trough fraction over the price series
	Volatility              float64 // Population standard deviation of returns
	Beta                    float64
	RecommendedPositionSize float64 // Kelly-derived sizing against portfolio value
	StopLoss                float64 // Suggested stop price for the entry under review
}
