package domain

import "time"

// EventType names a finalized state change pushed to downstream consumers.
type EventType string

const (
	EventSignalReceived    EventType = "signal.received"
	EventOrderCreated      EventType = "order.created"
	EventTradeExecuted     EventType = "trade.executed"
	EventTradeFailed       EventType = "trade.failed"
	EventCommissionApplied EventType = "commission.applied"
	EventPortfolioUpdated  EventType = "portfolio.updated"
)

// Event is a fire-and-forget notification of a finalized state change.
// Broadcasting never participates in settlement correctness.
type Event struct {
	Type      EventType              `json:"type"`
	UserID    string                 `json:"userId,omitempty"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp time.Time              `json:"timestamp"`
}
