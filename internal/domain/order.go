package domain

import "time"

// Order represents a user's intent to trade, either created directly or
// derived from a trading signal by the ingestor.
type Order struct {
	ID             string      // Unique identifier (UUID)
	UserID         string      // Owning user
	Side           OrderSide   // BUY or SELL
	Symbol         string      // Token symbol being traded
	Amount         float64     // Requested input amount
	RequestedPrice float64     // Price at order creation (0 for market)
	Status         OrderStatus // PENDING, SUBMITTED, FILLED or CANCELLED
	SignalID       string      // Originating signal, empty for direct orders
	Engine         string      // Engine whose bounds were applied
	CreatedAt      time.Time
	ExpiresAt      time.Time // Zero value means the order never expires
}

// IsExpired reports whether the order has passed its expiry at the given time.
func (o *Order) IsExpired(now time.Time) bool {
	return !o.ExpiresAt.IsZero() && now.After(o.ExpiresAt)
}
