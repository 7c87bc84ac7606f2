package domain

// OrderSide represents the side of an order (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// SignalType is the directional recommendation carried by a trading signal.
type SignalType string

const (
	SignalBuy  SignalType = "BUY"
	SignalSell SignalType = "SELL"
	SignalHold SignalType = "HOLD"
)

// OrderStatus represents the status of an order. PENDING moves through
// SUBMITTED while an execution is in flight; FILLED and CANCELLED are
// terminal and never return to PENDING. SUBMITTED may fall back to PENDING
// when execution never started (quote failure, shutdown).
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderSubmitted OrderStatus = "SUBMITTED"
	OrderFilled    OrderStatus = "FILLED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// ExecutionStatus represents the status of a trade execution.
// It moves PENDING -> {SUCCESS, FAILED} exactly once.
type ExecutionStatus string

const (
	ExecutionPending ExecutionStatus = "PENDING"
	ExecutionSuccess ExecutionStatus = "SUCCESS"
	ExecutionFailed  ExecutionStatus = "FAILED"
)

// IsTerminal reports whether the execution status is final.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionSuccess || s == ExecutionFailed
}

// CommissionTxType classifies a commission ledger entry.
type CommissionTxType string

const (
	CommissionTrade CommissionTxType = "TRADE"
	CommissionBurn  CommissionTxType = "BURN"
	CommissionStake CommissionTxType = "STAKE"
)

// CommissionTxStatus is the settlement state of a commission ledger entry.
type CommissionTxStatus string

const (
	CommissionConfirmed CommissionTxStatus = "CONFIRMED"
	CommissionReversed  CommissionTxStatus = "REVERSED"
)
