package domain

import "time"

// CommissionPoolID is the identifier of the singleton shared pool.
const CommissionPoolID = "main"

// CommissionPool is the shared ledger accumulating a percentage fee from
// every trade. It is the only globally shared mutable resource in the
// pipeline; writers must go through the versioned compare-and-swap update.
//
// Invariants: PendingBurn <= TotalCommissions at all times, and
// TotalCommissions equals the sum of all committed transaction amounts.
type CommissionPool struct {
	ID               string
	TotalCommissions float64
	TotalStaked      float64
	PendingBurn      float64
	Version          int64 // Optimistic-concurrency token, bumped on every write
	UpdatedAt        time.Time
}

// CommissionTransaction is one ledger entry, created exactly once per
// successful trade execution. ExecutionID is the idempotency key.
type CommissionTransaction struct {
	ID          string
	ExecutionID string
	UserID      string
	Amount      float64 // In platform-token units
	Type        CommissionTxType
	Status      CommissionTxStatus
	CreatedAt   time.Time
}

// CommissionStats is the read model exposed to callers of the stats operation.
type CommissionStats struct {
	Pool             CommissionPool
	DailyCommissions float64
}
