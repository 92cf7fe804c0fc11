package treasury

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/treasury/backend/internal/domain/shared"
)

// CashPoolRepository defines the persistence contract for cash pools
type CashPoolRepository interface {
	Save(ctx context.Context, pool *CashPool) error
	// SaveWithLock persists the pool only if the stored version matches
	// the aggregate's pre-mutation version, returning VERSION_CONFLICT
	// otherwise
	SaveWithLock(ctx context.Context, pool *CashPool, expectedVersion int) error
	FindByID(ctx context.Context, tenantID, poolID uuid.UUID) (*CashPool, error)
	FindByStatus(ctx context.Context, tenantID uuid.UUID, status PoolStatus, filter shared.Filter) (*shared.Paginated[*CashPool], error)
	FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[*CashPool], error)
}

// CashSweepRepository defines the persistence contract for sweeps
type CashSweepRepository interface {
	Save(ctx context.Context, sweep *CashSweep) error
	SaveWithLock(ctx context.Context, sweep *CashSweep, expectedVersion int) error
	FindByID(ctx context.Context, tenantID, sweepID uuid.UUID) (*CashSweep, error)
	// FindByIdempotencyKey returns the sweep previously recorded for the
	// key, or nil when the key is unseen
	FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*CashSweep, error)
	FindByPool(ctx context.Context, tenantID, poolID uuid.UUID, filter shared.Filter) (*shared.Paginated[*CashSweep], error)
	// SumSettledForDate totals the absolute amounts of Executed and
	// NeedsReconciliation sweeps for a pool on a date. Feeds the
	// daily-limit gate: partially posted sweeps still consumed limit.
	SumSettledForDate(ctx context.Context, tenantID, poolID uuid.UUID, date time.Time) (decimal.Decimal, error)
	// ExistsUnreconciledForPair reports whether an unreconciled
	// NEEDS_RECONCILIATION sweep blocks the account pair (either
	// direction)
	ExistsUnreconciledForPair(ctx context.Context, tenantID uuid.UUID, accountA, accountB string) (bool, error)
	CountPendingForPool(ctx context.Context, tenantID, poolID uuid.UUID) (int64, error)
	FindNeedingReconciliation(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[*CashSweep], error)
}

// InterestAllocationRepository defines the persistence contract for
// interest allocations
type InterestAllocationRepository interface {
	Save(ctx context.Context, allocation *InterestAllocation) error
	FindByID(ctx context.Context, tenantID, allocationID uuid.UUID) (*InterestAllocation, error)
	// FindByPeriod returns the allocation recorded for the exact period,
	// or nil when none exists. Backs both the one-allocation-per-period
	// invariant and retry resumption of a partially posted allocation.
	FindByPeriod(ctx context.Context, tenantID, poolID uuid.UUID, periodStart, periodEnd time.Time) (*InterestAllocation, error)
	FindByPool(ctx context.Context, tenantID, poolID uuid.UUID, filter shared.Filter) (*shared.Paginated[*InterestAllocation], error)
}

// PoolConfigChangeRepository defines the persistence contract for
// config change requests
type PoolConfigChangeRepository interface {
	Save(ctx context.Context, change *PoolConfigChange) error
	SaveWithLock(ctx context.Context, change *PoolConfigChange, expectedVersion int) error
	FindByID(ctx context.Context, tenantID, changeID uuid.UUID) (*PoolConfigChange, error)
	FindPendingByPool(ctx context.Context, tenantID, poolID uuid.UUID) ([]*PoolConfigChange, error)
	CountPendingForPool(ctx context.Context, tenantID, poolID uuid.UUID) (int64, error)
}

// PoolConfigHistoryRepository is append-only: snapshots are written and
// listed, never updated or deleted
type PoolConfigHistoryRepository interface {
	Append(ctx context.Context, history *PoolConfigHistory) error
	FindByPool(ctx context.Context, tenantID, poolID uuid.UUID, filter shared.Filter) (*shared.Paginated[*PoolConfigHistory], error)
}
