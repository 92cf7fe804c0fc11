package treasury

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/treasury/backend/internal/domain/shared"
	"github.com/treasury/backend/internal/domain/shared/valueobject"
)

// AllocationLine is one entity's share of the pool interest for a
// period. RoundingResidual is non-zero only on the line the residual
// cents were assigned to.
type AllocationLine struct {
	ID                  uuid.UUID       `gorm:"type:uuid;primary_key"`
	AllocationID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	EntityID            uuid.UUID       `gorm:"type:uuid;not null;index"`
	TimeWeightedBalance decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Share               decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	RoundingResidual    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	PostingRef          string          `gorm:"type:varchar(100)"`
}

// TableName returns the table name for GORM
func (AllocationLine) TableName() string {
	return "interest_allocation_lines"
}

// InterestAllocation is the aggregate root recording the pro-rata
// distribution of pooled interest for a closed period.
//
// Invariant: the per-entity lines sum to the pool-level total exactly;
// the rounding residual is assigned deterministically, never dropped.
type InterestAllocation struct {
	shared.TenantAggregateRoot
	PoolID        uuid.UUID            `gorm:"type:uuid;not null;uniqueIndex:idx_alloc_pool_period,priority:1"`
	PeriodStart   time.Time            `gorm:"not null;uniqueIndex:idx_alloc_pool_period,priority:2"`
	PeriodEnd     time.Time            `gorm:"not null;uniqueIndex:idx_alloc_pool_period,priority:3"`
	Rate          decimal.Decimal      `gorm:"type:decimal(10,6);not null"`
	DayCountBasis int                  `gorm:"not null"`
	TotalInterest decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	Currency      valueobject.Currency `gorm:"type:varchar(3);not null"`
	Lines         []AllocationLine     `gorm:"foreignKey:AllocationID;references:ID"`
	CorrelationID uuid.UUID            `gorm:"type:uuid;not null"`
}

// TableName returns the table name for GORM
func (InterestAllocation) TableName() string {
	return "interest_allocations"
}

// NewInterestAllocation creates an allocation and verifies the
// sum-of-parts invariant against the computed total.
func NewInterestAllocation(
	tenantID, poolID uuid.UUID,
	periodStart, periodEnd time.Time,
	rate decimal.Decimal,
	dayCountBasis int,
	total valueobject.Money,
	lines []ComputedAllocationLine,
) (*InterestAllocation, error) {
	if !periodEnd.After(periodStart) {
		return nil, ErrInterestCalculationFailed("period end must be after period start")
	}
	if rate.IsNegative() {
		return nil, ErrInvalidRate("rate must not be negative")
	}
	if dayCountBasis <= 0 {
		return nil, ErrInterestCalculationFailed("day count basis must be positive")
	}

	alloc := &InterestAllocation{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		PoolID:              poolID,
		PeriodStart:         periodStart,
		PeriodEnd:           periodEnd,
		Rate:                rate,
		DayCountBasis:       dayCountBasis,
		TotalInterest:       total.Amount(),
		Currency:            total.Currency(),
		Lines:               make([]AllocationLine, 0, len(lines)),
		CorrelationID:       uuid.New(),
	}

	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(line.Share)
		alloc.Lines = append(alloc.Lines, AllocationLine{
			ID:                  uuid.New(),
			AllocationID:        alloc.ID,
			EntityID:            line.EntityID,
			TimeWeightedBalance: line.TimeWeightedBalance,
			Share:               line.Share,
			RoundingResidual:    line.RoundingResidual,
		})
	}
	if !sum.Equal(total.Amount()) {
		return nil, ErrInterestCalculationFailed("allocation lines do not sum to the pool interest total")
	}

	alloc.AddDomainEvent(NewInterestAllocatedEvent(alloc))

	return alloc, nil
}

// SetLinePostingRef records the ledger posting reference for an entity line
func (a *InterestAllocation) SetLinePostingRef(entityID uuid.UUID, postingRef string) {
	for i := range a.Lines {
		if a.Lines[i].EntityID == entityID {
			a.Lines[i].PostingRef = postingRef
			return
		}
	}
}

// FullyPosted reports whether every entity line carries a ledger
// posting reference
func (a *InterestAllocation) FullyPosted() bool {
	for i := range a.Lines {
		if a.Lines[i].PostingRef == "" {
			return false
		}
	}
	return true
}

// TotalInterestMoney returns the pool-level interest total as Money
func (a *InterestAllocation) TotalInterestMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(a.TotalInterest, a.Currency)
	return m
}

// LineForEntity returns the allocation line for an entity, or nil
func (a *InterestAllocation) LineForEntity(entityID uuid.UUID) *AllocationLine {
	for i := range a.Lines {
		if a.Lines[i].EntityID == entityID {
			return &a.Lines[i]
		}
	}
	return nil
}

// InterestAllocatedEvent is raised when a period's interest is allocated
type InterestAllocatedEvent struct {
	shared.BaseDomainEvent
	AllocationID  uuid.UUID       `json:"allocation_id"`
	PoolID        uuid.UUID       `json:"pool_id"`
	PeriodStart   time.Time       `json:"period_start"`
	PeriodEnd     time.Time       `json:"period_end"`
	TotalInterest decimal.Decimal `json:"total_interest"`
	LineCount     int             `json:"line_count"`
	CorrelationID uuid.UUID       `json:"correlation_id"`
}

// EventType returns the event type name
func (e *InterestAllocatedEvent) EventType() string {
	return "InterestAllocated"
}

// NewInterestAllocatedEvent creates a new InterestAllocatedEvent
func NewInterestAllocatedEvent(a *InterestAllocation) *InterestAllocatedEvent {
	return &InterestAllocatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("InterestAllocated", "InterestAllocation", a.ID, a.TenantID),
		AllocationID:    a.ID,
		PoolID:          a.PoolID,
		PeriodStart:     a.PeriodStart,
		PeriodEnd:       a.PeriodEnd,
		TotalInterest:   a.TotalInterest,
		LineCount:       len(a.Lines),
		CorrelationID:   a.CorrelationID,
	}
}
