package treasury

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/treasury/backend/internal/domain/shared"
)

// PoolCreatedEvent is raised when a new cash pool is created in Draft
type PoolCreatedEvent struct {
	shared.BaseDomainEvent
	PoolID   uuid.UUID `json:"pool_id"`
	Name     string    `json:"name"`
	PoolType PoolType  `json:"pool_type"`
	Currency string    `json:"currency"`
}

// EventType returns the event type name
func (e *PoolCreatedEvent) EventType() string {
	return "CashPoolCreated"
}

// NewPoolCreatedEvent creates a new PoolCreatedEvent
func NewPoolCreatedEvent(p *CashPool) *PoolCreatedEvent {
	return &PoolCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("CashPoolCreated", "CashPool", p.ID, p.TenantID),
		PoolID:          p.ID,
		Name:            p.Name,
		PoolType:        p.PoolType,
		Currency:        string(p.Currency),
	}
}

// PoolActivatedEvent is raised when a pool passes activation checks
type PoolActivatedEvent struct {
	shared.BaseDomainEvent
	PoolID        uuid.UUID `json:"pool_id"`
	MemberCount   int       `json:"member_count"`
	Intercompany  bool      `json:"intercompany"`
	RateBenchmark string    `json:"rate_benchmark"`
}

// EventType returns the event type name
func (e *PoolActivatedEvent) EventType() string {
	return "CashPoolActivated"
}

// NewPoolActivatedEvent creates a new PoolActivatedEvent
func NewPoolActivatedEvent(p *CashPool) *PoolActivatedEvent {
	return &PoolActivatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("CashPoolActivated", "CashPool", p.ID, p.TenantID),
		PoolID:          p.ID,
		MemberCount:     len(p.Members),
		Intercompany:    p.IsIntercompany(),
		RateBenchmark:   p.RateBenchmark,
	}
}

// PoolSuspendedEvent is raised when a pool is suspended
type PoolSuspendedEvent struct {
	shared.BaseDomainEvent
	PoolID uuid.UUID `json:"pool_id"`
	Reason string    `json:"reason"`
}

// EventType returns the event type name
func (e *PoolSuspendedEvent) EventType() string {
	return "CashPoolSuspended"
}

// NewPoolSuspendedEvent creates a new PoolSuspendedEvent
func NewPoolSuspendedEvent(p *CashPool, reason string) *PoolSuspendedEvent {
	return &PoolSuspendedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("CashPoolSuspended", "CashPool", p.ID, p.TenantID),
		PoolID:          p.ID,
		Reason:          reason,
	}
}

// PoolResumedEvent is raised when a suspended pool returns to active
type PoolResumedEvent struct {
	shared.BaseDomainEvent
	PoolID uuid.UUID `json:"pool_id"`
}

// EventType returns the event type name
func (e *PoolResumedEvent) EventType() string {
	return "CashPoolResumed"
}

// NewPoolResumedEvent creates a new PoolResumedEvent
func NewPoolResumedEvent(p *CashPool) *PoolResumedEvent {
	return &PoolResumedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("CashPoolResumed", "CashPool", p.ID, p.TenantID),
		PoolID:          p.ID,
	}
}

// PoolClosedEvent is raised when a pool reaches its terminal state
type PoolClosedEvent struct {
	shared.BaseDomainEvent
	PoolID uuid.UUID `json:"pool_id"`
}

// EventType returns the event type name
func (e *PoolClosedEvent) EventType() string {
	return "CashPoolClosed"
}

// NewPoolClosedEvent creates a new PoolClosedEvent
func NewPoolClosedEvent(p *CashPool) *PoolClosedEvent {
	return &PoolClosedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("CashPoolClosed", "CashPool", p.ID, p.TenantID),
		PoolID:          p.ID,
	}
}

// PoolConfigAppliedEvent is raised when an approved config change lands
type PoolConfigAppliedEvent struct {
	shared.BaseDomainEvent
	PoolID                 uuid.UUID       `json:"pool_id"`
	ChangeID               uuid.UUID       `json:"change_id"`
	NewVersion             int             `json:"new_version"`
	TargetBalance          decimal.Decimal `json:"target_balance"`
	SweepThreshold         decimal.Decimal `json:"sweep_threshold"`
	DailyLimit             decimal.Decimal `json:"daily_limit"`
	SingleTransactionLimit decimal.Decimal `json:"single_transaction_limit"`
}

// EventType returns the event type name
func (e *PoolConfigAppliedEvent) EventType() string {
	return "CashPoolConfigApplied"
}

// NewPoolConfigAppliedEvent creates a new PoolConfigAppliedEvent
func NewPoolConfigAppliedEvent(p *CashPool, changeID uuid.UUID) *PoolConfigAppliedEvent {
	return &PoolConfigAppliedEvent{
		BaseDomainEvent:        shared.NewBaseDomainEvent("CashPoolConfigApplied", "CashPool", p.ID, p.TenantID),
		PoolID:                 p.ID,
		ChangeID:               changeID,
		NewVersion:             p.Version,
		TargetBalance:          p.TargetBalance,
		SweepThreshold:         p.SweepThreshold,
		DailyLimit:             p.DailyLimit,
		SingleTransactionLimit: p.SingleTransactionLimit,
	}
}
