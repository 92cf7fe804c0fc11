package treasury

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/treasury/backend/internal/domain/shared"
)

// PoolConfigDelta carries the proposed changes to pool parameters.
// Nil fields are left untouched when the delta is applied.
type PoolConfigDelta struct {
	Name                   *string          `json:"name,omitempty"`
	TargetBalance          *decimal.Decimal `json:"target_balance,omitempty"`
	SweepThreshold         *decimal.Decimal `json:"sweep_threshold,omitempty"`
	DailyLimit             *decimal.Decimal `json:"daily_limit,omitempty"`
	SingleTransactionLimit *decimal.Decimal `json:"single_transaction_limit,omitempty"`
	AgreementReference     *string          `json:"agreement_reference,omitempty"`
	RateBenchmark          *string          `json:"rate_benchmark,omitempty"`
}

// IsEmpty reports whether the delta proposes no change
func (d PoolConfigDelta) IsEmpty() bool {
	return d.Name == nil && d.TargetBalance == nil && d.SweepThreshold == nil &&
		d.DailyLimit == nil && d.SingleTransactionLimit == nil &&
		d.AgreementReference == nil && d.RateBenchmark == nil
}

// PoolConfigChange is the aggregate root for the dual-approval workflow
// that mutates pool parameters. Invariant: requester and approver are
// distinct users.
type PoolConfigChange struct {
	shared.TenantAggregateRoot
	PoolID uuid.UUID `gorm:"type:uuid;not null;index"`
	// ExpectedPoolVersion is the pool version the requester observed.
	// Approval re-checks it against the live pool to detect concurrent
	// edits between request and approval.
	ExpectedPoolVersion int                `gorm:"not null"`
	RequestedBy         uuid.UUID          `gorm:"type:uuid;not null"`
	ProposedDelta       PoolConfigDelta    `gorm:"serializer:json;not null"`
	Status              ConfigChangeStatus `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	Reason              string             `gorm:"type:varchar(500)"`
	ApprovedBy          *uuid.UUID         `gorm:"type:uuid"`
	RejectedBy          *uuid.UUID         `gorm:"type:uuid"`
	DecidedAt           *time.Time
}

// TableName returns the table name for GORM
func (PoolConfigChange) TableName() string {
	return "pool_config_changes"
}

// NewPoolConfigChange creates a pending change request
func NewPoolConfigChange(
	tenantID, poolID, requestedBy uuid.UUID,
	poolVersion int,
	delta PoolConfigDelta,
	reason string,
) (*PoolConfigChange, error) {
	if requestedBy == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER", "Requesting user ID is required")
	}
	if delta.IsEmpty() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Config change must propose at least one parameter")
	}
	if delta.SweepThreshold != nil && delta.SweepThreshold.IsNegative() {
		return nil, ErrInvalidThreshold()
	}

	c := &PoolConfigChange{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		PoolID:              poolID,
		ExpectedPoolVersion: poolVersion,
		RequestedBy:         requestedBy,
		ProposedDelta:       delta,
		Status:              ConfigChangeStatusPending,
		Reason:              reason,
	}

	c.AddDomainEvent(NewConfigChangeRequestedEvent(c))

	return c, nil
}

// Approve decides the change. Enforces segregation of duties (the
// approver must differ from the requester) and detects concurrent pool
// edits via the version observed at request time.
func (c *PoolConfigChange) Approve(approvedBy uuid.UUID, currentPoolVersion int) error {
	if c.Status != ConfigChangeStatusPending {
		return ErrConfigChangeNotPending(c.Status)
	}
	if approvedBy == uuid.Nil {
		return shared.NewDomainError("INVALID_USER", "Approving user ID is required")
	}
	if approvedBy == c.RequestedBy {
		return ErrDualAuthorizationRequired(approvedBy)
	}
	if currentPoolVersion != c.ExpectedPoolVersion {
		return ErrConfigChangeVersionMismatch(c.ExpectedPoolVersion, currentPoolVersion)
	}

	now := time.Now()
	c.Status = ConfigChangeStatusApproved
	c.ApprovedBy = &approvedBy
	c.DecidedAt = &now
	c.Touch()
	c.IncrementVersion()

	c.AddDomainEvent(NewConfigChangeApprovedEvent(c))

	return nil
}

// Reject declines the change. Rejection carries no version check: a
// concurrent pool edit is no reason to keep a change pending.
func (c *PoolConfigChange) Reject(rejectedBy uuid.UUID, reason string) error {
	if c.Status != ConfigChangeStatusPending {
		return ErrConfigChangeNotPending(c.Status)
	}
	if rejectedBy == uuid.Nil {
		return shared.NewDomainError("INVALID_USER", "Rejecting user ID is required")
	}

	now := time.Now()
	c.Status = ConfigChangeStatusRejected
	c.RejectedBy = &rejectedBy
	c.Reason = reason
	c.DecidedAt = &now
	c.Touch()
	c.IncrementVersion()

	c.AddDomainEvent(NewConfigChangeRejectedEvent(c))

	return nil
}

// IsPending returns true while the change awaits a decision
func (c *PoolConfigChange) IsPending() bool {
	return c.Status == ConfigChangeStatusPending
}

// PoolConfigHistory is an append-only snapshot of a pool's configuration
// taken after every approved change and at activation. Never updated.
type PoolConfigHistory struct {
	ID                     uuid.UUID       `gorm:"type:uuid;primary_key"`
	TenantID               uuid.UUID       `gorm:"type:uuid;not null;index"`
	PoolID                 uuid.UUID       `gorm:"type:uuid;not null;index"`
	PoolVersion            int             `gorm:"not null"`
	ChangeID               *uuid.UUID      `gorm:"type:uuid"`
	Name                   string          `gorm:"type:varchar(200);not null"`
	TargetBalance          decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	SweepThreshold         decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	DailyLimit             decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	SingleTransactionLimit decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	AgreementReference     string          `gorm:"type:varchar(100)"`
	RateBenchmark          string          `gorm:"type:varchar(50)"`
	CreatedAt              time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PoolConfigHistory) TableName() string {
	return "pool_config_history"
}

// NewPoolConfigHistory snapshots the pool's current configuration.
// changeID is nil for the activation snapshot.
func NewPoolConfigHistory(pool *CashPool, changeID *uuid.UUID) *PoolConfigHistory {
	return &PoolConfigHistory{
		ID:                     uuid.New(),
		TenantID:               pool.TenantID,
		PoolID:                 pool.ID,
		PoolVersion:            pool.Version,
		ChangeID:               changeID,
		Name:                   pool.Name,
		TargetBalance:          pool.TargetBalance,
		SweepThreshold:         pool.SweepThreshold,
		DailyLimit:             pool.DailyLimit,
		SingleTransactionLimit: pool.SingleTransactionLimit,
		AgreementReference:     pool.AgreementReference,
		RateBenchmark:          pool.RateBenchmark,
		CreatedAt:              time.Now(),
	}
}

// ConfigChangeRequestedEvent is raised when a config change is requested
type ConfigChangeRequestedEvent struct {
	shared.BaseDomainEvent
	ChangeID    uuid.UUID `json:"change_id"`
	PoolID      uuid.UUID `json:"pool_id"`
	RequestedBy uuid.UUID `json:"requested_by"`
}

// EventType returns the event type name
func (e *ConfigChangeRequestedEvent) EventType() string {
	return "PoolConfigChangeRequested"
}

// NewConfigChangeRequestedEvent creates a new ConfigChangeRequestedEvent
func NewConfigChangeRequestedEvent(c *PoolConfigChange) *ConfigChangeRequestedEvent {
	return &ConfigChangeRequestedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("PoolConfigChangeRequested", "PoolConfigChange", c.ID, c.TenantID),
		ChangeID:        c.ID,
		PoolID:          c.PoolID,
		RequestedBy:     c.RequestedBy,
	}
}

// ConfigChangeApprovedEvent is raised when a config change is approved
type ConfigChangeApprovedEvent struct {
	shared.BaseDomainEvent
	ChangeID    uuid.UUID `json:"change_id"`
	PoolID      uuid.UUID `json:"pool_id"`
	RequestedBy uuid.UUID `json:"requested_by"`
	ApprovedBy  uuid.UUID `json:"approved_by"`
}

// EventType returns the event type name
func (e *ConfigChangeApprovedEvent) EventType() string {
	return "PoolConfigChangeApproved"
}

// NewConfigChangeApprovedEvent creates a new ConfigChangeApprovedEvent
func NewConfigChangeApprovedEvent(c *PoolConfigChange) *ConfigChangeApprovedEvent {
	var approvedBy uuid.UUID
	if c.ApprovedBy != nil {
		approvedBy = *c.ApprovedBy
	}
	return &ConfigChangeApprovedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("PoolConfigChangeApproved", "PoolConfigChange", c.ID, c.TenantID),
		ChangeID:        c.ID,
		PoolID:          c.PoolID,
		RequestedBy:     c.RequestedBy,
		ApprovedBy:      approvedBy,
	}
}

// ConfigChangeRejectedEvent is raised when a config change is rejected
type ConfigChangeRejectedEvent struct {
	shared.BaseDomainEvent
	ChangeID   uuid.UUID `json:"change_id"`
	PoolID     uuid.UUID `json:"pool_id"`
	RejectedBy uuid.UUID `json:"rejected_by"`
	Reason     string    `json:"reason"`
}

// EventType returns the event type name
func (e *ConfigChangeRejectedEvent) EventType() string {
	return "PoolConfigChangeRejected"
}

// NewConfigChangeRejectedEvent creates a new ConfigChangeRejectedEvent
func NewConfigChangeRejectedEvent(c *PoolConfigChange) *ConfigChangeRejectedEvent {
	var rejectedBy uuid.UUID
	if c.RejectedBy != nil {
		rejectedBy = *c.RejectedBy
	}
	return &ConfigChangeRejectedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("PoolConfigChangeRejected", "PoolConfigChange", c.ID, c.TenantID),
		ChangeID:        c.ID,
		PoolID:          c.PoolID,
		RejectedBy:      rejectedBy,
		Reason:          c.Reason,
	}
}
