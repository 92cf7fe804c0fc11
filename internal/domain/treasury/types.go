package treasury

// PoolType identifies the pooling policy of a cash pool
type PoolType string

const (
	// PoolTypeZeroBalance sweeps member balances to exactly zero
	PoolTypeZeroBalance PoolType = "ZERO_BALANCE"
	// PoolTypeTargetBalance sweeps member balances to a configured target
	PoolTypeTargetBalance PoolType = "TARGET_BALANCE"
	// PoolTypeNotional nets interest across balances without moving funds
	PoolTypeNotional PoolType = "NOTIONAL"
)

// IsValid reports whether the pool type is one of the known policies
func (t PoolType) IsValid() bool {
	switch t {
	case PoolTypeZeroBalance, PoolTypeTargetBalance, PoolTypeNotional:
		return true
	}
	return false
}

// IsPhysical reports whether the policy moves funds between accounts
func (t PoolType) IsPhysical() bool {
	return t == PoolTypeZeroBalance || t == PoolTypeTargetBalance
}

// PoolStatus represents the lifecycle state of a cash pool
type PoolStatus string

const (
	PoolStatusDraft     PoolStatus = "DRAFT"
	PoolStatusActive    PoolStatus = "ACTIVE"
	PoolStatusSuspended PoolStatus = "SUSPENDED"
	PoolStatusClosed    PoolStatus = "CLOSED"
)

// CanTransitionTo reports whether the lifecycle graph allows moving to target.
// Draft -> Active -> Suspended <-> Active -> Closed; Closed is terminal.
func (s PoolStatus) CanTransitionTo(target PoolStatus) bool {
	switch s {
	case PoolStatusDraft:
		return target == PoolStatusActive
	case PoolStatusActive:
		return target == PoolStatusSuspended || target == PoolStatusClosed
	case PoolStatusSuspended:
		return target == PoolStatusActive || target == PoolStatusClosed
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions
func (s PoolStatus) IsTerminal() bool {
	return s == PoolStatusClosed
}

// SweepStatus represents the lifecycle state of a cash sweep
type SweepStatus string

const (
	SweepStatusPending  SweepStatus = "PENDING"
	SweepStatusExecuted SweepStatus = "EXECUTED"
	SweepStatusFailed   SweepStatus = "FAILED"
	// SweepStatusNeedsReconciliation marks a sweep where one entity leg
	// posted and another failed. Terminal but actionable: it blocks
	// further sweeps on the same account pair until reconciled.
	SweepStatusNeedsReconciliation SweepStatus = "NEEDS_RECONCILIATION"
)

// IsTerminal reports whether the sweep reached a final outcome
func (s SweepStatus) IsTerminal() bool {
	return s == SweepStatusExecuted || s == SweepStatusFailed || s == SweepStatusNeedsReconciliation
}

// ConfigChangeStatus represents the state of a pool configuration change
type ConfigChangeStatus string

const (
	ConfigChangeStatusPending  ConfigChangeStatus = "PENDING"
	ConfigChangeStatusApproved ConfigChangeStatus = "APPROVED"
	ConfigChangeStatusRejected ConfigChangeStatus = "REJECTED"
)

// IsTerminal reports whether the change has been decided
func (s ConfigChangeStatus) IsTerminal() bool {
	return s == ConfigChangeStatusApproved || s == ConfigChangeStatusRejected
}

// LimitType identifies which transfer limit a sweep violated
type LimitType string

const (
	LimitTypeSingle LimitType = "single"
	LimitTypeDaily  LimitType = "daily"
)

// LegDirection is the side of a ledger leg
type LegDirection string

const (
	LegDirectionDebit  LegDirection = "DEBIT"
	LegDirectionCredit LegDirection = "CREDIT"
)

// Opposite returns the reversing side
func (d LegDirection) Opposite() LegDirection {
	if d == LegDirectionDebit {
		return LegDirectionCredit
	}
	return LegDirectionDebit
}

// ReconciliationMode selects how a partially-posted sweep is resolved
type ReconciliationMode string

const (
	// ReconciliationModeManual blocks the account pair and leaves
	// resolution to an operator
	ReconciliationModeManual ReconciliationMode = "manual"
	// ReconciliationModeCompensate records a compensating sweep for the
	// already-posted leg as a new record; posted entries are never edited
	// in place
	ReconciliationModeCompensate ReconciliationMode = "compensate"
)

// IsValid reports whether the mode is known
func (m ReconciliationMode) IsValid() bool {
	return m == ReconciliationModeManual || m == ReconciliationModeCompensate
}

// AccountRole distinguishes the concentration account from plain members
type AccountRole string

const (
	AccountRoleMember        AccountRole = "MEMBER"
	AccountRoleConcentration AccountRole = "CONCENTRATION"
)
