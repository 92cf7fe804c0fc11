package treasury

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/treasury/backend/internal/domain/shared/valueobject"
	"github.com/treasury/backend/internal/domain/treasury"
)

// CreatePoolCommand creates a new cash pool in Draft status
type CreatePoolCommand struct {
	TenantID               uuid.UUID            `validate:"required"`
	Actor                  treasury.Actor       `validate:"required"`
	Name                   string               `validate:"required,max=200"`
	PoolType               treasury.PoolType    `validate:"required,oneof=ZERO_BALANCE TARGET_BALANCE NOTIONAL"`
	Currency               valueobject.Currency `validate:"required,len=3"`
	TargetBalance          decimal.Decimal
	SweepThreshold         decimal.Decimal
	DailyLimit             decimal.Decimal
	SingleTransactionLimit decimal.Decimal
	AgreementReference     string `validate:"max=100"`
	RateBenchmark          string `validate:"max=50"`
}

// AddMemberAccountCommand registers a bank account in a draft pool
type AddMemberAccountCommand struct {
	TenantID   uuid.UUID            `validate:"required"`
	Actor      treasury.Actor       `validate:"required"`
	PoolID     uuid.UUID            `validate:"required"`
	AccountID  string               `validate:"required,max=64"`
	EntityID   uuid.UUID            `validate:"required"`
	EntityName string               `validate:"required,max=200"`
	Currency   valueobject.Currency `validate:"required,len=3"`
	Role       treasury.AccountRole `validate:"required,oneof=MEMBER CONCENTRATION"`
}

// PoolLifecycleCommand drives activate, suspend, resume and close
type PoolLifecycleCommand struct {
	TenantID uuid.UUID      `validate:"required"`
	Actor    treasury.Actor `validate:"required"`
	PoolID   uuid.UUID      `validate:"required"`
	Reason   string         `validate:"max=500"`
}

// ExecuteSweepCommand requests a sweep for one member account.
//
// Approver is the second authorizer required by dual authorization; it
// must identify a different user than Actor.
type ExecuteSweepCommand struct {
	TenantID        uuid.UUID      `validate:"required"`
	Actor           treasury.Actor `validate:"required"`
	Approver        treasury.Actor `validate:"required"`
	PoolID          uuid.UUID      `validate:"required"`
	MemberAccountID string         `validate:"required,max=64"`
	ExecutionDate   time.Time      `validate:"required"`
	IdempotencyKey  string         `validate:"required,max=100"`
}

// SweepResult is the outcome returned for both fresh executions and
// idempotent replays. RecordedBalance is set only for notional pools,
// whose balances are recorded for interest netting without a transfer.
type SweepResult struct {
	SweepID         uuid.UUID            `json:"sweep_id"`
	PoolID          uuid.UUID            `json:"pool_id"`
	Status          treasury.SweepStatus `json:"status"`
	FromAccountID   string               `json:"from_account_id"`
	ToAccountID     string               `json:"to_account_id"`
	Amount          decimal.Decimal      `json:"amount"`
	Currency        valueobject.Currency `json:"currency"`
	FailureReason   string               `json:"failure_reason,omitempty"`
	CorrelationID   uuid.UUID            `json:"correlation_id"`
	Replayed        bool                 `json:"replayed"`
	NoTransfer      bool                 `json:"no_transfer"`
	RecordedBalance decimal.Decimal      `json:"recorded_balance,omitempty"`
	Legs            []SweepLegResult     `json:"legs,omitempty"`
}

// SweepLegResult is one entity leg of an executed sweep
type SweepLegResult struct {
	EntityID   uuid.UUID             `json:"entity_id"`
	Direction  treasury.LegDirection `json:"direction"`
	PostingRef string                `json:"posting_ref"`
}

// ReconcileSweepCommand resolves a NEEDS_RECONCILIATION sweep
type ReconcileSweepCommand struct {
	TenantID uuid.UUID      `validate:"required"`
	Actor    treasury.Actor `validate:"required"`
	PoolID   uuid.UUID      `validate:"required"`
	SweepID  uuid.UUID      `validate:"required"`
	Note     string         `validate:"max=500"`
}

// AllocateInterestCommand closes an interest period for a pool
type AllocateInterestCommand struct {
	TenantID    uuid.UUID      `validate:"required"`
	Actor       treasury.Actor `validate:"required"`
	PoolID      uuid.UUID      `validate:"required"`
	PeriodStart time.Time      `validate:"required"`
	PeriodEnd   time.Time      `validate:"required"`
}

// AllocationResult reports the allocation with its per-entity lines
type AllocationResult struct {
	AllocationID  uuid.UUID              `json:"allocation_id"`
	PoolID        uuid.UUID              `json:"pool_id"`
	PeriodStart   time.Time              `json:"period_start"`
	PeriodEnd     time.Time              `json:"period_end"`
	Rate          decimal.Decimal        `json:"rate"`
	TotalInterest decimal.Decimal        `json:"total_interest"`
	Currency      valueobject.Currency   `json:"currency"`
	Lines         []AllocationLineResult `json:"lines"`
}

// AllocationLineResult is one entity's share
type AllocationLineResult struct {
	EntityID            uuid.UUID       `json:"entity_id"`
	TimeWeightedBalance decimal.Decimal `json:"time_weighted_balance"`
	Share               decimal.Decimal `json:"share"`
	RoundingResidual    decimal.Decimal `json:"rounding_residual"`
	PostingRef          string          `json:"posting_ref,omitempty"`
}

// RequestConfigChangeCommand opens a pending change against the pool
// version the requester observed
type RequestConfigChangeCommand struct {
	TenantID        uuid.UUID                `validate:"required"`
	Actor           treasury.Actor           `validate:"required"`
	PoolID          uuid.UUID                `validate:"required"`
	ObservedVersion int                      `validate:"gt=0"`
	Delta           treasury.PoolConfigDelta `validate:"required"`
	Reason          string                   `validate:"max=500"`
}

// DecideConfigChangeCommand approves or rejects a pending change
type DecideConfigChangeCommand struct {
	TenantID uuid.UUID      `validate:"required"`
	Actor    treasury.Actor `validate:"required"`
	PoolID   uuid.UUID      `validate:"required"`
	ChangeID uuid.UUID      `validate:"required"`
	Reason   string         `validate:"max=500"`
}

// ConfigChangeResult reports the change state after a request or decision
type ConfigChangeResult struct {
	ChangeID    uuid.UUID                   `json:"change_id"`
	PoolID      uuid.UUID                   `json:"pool_id"`
	Status      treasury.ConfigChangeStatus `json:"status"`
	RequestedBy uuid.UUID                   `json:"requested_by"`
	ApprovedBy  *uuid.UUID                  `json:"approved_by,omitempty"`
	RejectedBy  *uuid.UUID                  `json:"rejected_by,omitempty"`
	PoolVersion int                         `json:"pool_version"`
}

// PoolView is the read model returned by query operations
type PoolView struct {
	ID                     uuid.UUID            `json:"id"`
	Name                   string               `json:"name"`
	PoolType               treasury.PoolType    `json:"pool_type"`
	Currency               valueobject.Currency `json:"currency"`
	Status                 treasury.PoolStatus  `json:"status"`
	TargetBalance          decimal.Decimal      `json:"target_balance"`
	SweepThreshold         decimal.Decimal      `json:"sweep_threshold"`
	DailyLimit             decimal.Decimal      `json:"daily_limit"`
	SingleTransactionLimit decimal.Decimal      `json:"single_transaction_limit"`
	AgreementReference     string               `json:"agreement_reference,omitempty"`
	RateBenchmark          string               `json:"rate_benchmark,omitempty"`
	Version                int                  `json:"version"`
	MemberCount            int                  `json:"member_count"`
}

// NewPoolView maps a pool aggregate to its read model
func NewPoolView(pool *treasury.CashPool) PoolView {
	return PoolView{
		ID:                     pool.ID,
		Name:                   pool.Name,
		PoolType:               pool.PoolType,
		Currency:               pool.Currency,
		Status:                 pool.Status,
		TargetBalance:          pool.TargetBalance,
		SweepThreshold:         pool.SweepThreshold,
		DailyLimit:             pool.DailyLimit,
		SingleTransactionLimit: pool.SingleTransactionLimit,
		AgreementReference:     pool.AgreementReference,
		RateBenchmark:          pool.RateBenchmark,
		Version:                pool.Version,
		MemberCount:            len(pool.Members),
	}
}

// newSweepResult maps a sweep aggregate to its result DTO
func newSweepResult(sweep *treasury.CashSweep, replayed bool) *SweepResult {
	result := &SweepResult{
		SweepID:       sweep.ID,
		PoolID:        sweep.PoolID,
		Status:        sweep.Status,
		FromAccountID: sweep.FromAccountID,
		ToAccountID:   sweep.ToAccountID,
		Amount:        sweep.Amount,
		Currency:      sweep.Currency,
		FailureReason: sweep.FailureReason,
		CorrelationID: sweep.CorrelationID,
		Replayed:      replayed,
	}
	for _, leg := range sweep.Legs {
		result.Legs = append(result.Legs, SweepLegResult{
			EntityID:   leg.EntityID,
			Direction:  leg.Direction,
			PostingRef: leg.PostingRef,
		})
	}
	return result
}

// newAllocationResult maps an allocation aggregate to its result DTO
func newAllocationResult(alloc *treasury.InterestAllocation) *AllocationResult {
	result := &AllocationResult{
		AllocationID:  alloc.ID,
		PoolID:        alloc.PoolID,
		PeriodStart:   alloc.PeriodStart,
		PeriodEnd:     alloc.PeriodEnd,
		Rate:          alloc.Rate,
		TotalInterest: alloc.TotalInterest,
		Currency:      alloc.Currency,
	}
	for _, line := range alloc.Lines {
		result.Lines = append(result.Lines, AllocationLineResult{
			EntityID:            line.EntityID,
			TimeWeightedBalance: line.TimeWeightedBalance,
			Share:               line.Share,
			RoundingResidual:    line.RoundingResidual,
			PostingRef:          line.PostingRef,
		})
	}
	return result
}

// newConfigChangeResult maps a config change to its result DTO
func newConfigChangeResult(change *treasury.PoolConfigChange, poolVersion int) *ConfigChangeResult {
	return &ConfigChangeResult{
		ChangeID:    change.ID,
		PoolID:      change.PoolID,
		Status:      change.Status,
		RequestedBy: change.RequestedBy,
		ApprovedBy:  change.ApprovedBy,
		RejectedBy:  change.RejectedBy,
		PoolVersion: poolVersion,
	}
}
