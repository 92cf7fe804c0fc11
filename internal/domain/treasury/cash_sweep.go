package treasury

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/treasury/backend/internal/domain/shared"
	"github.com/treasury/backend/internal/domain/shared/valueobject"
)

// LedgerLeg records the posting made to one legal entity's general
// ledger for a sweep. A sweep between accounts of different entities
// produces two legs; a same-entity sweep produces one.
type LedgerLeg struct {
	ID         uuid.UUID       `gorm:"type:uuid;primary_key"`
	SweepID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	EntityID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	Direction  LegDirection    `gorm:"type:varchar(10);not null"`
	Amount     decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	PostingRef string          `gorm:"type:varchar(100);not null"`
	PostedAt   time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (LedgerLeg) TableName() string {
	return "sweep_ledger_legs"
}

// NewLedgerLeg records a successfully posted entity leg
func NewLedgerLeg(sweepID, entityID uuid.UUID, direction LegDirection, amount decimal.Decimal, postingRef string) *LedgerLeg {
	return &LedgerLeg{
		ID:         uuid.New(),
		SweepID:    sweepID,
		EntityID:   entityID,
		Direction:  direction,
		Amount:     amount,
		PostingRef: postingRef,
		PostedAt:   time.Now(),
	}
}

// CashSweep is the aggregate root for a single fund transfer between a
// member account and the pool's concentration account.
//
// A given idempotency key maps to at most one terminal outcome. Once
// Executed the sweep is immutable; corrections are recorded as new
// compensating sweeps, never in-place edits.
type CashSweep struct {
	shared.TenantAggregateRoot
	PoolID             uuid.UUID            `gorm:"type:uuid;not null;index"`
	ExecutionDate      time.Time            `gorm:"not null;index"`
	FromAccountID      string               `gorm:"type:varchar(64);not null"`
	ToAccountID        string               `gorm:"type:varchar(64);not null"`
	FromEntityID       uuid.UUID            `gorm:"type:uuid;not null"`
	ToEntityID         uuid.UUID            `gorm:"type:uuid;not null"`
	Amount             decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	Currency           valueobject.Currency `gorm:"type:varchar(3);not null"`
	// Unique per tenant; the composite index lives in the migration
	IdempotencyKey     string               `gorm:"type:varchar(100);not null;index"`
	Status             SweepStatus          `gorm:"type:varchar(30);not null;default:'PENDING';index"`
	FailureReason      string               `gorm:"type:varchar(500)"`
	CorrelationID      uuid.UUID            `gorm:"type:uuid;not null"`
	CompensatesSweepID *uuid.UUID           `gorm:"type:uuid;index"`
	Legs               []LedgerLeg          `gorm:"foreignKey:SweepID;references:ID"`
	ExecutedAt         *time.Time
}

// TableName returns the table name for GORM
func (CashSweep) TableName() string {
	return "cash_sweeps"
}

// NewCashSweep creates a sweep in Pending status
func NewCashSweep(
	tenantID, poolID uuid.UUID,
	executionDate time.Time,
	fromAccountID, toAccountID string,
	fromEntityID, toEntityID uuid.UUID,
	amount valueobject.Money,
	idempotencyKey string,
) (*CashSweep, error) {
	if idempotencyKey == "" {
		return nil, shared.NewDomainError("INVALID_IDEMPOTENCY_KEY", "Idempotency key cannot be empty")
	}
	if !amount.IsPositive() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Sweep amount must be positive")
	}
	if executionDate.IsZero() {
		return nil, ErrInvalidExecutionDate("execution date is required")
	}
	if fromAccountID == toAccountID {
		return nil, shared.NewDomainError("INVALID_ACCOUNT", "Sweep source and destination accounts must differ")
	}

	return &CashSweep{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		PoolID:              poolID,
		ExecutionDate:       executionDate,
		FromAccountID:       fromAccountID,
		ToAccountID:         toAccountID,
		FromEntityID:        fromEntityID,
		ToEntityID:          toEntityID,
		Amount:              amount.Amount(),
		Currency:            amount.Currency(),
		IdempotencyKey:      idempotencyKey,
		Status:              SweepStatusPending,
		CorrelationID:       uuid.New(),
		Legs:                make([]LedgerLeg, 0),
	}, nil
}

// NewCompensatingSweep records the reversal of an already-posted leg of
// a partially-applied sweep as a new record
func NewCompensatingSweep(original *CashSweep) (*CashSweep, error) {
	amount, err := valueobject.NewMoney(original.Amount, original.Currency)
	if err != nil {
		return nil, err
	}
	comp, err := NewCashSweep(
		original.TenantID,
		original.PoolID,
		original.ExecutionDate,
		original.ToAccountID,
		original.FromAccountID,
		original.ToEntityID,
		original.FromEntityID,
		amount,
		original.IdempotencyKey+":comp",
	)
	if err != nil {
		return nil, err
	}
	comp.CompensatesSweepID = &original.ID
	comp.CorrelationID = original.CorrelationID
	return comp, nil
}

// MarkExecuted transitions Pending -> Executed with all entity legs posted
func (s *CashSweep) MarkExecuted(legs []LedgerLeg) error {
	if s.Status != SweepStatusPending {
		return shared.NewDomainError("INVALID_STATE", "Only pending sweeps can be executed")
	}
	if len(legs) == 0 {
		return shared.NewDomainError("INVALID_STATE", "An executed sweep requires at least one ledger leg")
	}

	now := time.Now()
	s.Status = SweepStatusExecuted
	s.Legs = legs
	s.ExecutedAt = &now
	s.Touch()
	s.IncrementVersion()

	s.AddDomainEvent(NewSweepExecutedEvent(s))

	return nil
}

// MarkFailed transitions Pending -> Failed with no legs posted
func (s *CashSweep) MarkFailed(reason string) error {
	if s.Status != SweepStatusPending {
		return shared.NewDomainError("INVALID_STATE", "Only pending sweeps can fail")
	}

	s.Status = SweepStatusFailed
	s.FailureReason = reason
	s.Touch()
	s.IncrementVersion()

	s.AddDomainEvent(NewSweepFailedEvent(s))

	return nil
}

// MarkNeedsReconciliation records the partially-applied outcome: the
// posted legs are retained (reversal requires a compensating entry, not
// a delete) and the account pair is blocked until reconciled.
func (s *CashSweep) MarkNeedsReconciliation(postedLegs []LedgerLeg, reason string) error {
	if s.Status != SweepStatusPending {
		return shared.NewDomainError("INVALID_STATE", "Only pending sweeps can need reconciliation")
	}
	if len(postedLegs) == 0 {
		return shared.NewDomainError("INVALID_STATE", "Needs-reconciliation requires at least one posted leg")
	}

	s.Status = SweepStatusNeedsReconciliation
	s.Legs = postedLegs
	s.FailureReason = reason
	s.Touch()
	s.IncrementVersion()

	s.AddDomainEvent(NewSweepNeedsReconciliationEvent(s))

	return nil
}

// IsTerminal reports whether the sweep reached a final outcome
func (s *CashSweep) IsTerminal() bool {
	return s.Status.IsTerminal()
}

// AmountMoney returns the sweep amount as Money
func (s *CashSweep) AmountMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(s.Amount, s.Currency)
	return m
}

// CrossesEntities reports whether the sweep touches two legal entities
func (s *CashSweep) CrossesEntities() bool {
	return s.FromEntityID != s.ToEntityID
}

// EntityEntry is the balanced ledger entry posted to one legal entity's
// general ledger. Direction is the net cash side recorded on the leg.
type EntityEntry struct {
	EntityID  uuid.UUID
	Direction LegDirection
	Lines     []LedgerLine
}

// IntercompanyAccountID names the intercompany clearing account an
// entity holds against a counterparty entity
func IntercompanyAccountID(counterparty uuid.UUID) string {
	return "IC:" + counterparty.String()
}

// EntityEntries builds one balanced entry per legal entity touched by
// the sweep. A same-entity sweep is a single entry crediting the source
// account and debiting the destination. A cross-entity sweep balances
// each entity's entry against its intercompany clearing account, so
// debits equal credits within every entry.
func (s *CashSweep) EntityEntries() []EntityEntry {
	amount := s.AmountMoney()
	memo := fmt.Sprintf("cash pool sweep %s", s.ID)

	if !s.CrossesEntities() {
		return []EntityEntry{{
			EntityID:  s.FromEntityID,
			Direction: LegDirectionCredit,
			Lines: []LedgerLine{
				{AccountID: s.FromAccountID, Direction: LegDirectionCredit, Amount: amount, Memo: memo},
				{AccountID: s.ToAccountID, Direction: LegDirectionDebit, Amount: amount, Memo: memo},
			},
		}}
	}
	return []EntityEntry{
		{
			EntityID:  s.FromEntityID,
			Direction: LegDirectionCredit,
			Lines: []LedgerLine{
				{AccountID: s.FromAccountID, Direction: LegDirectionCredit, Amount: amount, Memo: memo},
				{AccountID: IntercompanyAccountID(s.ToEntityID), Direction: LegDirectionDebit, Amount: amount, Memo: memo},
			},
		},
		{
			EntityID:  s.ToEntityID,
			Direction: LegDirectionDebit,
			Lines: []LedgerLine{
				{AccountID: s.ToAccountID, Direction: LegDirectionDebit, Amount: amount, Memo: memo},
				{AccountID: IntercompanyAccountID(s.FromEntityID), Direction: LegDirectionCredit, Amount: amount, Memo: memo},
			},
		},
	}
}

// CompensationEntries builds the reversal entries for this compensating
// sweep, covering only the entities whose legs of the original sweep
// actually posted. An entity whose leg never posted has nothing to
// reverse.
func (s *CashSweep) CompensationEntries(original *CashSweep) []EntityEntry {
	memo := fmt.Sprintf("compensates sweep %s", original.ID)
	entries := make([]EntityEntry, 0, len(original.Legs))
	for _, entry := range original.EntityEntries() {
		if original.LegForEntity(entry.EntityID) == nil {
			continue
		}
		reversed := EntityEntry{
			EntityID:  entry.EntityID,
			Direction: entry.Direction.Opposite(),
			Lines:     make([]LedgerLine, 0, len(entry.Lines)),
		}
		for _, line := range entry.Lines {
			reversed.Lines = append(reversed.Lines, LedgerLine{
				AccountID: line.AccountID,
				Direction: line.Direction.Opposite(),
				Amount:    line.Amount,
				Memo:      memo,
			})
		}
		entries = append(entries, reversed)
	}
	return entries
}

// LegForEntity returns the posted leg for an entity, or nil
func (s *CashSweep) LegForEntity(entityID uuid.UUID) *LedgerLeg {
	for i := range s.Legs {
		if s.Legs[i].EntityID == entityID {
			return &s.Legs[i]
		}
	}
	return nil
}
