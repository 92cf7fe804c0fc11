package treasury

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/treasury/backend/internal/domain/shared"
)

// SweepExecutedEvent is raised when all entity legs of a sweep posted
type SweepExecutedEvent struct {
	shared.BaseDomainEvent
	SweepID       uuid.UUID       `json:"sweep_id"`
	PoolID        uuid.UUID       `json:"pool_id"`
	FromAccountID string          `json:"from_account_id"`
	ToAccountID   string          `json:"to_account_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	LegCount      int             `json:"leg_count"`
	ExecutedAt    time.Time       `json:"executed_at"`
	CorrelationID uuid.UUID       `json:"correlation_id"`
}

// EventType returns the event type name
func (e *SweepExecutedEvent) EventType() string {
	return "CashSweepExecuted"
}

// NewSweepExecutedEvent creates a new SweepExecutedEvent
func NewSweepExecutedEvent(s *CashSweep) *SweepExecutedEvent {
	executedAt := time.Now()
	if s.ExecutedAt != nil {
		executedAt = *s.ExecutedAt
	}
	return &SweepExecutedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("CashSweepExecuted", "CashSweep", s.ID, s.TenantID),
		SweepID:         s.ID,
		PoolID:          s.PoolID,
		FromAccountID:   s.FromAccountID,
		ToAccountID:     s.ToAccountID,
		Amount:          s.Amount,
		Currency:        string(s.Currency),
		LegCount:        len(s.Legs),
		ExecutedAt:      executedAt,
		CorrelationID:   s.CorrelationID,
	}
}

// SweepFailedEvent is raised when a sweep fails before any leg posted
type SweepFailedEvent struct {
	shared.BaseDomainEvent
	SweepID       uuid.UUID `json:"sweep_id"`
	PoolID        uuid.UUID `json:"pool_id"`
	Reason        string    `json:"reason"`
	CorrelationID uuid.UUID `json:"correlation_id"`
}

// EventType returns the event type name
func (e *SweepFailedEvent) EventType() string {
	return "CashSweepFailed"
}

// NewSweepFailedEvent creates a new SweepFailedEvent
func NewSweepFailedEvent(s *CashSweep) *SweepFailedEvent {
	return &SweepFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("CashSweepFailed", "CashSweep", s.ID, s.TenantID),
		SweepID:         s.ID,
		PoolID:          s.PoolID,
		Reason:          s.FailureReason,
		CorrelationID:   s.CorrelationID,
	}
}

// SweepNeedsReconciliationEvent is raised when a sweep partially posted
type SweepNeedsReconciliationEvent struct {
	shared.BaseDomainEvent
	SweepID        uuid.UUID   `json:"sweep_id"`
	PoolID         uuid.UUID   `json:"pool_id"`
	PostedEntities []uuid.UUID `json:"posted_entities"`
	Reason         string      `json:"reason"`
	CorrelationID  uuid.UUID   `json:"correlation_id"`
}

// EventType returns the event type name
func (e *SweepNeedsReconciliationEvent) EventType() string {
	return "CashSweepNeedsReconciliation"
}

// NewSweepNeedsReconciliationEvent creates a new SweepNeedsReconciliationEvent
func NewSweepNeedsReconciliationEvent(s *CashSweep) *SweepNeedsReconciliationEvent {
	posted := make([]uuid.UUID, 0, len(s.Legs))
	for _, leg := range s.Legs {
		posted = append(posted, leg.EntityID)
	}
	return &SweepNeedsReconciliationEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("CashSweepNeedsReconciliation", "CashSweep", s.ID, s.TenantID),
		SweepID:         s.ID,
		PoolID:          s.PoolID,
		PostedEntities:  posted,
		Reason:          s.FailureReason,
		CorrelationID:   s.CorrelationID,
	}
}
