package treasury

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/treasury/backend/internal/domain/shared/valueobject"
)

// The engine consumes these collaborator interfaces and never implements
// them. All calls are expected to honor the caller-supplied context
// deadline; a timeout is a failure of that call, never retried here.

// BalanceSource reads current and historical account balances
type BalanceSource interface {
	// GetBalance returns the current available balance with its
	// staleness timestamp
	GetBalance(ctx context.Context, accountID string) (BalanceSnapshot, error)

	// GetDailyBalances returns daily closing balances for an account
	// over a period, for interest computation
	GetDailyBalances(ctx context.Context, accountID string, periodStart, periodEnd time.Time) ([]DatedBalance, error)
}

// DatedBalance is one day's closing balance for an account
type DatedBalance struct {
	Date    time.Time
	Balance decimal.Decimal
}

// DatedEntityBalance is a daily balance attributed to a legal entity
type DatedEntityBalance struct {
	EntityID uuid.UUID
	Date     time.Time
	Balance  decimal.Decimal
}

// LedgerLine is one line of a general-ledger posting
type LedgerLine struct {
	AccountID string
	Direction LegDirection
	Amount    valueobject.Money
	Memo      string
}

// LedgerPoster posts entries to a legal entity's general ledger.
// Posting must be idempotent keyed by the caller-supplied reference:
// replaying a reference returns the original posting ref without a
// second entry.
type LedgerPoster interface {
	Post(ctx context.Context, entityID uuid.UUID, reference string, lines []LedgerLine) (postingRef string, err error)
}

// FiscalCalendar answers whether a tenant's accounting period accepts
// postings for a date
type FiscalCalendar interface {
	IsPeriodOpen(ctx context.Context, tenantID uuid.UUID, date time.Time) (bool, error)
}

// ErrNoBenchmarkRate is returned by InterestRateSource implementations
// when no published rate covers the requested period
var ErrNoBenchmarkRate = errors.New("no benchmark rate covers the period")

// InterestRateSource resolves benchmarked rates for interest periods
type InterestRateSource interface {
	// BenchmarkRate returns the rate for a benchmark over a period.
	// Implementations return ErrNoBenchmarkRate when no benchmark covers
	// the period; the engine surfaces it as InterestRateNotBenchmarked.
	// Any other error is an infrastructure failure and propagates.
	BenchmarkRate(ctx context.Context, benchmark string, periodStart, periodEnd time.Time) (decimal.Decimal, error)
}

// Actor is the acting user as resolved by the host's authentication
// layer (authentication itself is out of scope)
type Actor struct {
	UserID      uuid.UUID
	Roles       []string
	EntityScope []uuid.UUID
}

// HasRole reports whether the actor holds the named role
func (a Actor) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// InScope reports whether the entity is within the actor's assignment
func (a Actor) InScope(entityID uuid.UUID) bool {
	for _, e := range a.EntityScope {
		if e == entityID {
			return true
		}
	}
	return false
}

// PolicyAction is an action submitted to the policy oracle
type PolicyAction string

const (
	ActionExecuteSweep     PolicyAction = "treasury:sweep:execute"
	ActionApproveSweep     PolicyAction = "treasury:sweep:approve"
	ActionAllocateInterest PolicyAction = "treasury:interest:allocate"
	ActionRequestConfig    PolicyAction = "treasury:config:request"
	ActionApproveConfig    PolicyAction = "treasury:config:approve"
	ActionManagePool       PolicyAction = "treasury:pool:manage"
	ActionReconcileSweep   PolicyAction = "treasury:sweep:reconcile"
)

// PolicyResource identifies what the action targets
type PolicyResource struct {
	TenantID uuid.UUID
	PoolID   uuid.UUID
}

// PolicyDecision is the oracle's answer
type PolicyDecision struct {
	Allowed bool
	Reason  string
}

// Allow is the positive decision
func Allow() PolicyDecision {
	return PolicyDecision{Allowed: true}
}

// Deny is the negative decision with a human-readable reason
func Deny(reason string) PolicyDecision {
	return PolicyDecision{Allowed: false, Reason: reason}
}

// PolicyOracle evaluates whether an actor may perform an action
type PolicyOracle interface {
	Evaluate(ctx context.Context, actor Actor, action PolicyAction, resource PolicyResource) (PolicyDecision, error)
}

// AuditResult is the outcome recorded on an audit event
type AuditResult string

const (
	AuditResultOK   AuditResult = "OK"
	AuditResultFail AuditResult = "FAIL"
)

// AuditEvent is one append-only audit record. Every state-changing
// operation emits exactly one; business failures emit one with
// Result FAIL.
type AuditEvent struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	ActorID       uuid.UUID
	Action        string
	Result        AuditResult
	ResourceType  string
	ResourceID    uuid.UUID
	BeforeRef     string
	AfterRef      string
	Detail        string
	CorrelationID uuid.UUID
	OccurredAt    time.Time
}

// SnapshotRef identifies one version of an aggregate, used for the
// before/after references on audit events
func SnapshotRef(resourceType string, id uuid.UUID, version int) string {
	return fmt.Sprintf("%s:%s@v%d", resourceType, id, version)
}

// NewAuditEvent creates an audit event with generated ID and timestamp
func NewAuditEvent(tenantID, actorID uuid.UUID, action string, result AuditResult, resourceType string, resourceID, correlationID uuid.UUID) AuditEvent {
	return AuditEvent{
		ID:            uuid.New(),
		TenantID:      tenantID,
		ActorID:       actorID,
		Action:        action,
		Result:        result,
		ResourceType:  resourceType,
		ResourceID:    resourceID,
		CorrelationID: correlationID,
		OccurredAt:    time.Now(),
	}
}

// AuditSink appends audit events. Append-only by contract.
type AuditSink interface {
	Append(ctx context.Context, event AuditEvent) error
}
