package treasury

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/treasury/backend/internal/domain/shared"
	"github.com/treasury/backend/internal/domain/shared/valueobject"
)

// MaxMemberAccounts caps the legal entities participating in one pool
const MaxMemberAccounts = 50

// PoolMemberAccount is a bank account participating in a cash pool,
// tagged with its owning legal entity. Child entity of CashPool.
type PoolMemberAccount struct {
	ID         uuid.UUID             `gorm:"type:uuid;primary_key"`
	PoolID     uuid.UUID             `gorm:"type:uuid;not null;index"`
	AccountID  string                `gorm:"type:varchar(64);not null"`
	EntityID   uuid.UUID             `gorm:"type:uuid;not null;index"`
	EntityName string                `gorm:"type:varchar(200);not null"`
	Currency   valueobject.Currency  `gorm:"type:varchar(3);not null"`
	Role       AccountRole           `gorm:"type:varchar(20);not null;default:'MEMBER'"`
	Active     bool                  `gorm:"not null;default:true"`
	AddedAt    time.Time             `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PoolMemberAccount) TableName() string {
	return "pool_member_accounts"
}

// NewPoolMemberAccount creates a member account entry
func NewPoolMemberAccount(poolID uuid.UUID, accountID string, entityID uuid.UUID, entityName string, currency valueobject.Currency, role AccountRole) *PoolMemberAccount {
	return &PoolMemberAccount{
		ID:         uuid.New(),
		PoolID:     poolID,
		AccountID:  accountID,
		EntityID:   entityID,
		EntityName: entityName,
		Currency:   currency,
		Role:       role,
		Active:     true,
		AddedAt:    time.Now(),
	}
}

// CashPool is the aggregate root for a cash pooling arrangement.
// It exclusively owns its sweeps, interest allocations and config
// changes; no child record is shared across pools.
type CashPool struct {
	shared.TenantAggregateRoot
	Name                   string               `gorm:"type:varchar(200);not null"`
	PoolType               PoolType             `gorm:"type:varchar(20);not null"`
	Currency               valueobject.Currency `gorm:"type:varchar(3);not null"`
	Status                 PoolStatus           `gorm:"type:varchar(20);not null;default:'DRAFT';index"`
	TargetBalance          decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	SweepThreshold         decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	DailyLimit             decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	SingleTransactionLimit decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	AgreementReference     string               `gorm:"type:varchar(100)"`
	RateBenchmark          string               `gorm:"type:varchar(50)"`
	Members                []PoolMemberAccount  `gorm:"foreignKey:PoolID;references:ID"`
	ActivatedAt            *time.Time
	ClosedAt               *time.Time
}

// TableName returns the table name for GORM
func (CashPool) TableName() string {
	return "cash_pools"
}

// NewCashPool creates a pool in Draft status. Structural validation of
// the full configuration happens in Activate; this constructor guards
// only what can never be deferred.
func NewCashPool(
	tenantID uuid.UUID,
	name string,
	poolType PoolType,
	currency valueobject.Currency,
	targetBalance decimal.Decimal,
	sweepThreshold decimal.Decimal,
	dailyLimit decimal.Decimal,
	singleTransactionLimit decimal.Decimal,
) (*CashPool, error) {
	if name == "" {
		return nil, shared.NewDomainError("INVALID_POOL_NAME", "Pool name cannot be empty")
	}
	if !poolType.IsValid() {
		return nil, shared.NewDomainError("INVALID_POOL_TYPE", "Pool type is not valid")
	}
	if !currency.IsValid() {
		return nil, shared.NewDomainError("INVALID_CURRENCY", "Pool currency is not a valid ISO 4217 code")
	}
	if sweepThreshold.IsNegative() {
		return nil, ErrInvalidThreshold()
	}
	if poolType == PoolTypeZeroBalance && !targetBalance.IsZero() {
		return nil, ErrInvalidTarget("zero-balance pools must have a zero target")
	}

	p := &CashPool{
		TenantAggregateRoot:    shared.NewTenantAggregateRoot(tenantID),
		Name:                   name,
		PoolType:               poolType,
		Currency:               currency,
		Status:                 PoolStatusDraft,
		TargetBalance:          targetBalance,
		SweepThreshold:         sweepThreshold,
		DailyLimit:             dailyLimit,
		SingleTransactionLimit: singleTransactionLimit,
		Members:                make([]PoolMemberAccount, 0),
	}

	p.AddDomainEvent(NewPoolCreatedEvent(p))

	return p, nil
}

// AddMemberAccount registers a bank account as a pool member.
// Only Draft pools accept new members; currency purity is enforced for
// physical pool types (notional pools may mix currencies).
func (p *CashPool) AddMemberAccount(accountID string, entityID uuid.UUID, entityName string, currency valueobject.Currency, role AccountRole) error {
	if p.Status != PoolStatusDraft {
		return shared.NewDomainError("INVALID_STATE", "Member accounts can only be added to draft pools")
	}
	if accountID == "" {
		return shared.NewDomainError("INVALID_ACCOUNT", "Account ID cannot be empty")
	}
	if entityID == uuid.Nil {
		return shared.NewDomainError("INVALID_ENTITY", "Legal entity ID cannot be empty")
	}
	if len(p.Members) >= MaxMemberAccounts {
		return ErrEntityLimitExceeded(MaxMemberAccounts)
	}
	if p.PoolType.IsPhysical() && currency != p.Currency {
		return ErrInvalidCurrencyMix(string(p.Currency), string(currency))
	}
	for _, m := range p.Members {
		if m.AccountID == accountID {
			return ErrDuplicateMemberAccount(accountID)
		}
		if role == AccountRoleConcentration && m.Role == AccountRoleConcentration {
			return shared.NewDomainError("INVALID_ACCOUNT", "Pool already has a concentration account")
		}
	}

	member := NewPoolMemberAccount(p.ID, accountID, entityID, entityName, currency, role)
	p.Members = append(p.Members, *member)
	p.Touch()
	p.IncrementVersion()

	return nil
}

// Activate transitions Draft -> Active after the activation gates pass:
// at least two member accounts plus a concentration account, currency
// purity (physical pools), an agreement reference for intercompany
// pools, and a configured rate benchmark.
func (p *CashPool) Activate() error {
	if !p.Status.CanTransitionTo(PoolStatusActive) || p.Status == PoolStatusSuspended {
		return ErrInvalidStateTransition(p.Status, PoolStatusActive)
	}
	if len(p.Members) < 2 {
		return ErrInsufficientMembers(len(p.Members))
	}
	if p.ConcentrationAccount() == nil {
		return shared.NewDomainError("INVALID_ACCOUNT", "Pool requires a concentration account before activation")
	}
	if p.PoolType.IsPhysical() {
		for _, m := range p.Members {
			if m.Currency != p.Currency {
				return ErrInvalidCurrencyMix(string(p.Currency), string(m.Currency))
			}
		}
	}
	if p.IsIntercompany() && p.AgreementReference == "" {
		return ErrAgreementMissing()
	}
	if p.RateBenchmark == "" {
		return ErrInterestRateNotBenchmarked("")
	}

	now := time.Now()
	p.Status = PoolStatusActive
	p.ActivatedAt = &now
	p.Touch()
	p.IncrementVersion()

	p.AddDomainEvent(NewPoolActivatedEvent(p))

	return nil
}

// Suspend transitions Active -> Suspended. Suspended pools reject sweep
// and interest operations but still accept config changes.
func (p *CashPool) Suspend(reason string) error {
	if !p.Status.CanTransitionTo(PoolStatusSuspended) {
		return ErrInvalidStateTransition(p.Status, PoolStatusSuspended)
	}

	p.Status = PoolStatusSuspended
	p.Touch()
	p.IncrementVersion()

	p.AddDomainEvent(NewPoolSuspendedEvent(p, reason))

	return nil
}

// Resume transitions Suspended -> Active
func (p *CashPool) Resume() error {
	if p.Status != PoolStatusSuspended {
		return ErrInvalidStateTransition(p.Status, PoolStatusActive)
	}

	p.Status = PoolStatusActive
	p.Touch()
	p.IncrementVersion()

	p.AddDomainEvent(NewPoolResumedEvent(p))

	return nil
}

// Close transitions the pool to its terminal state. The caller must have
// verified no pending sweeps or config changes remain; that check needs
// repository counts and lives in the application service.
func (p *CashPool) Close() error {
	if !p.Status.CanTransitionTo(PoolStatusClosed) {
		return ErrInvalidStateTransition(p.Status, PoolStatusClosed)
	}

	now := time.Now()
	p.Status = PoolStatusClosed
	p.ClosedAt = &now
	p.Touch()
	p.IncrementVersion()

	p.AddDomainEvent(NewPoolClosedEvent(p))

	return nil
}

// ApplyConfigDelta applies an approved configuration change
func (p *CashPool) ApplyConfigDelta(delta PoolConfigDelta, changeID uuid.UUID) error {
	if p.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", "Cannot reconfigure a closed pool")
	}
	if delta.SweepThreshold != nil && delta.SweepThreshold.IsNegative() {
		return ErrInvalidThreshold()
	}
	if delta.TargetBalance != nil && p.PoolType == PoolTypeZeroBalance && !delta.TargetBalance.IsZero() {
		return ErrInvalidTarget("zero-balance pools must have a zero target")
	}

	if delta.Name != nil {
		p.Name = *delta.Name
	}
	if delta.TargetBalance != nil {
		p.TargetBalance = *delta.TargetBalance
	}
	if delta.SweepThreshold != nil {
		p.SweepThreshold = *delta.SweepThreshold
	}
	if delta.DailyLimit != nil {
		p.DailyLimit = *delta.DailyLimit
	}
	if delta.SingleTransactionLimit != nil {
		p.SingleTransactionLimit = *delta.SingleTransactionLimit
	}
	if delta.AgreementReference != nil {
		p.AgreementReference = *delta.AgreementReference
	}
	if delta.RateBenchmark != nil {
		p.RateBenchmark = *delta.RateBenchmark
	}

	p.Touch()
	p.IncrementVersion()

	p.AddDomainEvent(NewPoolConfigAppliedEvent(p, changeID))

	return nil
}

// ConcentrationAccount returns the pool's concentration account, or nil
func (p *CashPool) ConcentrationAccount() *PoolMemberAccount {
	for i := range p.Members {
		if p.Members[i].Role == AccountRoleConcentration {
			return &p.Members[i]
		}
	}
	return nil
}

// MemberByAccountID returns the member entry for a bank account, or nil
func (p *CashPool) MemberByAccountID(accountID string) *PoolMemberAccount {
	for i := range p.Members {
		if p.Members[i].AccountID == accountID {
			return &p.Members[i]
		}
	}
	return nil
}

// EntityIDs returns the distinct legal entities participating in the pool
func (p *CashPool) EntityIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(p.Members))
	ids := make([]uuid.UUID, 0, len(p.Members))
	for _, m := range p.Members {
		if _, ok := seen[m.EntityID]; !ok {
			seen[m.EntityID] = struct{}{}
			ids = append(ids, m.EntityID)
		}
	}
	return ids
}

// IsIntercompany reports whether members span more than one legal entity
func (p *CashPool) IsIntercompany() bool {
	return len(p.EntityIDs()) > 1
}

// IsActive returns true if the pool is active
func (p *CashPool) IsActive() bool {
	return p.Status == PoolStatusActive
}

// IsSuspended returns true if the pool is suspended
func (p *CashPool) IsSuspended() bool {
	return p.Status == PoolStatusSuspended
}

// TargetBalanceMoney returns the target balance as Money
func (p *CashPool) TargetBalanceMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(p.TargetBalance, p.Currency)
	return m
}
