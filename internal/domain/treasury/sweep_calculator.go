package treasury

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/treasury/backend/internal/domain/shared"
	"github.com/treasury/backend/internal/domain/shared/valueobject"
)

// BalanceSnapshot is a point-in-time read of a bank account balance,
// delivered by the balance source collaborator.
type BalanceSnapshot struct {
	AccountID string
	Amount    decimal.Decimal
	Currency  valueobject.Currency
	AsOf      time.Time
}

// Age returns how stale the snapshot is relative to now
func (b BalanceSnapshot) Age(now time.Time) time.Duration {
	return now.Sub(b.AsOf)
}

// SweepPlan is the calculator's output: which transfer to make, if any.
// Amount is always positive; direction is expressed by the account pair.
type SweepPlan struct {
	PoolID        uuid.UUID
	FromAccountID string
	ToAccountID   string
	FromEntityID  uuid.UUID
	ToEntityID    uuid.UUID
	Amount        valueobject.Money
	// NoTransfer is set for notional pools: balances are recorded for
	// interest netting but no funds move.
	NoTransfer      bool
	RecordedBalance decimal.Decimal
}

// SweepCalculator computes sweep direction and amount from pool policy
// and a balance snapshot. Pure: no side effects, no clock access beyond
// the caller-supplied now.
type SweepCalculator struct {
	staleTolerance time.Duration
}

// NewSweepCalculator creates a calculator with the given balance
// staleness tolerance
func NewSweepCalculator(staleTolerance time.Duration) *SweepCalculator {
	return &SweepCalculator{staleTolerance: staleTolerance}
}

// Calculate sizes the sweep for one member account.
//
// sameDayTotal is the sum of absolute sweep amounts already executed for
// the pool on the execution date; it feeds the daily-limit gate.
func (c *SweepCalculator) Calculate(
	pool *CashPool,
	memberAccountID string,
	balance BalanceSnapshot,
	now time.Time,
	sameDayTotal decimal.Decimal,
) (*SweepPlan, error) {
	member := pool.MemberByAccountID(memberAccountID)
	if member == nil {
		return nil, shared.NewDomainError("INVALID_ACCOUNT", "Account is not a member of this pool")
	}
	if !member.Active {
		return nil, ErrInactiveBankAccount(memberAccountID)
	}
	if member.Role == AccountRoleConcentration {
		return nil, shared.NewDomainError("INVALID_ACCOUNT", "Cannot sweep the concentration account against itself")
	}

	if age := balance.Age(now); age > c.staleTolerance {
		return nil, ErrStaleBalance(age, c.staleTolerance)
	}
	if pool.PoolType.IsPhysical() && balance.Currency != pool.Currency {
		return nil, ErrInvalidCurrencyMix(string(pool.Currency), string(balance.Currency))
	}

	// Notional pooling moves no funds; the balance is only recorded for
	// interest netting.
	if pool.PoolType == PoolTypeNotional {
		return &SweepPlan{
			PoolID:          pool.ID,
			NoTransfer:      true,
			RecordedBalance: balance.Amount,
		}, nil
	}

	concentration := pool.ConcentrationAccount()
	if concentration == nil {
		return nil, shared.NewDomainError("INVALID_ACCOUNT", "Pool has no concentration account")
	}

	// Positive: excess flows member -> concentration.
	// Negative: the member is funded from the concentration account.
	sweepAmount := balance.Amount.Sub(pool.TargetBalance)
	absAmount := sweepAmount.Abs()

	if absAmount.LessThan(pool.SweepThreshold) {
		return nil, ErrSweepBelowThreshold(absAmount.String(), pool.SweepThreshold.String())
	}
	if pool.SingleTransactionLimit.IsPositive() && absAmount.GreaterThan(pool.SingleTransactionLimit) {
		return nil, ErrSweepExceedsLimit(LimitTypeSingle, absAmount.String(), pool.SingleTransactionLimit.String())
	}
	if pool.DailyLimit.IsPositive() && sameDayTotal.Add(absAmount).GreaterThan(pool.DailyLimit) {
		return nil, ErrSweepExceedsLimit(LimitTypeDaily, sameDayTotal.Add(absAmount).String(), pool.DailyLimit.String())
	}

	amount, err := valueobject.NewMoney(absAmount, pool.Currency)
	if err != nil {
		return nil, err
	}

	plan := &SweepPlan{
		PoolID: pool.ID,
		Amount: amount,
	}
	if sweepAmount.IsPositive() {
		plan.FromAccountID = member.AccountID
		plan.FromEntityID = member.EntityID
		plan.ToAccountID = concentration.AccountID
		plan.ToEntityID = concentration.EntityID
	} else {
		plan.FromAccountID = concentration.AccountID
		plan.FromEntityID = concentration.EntityID
		plan.ToAccountID = member.AccountID
		plan.ToEntityID = member.EntityID
	}

	return plan, nil
}
