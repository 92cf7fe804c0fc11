package treasury

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/treasury/backend/internal/domain/shared"
	"github.com/treasury/backend/internal/domain/shared/valueobject"
)

func calculatorPool(t *testing.T) *CashPool {
	t.Helper()
	pool := newTargetPool(t)
	addActivatableMembers(t, pool)
	require.NoError(t, pool.Activate())
	return pool
}

func snapshotAt(amount int64, asOf time.Time) BalanceSnapshot {
	return BalanceSnapshot{
		AccountID: "ACC-MEMBER-1",
		Amount:    decimal.NewFromInt(amount),
		Currency:  valueobject.USD,
		AsOf:      asOf,
	}
}

func TestSweepCalculator_ExcessSweepsToConcentration(t *testing.T) {
	pool := calculatorPool(t)
	calc := NewSweepCalculator(15 * time.Minute)
	now := time.Now()

	// Balance 15000 against target 10000 leaves 5000 above threshold 1000.
	plan, err := calc.Calculate(pool, "ACC-MEMBER-1", snapshotAt(15000, now), now, decimal.Zero)

	require.NoError(t, err)
	assert.False(t, plan.NoTransfer)
	assert.Equal(t, "ACC-MEMBER-1", plan.FromAccountID)
	assert.Equal(t, "ACC-CONC-1", plan.ToAccountID)
	assert.True(t, plan.Amount.Amount().Equal(decimal.NewFromInt(5000)))
	assert.Equal(t, valueobject.USD, plan.Amount.Currency())
}

func TestSweepCalculator_DeficitFundedFromConcentration(t *testing.T) {
	pool := calculatorPool(t)
	calc := NewSweepCalculator(15 * time.Minute)
	now := time.Now()

	plan, err := calc.Calculate(pool, "ACC-MEMBER-1", snapshotAt(6000, now), now, decimal.Zero)

	require.NoError(t, err)
	assert.Equal(t, "ACC-CONC-1", plan.FromAccountID)
	assert.Equal(t, "ACC-MEMBER-1", plan.ToAccountID)
	assert.True(t, plan.Amount.Amount().Equal(decimal.NewFromInt(4000)))
}

func TestSweepCalculator_BelowThreshold(t *testing.T) {
	pool := calculatorPool(t)
	calc := NewSweepCalculator(15 * time.Minute)
	now := time.Now()

	// 10500 - 10000 leaves 500, under the 1000 threshold.
	_, err := calc.Calculate(pool, "ACC-MEMBER-1", snapshotAt(10500, now), now, decimal.Zero)

	require.Error(t, err)
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, CodeSweepBelowThreshold, domainErr.Code)
}

func TestSweepCalculator_SingleTransactionLimit(t *testing.T) {
	pool := calculatorPool(t)
	calc := NewSweepCalculator(15 * time.Minute)
	now := time.Now()

	// 70000 - 10000 = 60000 exceeds the 50000 single limit.
	_, err := calc.Calculate(pool, "ACC-MEMBER-1", snapshotAt(70000, now), now, decimal.Zero)

	require.Error(t, err)
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, CodeSweepExceedsLimit, domainErr.Code)
	assert.Equal(t, "single", domainErr.Details["limit_type"])
}

func TestSweepCalculator_SingleLimitBoundaryAllowed(t *testing.T) {
	pool := calculatorPool(t)
	calc := NewSweepCalculator(15 * time.Minute)
	now := time.Now()

	plan, err := calc.Calculate(pool, "ACC-MEMBER-1", snapshotAt(60000, now), now, decimal.Zero)

	require.NoError(t, err)
	assert.True(t, plan.Amount.Amount().Equal(decimal.NewFromInt(50000)))
}

func TestSweepCalculator_DailyLimit(t *testing.T) {
	pool := calculatorPool(t)
	calc := NewSweepCalculator(15 * time.Minute)
	now := time.Now()

	// 97000 already settled today; another 5000 would breach the 100000
	// daily limit.
	_, err := calc.Calculate(pool, "ACC-MEMBER-1", snapshotAt(15000, now), now, decimal.NewFromInt(97000))

	require.Error(t, err)
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, CodeSweepExceedsLimit, domainErr.Code)
	assert.Equal(t, "daily", domainErr.Details["limit_type"])
}

func TestSweepCalculator_StaleBalance(t *testing.T) {
	pool := calculatorPool(t)
	calc := NewSweepCalculator(15 * time.Minute)
	now := time.Now()
	stale := snapshotAt(15000, now.Add(-30*time.Minute))

	_, err := calc.Calculate(pool, "ACC-MEMBER-1", stale, now, decimal.Zero)

	require.Error(t, err)
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, CodeStaleBalance, domainErr.Code)
}

func TestSweepCalculator_CurrencyMismatch(t *testing.T) {
	pool := calculatorPool(t)
	calc := NewSweepCalculator(15 * time.Minute)
	now := time.Now()
	snapshot := snapshotAt(15000, now)
	snapshot.Currency = valueobject.EUR

	_, err := calc.Calculate(pool, "ACC-MEMBER-1", snapshot, now, decimal.Zero)

	require.Error(t, err)
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, CodeInvalidCurrencyMix, domainErr.Code)
}

func TestSweepCalculator_UnknownAccount(t *testing.T) {
	pool := calculatorPool(t)
	calc := NewSweepCalculator(15 * time.Minute)
	now := time.Now()

	_, err := calc.Calculate(pool, "ACC-UNKNOWN", snapshotAt(15000, now), now, decimal.Zero)

	assert.Error(t, err)
}

func TestSweepCalculator_InactiveAccount(t *testing.T) {
	pool := calculatorPool(t)
	pool.Members[0].Active = false
	calc := NewSweepCalculator(15 * time.Minute)
	now := time.Now()

	_, err := calc.Calculate(pool, "ACC-MEMBER-1", snapshotAt(15000, now), now, decimal.Zero)

	require.Error(t, err)
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, CodeInactiveBankAccount, domainErr.Code)
}

func TestSweepCalculator_ConcentrationAccountRejected(t *testing.T) {
	pool := calculatorPool(t)
	calc := NewSweepCalculator(15 * time.Minute)
	now := time.Now()
	snapshot := snapshotAt(15000, now)
	snapshot.AccountID = "ACC-CONC-1"

	_, err := calc.Calculate(pool, "ACC-CONC-1", snapshot, now, decimal.Zero)

	assert.Error(t, err)
}

func TestSweepCalculator_NotionalRecordsWithoutTransfer(t *testing.T) {
	pool, err := NewCashPool(uuid.New(), "Notional Pool", PoolTypeNotional, valueobject.USD,
		decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero)
	require.NoError(t, err)
	require.NoError(t, pool.AddMemberAccount("ACC-EUR", uuid.New(), "A", valueobject.EUR, AccountRoleMember))
	require.NoError(t, pool.AddMemberAccount("ACC-CONC", uuid.New(), "B", valueobject.USD, AccountRoleConcentration))
	pool.RateBenchmark = "ESTR"
	pool.AgreementReference = "ICA-2026-002"
	require.NoError(t, pool.Activate())

	calc := NewSweepCalculator(15 * time.Minute)
	now := time.Now()
	snapshot := BalanceSnapshot{
		AccountID: "ACC-EUR",
		Amount:    decimal.NewFromInt(8200),
		Currency:  valueobject.EUR,
		AsOf:      now,
	}

	plan, err := calc.Calculate(pool, "ACC-EUR", snapshot, now, decimal.Zero)

	require.NoError(t, err)
	assert.True(t, plan.NoTransfer)
	assert.True(t, plan.RecordedBalance.Equal(decimal.NewFromInt(8200)))
	assert.Empty(t, plan.FromAccountID)
}

func TestSweepCalculator_ZeroBalancePoolSweepsToZero(t *testing.T) {
	pool, err := NewCashPool(uuid.New(), "ZBA Pool", PoolTypeZeroBalance, valueobject.USD,
		decimal.Zero, decimal.NewFromInt(100), decimal.Zero, decimal.Zero)
	require.NoError(t, err)
	require.NoError(t, pool.AddMemberAccount("ACC-M", uuid.New(), "A", valueobject.USD, AccountRoleMember))
	require.NoError(t, pool.AddMemberAccount("ACC-C", uuid.New(), "B", valueobject.USD, AccountRoleConcentration))
	pool.RateBenchmark = "SOFR"
	pool.AgreementReference = "ICA-2026-003"
	require.NoError(t, pool.Activate())

	calc := NewSweepCalculator(15 * time.Minute)
	now := time.Now()
	snapshot := BalanceSnapshot{
		AccountID: "ACC-M",
		Amount:    decimal.NewFromInt(7250),
		Currency:  valueobject.USD,
		AsOf:      now,
	}

	plan, err := calc.Calculate(pool, "ACC-M", snapshot, now, decimal.Zero)

	require.NoError(t, err)
	assert.True(t, plan.Amount.Amount().Equal(decimal.NewFromInt(7250)))
	assert.Equal(t, "ACC-M", plan.FromAccountID)
	assert.Equal(t, "ACC-C", plan.ToAccountID)
}
