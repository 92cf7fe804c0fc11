package persistence

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/treasury/backend/internal/domain/shared/valueobject"
	"github.com/treasury/backend/internal/domain/treasury"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an isolated in-memory database with the full schema
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&treasury.CashPool{},
		&treasury.PoolMemberAccount{},
		&treasury.CashSweep{},
		&treasury.LedgerLeg{},
		&treasury.InterestAllocation{},
		&treasury.AllocationLine{},
		&treasury.PoolConfigChange{},
		&treasury.PoolConfigHistory{},
	))

	return db
}

// newStoredPool builds an active two-member pool owned by tenantID
func newStoredPool(t *testing.T, tenantID uuid.UUID) *treasury.CashPool {
	t.Helper()

	pool, err := treasury.NewCashPool(
		tenantID,
		"EUR Operating Pool",
		treasury.PoolTypeTargetBalance,
		valueobject.EUR,
		decimal.NewFromInt(10000),
		decimal.NewFromInt(1000),
		decimal.NewFromInt(100000),
		decimal.NewFromInt(50000),
	)
	require.NoError(t, err)

	require.NoError(t, pool.AddMemberAccount("ACC-MEMBER-1", uuid.New(), "Subsidiary GmbH", valueobject.EUR, treasury.AccountRoleMember))
	require.NoError(t, pool.AddMemberAccount("ACC-CONC-1", uuid.New(), "Group Treasury BV", valueobject.EUR, treasury.AccountRoleConcentration))
	pool.RateBenchmark = "ESTR"
	pool.AgreementReference = "ICA-2026-014"
	require.NoError(t, pool.Activate())
	pool.ClearDomainEvents()

	return pool
}

// newStoredSweep builds a pending sweep for the pool's member pair
func newStoredSweep(t *testing.T, pool *treasury.CashPool, executionDate time.Time, amount int64, key string) *treasury.CashSweep {
	t.Helper()

	member := pool.MemberByAccountID("ACC-MEMBER-1")
	conc := pool.ConcentrationAccount()
	money, err := valueobject.NewMoney(decimal.NewFromInt(amount), pool.Currency)
	require.NoError(t, err)

	sweep, err := treasury.NewCashSweep(
		pool.TenantID,
		pool.ID,
		executionDate,
		member.AccountID,
		conc.AccountID,
		member.EntityID,
		conc.EntityID,
		money,
		key,
	)
	require.NoError(t, err)
	return sweep
}

func executedLeg(sweep *treasury.CashSweep, entityID uuid.UUID, direction treasury.LegDirection, ref string) treasury.LedgerLeg {
	return *treasury.NewLedgerLeg(sweep.ID, entityID, direction, sweep.Amount, ref)
}
