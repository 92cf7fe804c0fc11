package treasury

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/treasury/backend/internal/domain/shared"
	"github.com/treasury/backend/internal/domain/shared/valueobject"
	"github.com/treasury/backend/internal/domain/treasury"
)

// MockCashPoolRepository is a mock implementation of CashPoolRepository
type MockCashPoolRepository struct {
	mock.Mock
}

func (m *MockCashPoolRepository) Save(ctx context.Context, pool *treasury.CashPool) error {
	args := m.Called(ctx, pool)
	return args.Error(0)
}

func (m *MockCashPoolRepository) SaveWithLock(ctx context.Context, pool *treasury.CashPool, expectedVersion int) error {
	args := m.Called(ctx, pool, expectedVersion)
	return args.Error(0)
}

func (m *MockCashPoolRepository) FindByID(ctx context.Context, tenantID, poolID uuid.UUID) (*treasury.CashPool, error) {
	args := m.Called(ctx, tenantID, poolID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*treasury.CashPool), args.Error(1)
}

func (m *MockCashPoolRepository) FindByStatus(ctx context.Context, tenantID uuid.UUID, status treasury.PoolStatus, filter shared.Filter) (*shared.Paginated[*treasury.CashPool], error) {
	args := m.Called(ctx, tenantID, status, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.Paginated[*treasury.CashPool]), args.Error(1)
}

func (m *MockCashPoolRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[*treasury.CashPool], error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.Paginated[*treasury.CashPool]), args.Error(1)
}

// MockCashSweepRepository is a mock implementation of CashSweepRepository
type MockCashSweepRepository struct {
	mock.Mock
}

func (m *MockCashSweepRepository) Save(ctx context.Context, sweep *treasury.CashSweep) error {
	args := m.Called(ctx, sweep)
	return args.Error(0)
}

func (m *MockCashSweepRepository) SaveWithLock(ctx context.Context, sweep *treasury.CashSweep, expectedVersion int) error {
	args := m.Called(ctx, sweep, expectedVersion)
	return args.Error(0)
}

func (m *MockCashSweepRepository) FindByID(ctx context.Context, tenantID, sweepID uuid.UUID) (*treasury.CashSweep, error) {
	args := m.Called(ctx, tenantID, sweepID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*treasury.CashSweep), args.Error(1)
}

func (m *MockCashSweepRepository) FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*treasury.CashSweep, error) {
	args := m.Called(ctx, tenantID, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*treasury.CashSweep), args.Error(1)
}

func (m *MockCashSweepRepository) FindByPool(ctx context.Context, tenantID, poolID uuid.UUID, filter shared.Filter) (*shared.Paginated[*treasury.CashSweep], error) {
	args := m.Called(ctx, tenantID, poolID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.Paginated[*treasury.CashSweep]), args.Error(1)
}

func (m *MockCashSweepRepository) SumSettledForDate(ctx context.Context, tenantID, poolID uuid.UUID, date time.Time) (decimal.Decimal, error) {
	args := m.Called(ctx, tenantID, poolID, date)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockCashSweepRepository) ExistsUnreconciledForPair(ctx context.Context, tenantID uuid.UUID, accountA, accountB string) (bool, error) {
	args := m.Called(ctx, tenantID, accountA, accountB)
	return args.Bool(0), args.Error(1)
}

func (m *MockCashSweepRepository) CountPendingForPool(ctx context.Context, tenantID, poolID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tenantID, poolID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCashSweepRepository) FindNeedingReconciliation(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[*treasury.CashSweep], error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.Paginated[*treasury.CashSweep]), args.Error(1)
}

// MockInterestAllocationRepository is a mock implementation of InterestAllocationRepository
type MockInterestAllocationRepository struct {
	mock.Mock
}

func (m *MockInterestAllocationRepository) Save(ctx context.Context, allocation *treasury.InterestAllocation) error {
	args := m.Called(ctx, allocation)
	return args.Error(0)
}

func (m *MockInterestAllocationRepository) FindByID(ctx context.Context, tenantID, allocationID uuid.UUID) (*treasury.InterestAllocation, error) {
	args := m.Called(ctx, tenantID, allocationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*treasury.InterestAllocation), args.Error(1)
}

func (m *MockInterestAllocationRepository) FindByPeriod(ctx context.Context, tenantID, poolID uuid.UUID, periodStart, periodEnd time.Time) (*treasury.InterestAllocation, error) {
	args := m.Called(ctx, tenantID, poolID, periodStart, periodEnd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*treasury.InterestAllocation), args.Error(1)
}

func (m *MockInterestAllocationRepository) FindByPool(ctx context.Context, tenantID, poolID uuid.UUID, filter shared.Filter) (*shared.Paginated[*treasury.InterestAllocation], error) {
	args := m.Called(ctx, tenantID, poolID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.Paginated[*treasury.InterestAllocation]), args.Error(1)
}

// MockPoolConfigChangeRepository is a mock implementation of PoolConfigChangeRepository
type MockPoolConfigChangeRepository struct {
	mock.Mock
}

func (m *MockPoolConfigChangeRepository) Save(ctx context.Context, change *treasury.PoolConfigChange) error {
	args := m.Called(ctx, change)
	return args.Error(0)
}

func (m *MockPoolConfigChangeRepository) SaveWithLock(ctx context.Context, change *treasury.PoolConfigChange, expectedVersion int) error {
	args := m.Called(ctx, change, expectedVersion)
	return args.Error(0)
}

func (m *MockPoolConfigChangeRepository) FindByID(ctx context.Context, tenantID, changeID uuid.UUID) (*treasury.PoolConfigChange, error) {
	args := m.Called(ctx, tenantID, changeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*treasury.PoolConfigChange), args.Error(1)
}

func (m *MockPoolConfigChangeRepository) FindPendingByPool(ctx context.Context, tenantID, poolID uuid.UUID) ([]*treasury.PoolConfigChange, error) {
	args := m.Called(ctx, tenantID, poolID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*treasury.PoolConfigChange), args.Error(1)
}

func (m *MockPoolConfigChangeRepository) CountPendingForPool(ctx context.Context, tenantID, poolID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tenantID, poolID)
	return args.Get(0).(int64), args.Error(1)
}

// MockPoolConfigHistoryRepository is a mock implementation of PoolConfigHistoryRepository
type MockPoolConfigHistoryRepository struct {
	mock.Mock
}

func (m *MockPoolConfigHistoryRepository) Append(ctx context.Context, history *treasury.PoolConfigHistory) error {
	args := m.Called(ctx, history)
	return args.Error(0)
}

func (m *MockPoolConfigHistoryRepository) FindByPool(ctx context.Context, tenantID, poolID uuid.UUID, filter shared.Filter) (*shared.Paginated[*treasury.PoolConfigHistory], error) {
	args := m.Called(ctx, tenantID, poolID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.Paginated[*treasury.PoolConfigHistory]), args.Error(1)
}

// MockBalanceSource is a mock implementation of BalanceSource
type MockBalanceSource struct {
	mock.Mock
}

func (m *MockBalanceSource) GetBalance(ctx context.Context, accountID string) (treasury.BalanceSnapshot, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(treasury.BalanceSnapshot), args.Error(1)
}

func (m *MockBalanceSource) GetDailyBalances(ctx context.Context, accountID string, periodStart, periodEnd time.Time) ([]treasury.DatedBalance, error) {
	args := m.Called(ctx, accountID, periodStart, periodEnd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]treasury.DatedBalance), args.Error(1)
}

// MockLedgerPoster is a mock implementation of LedgerPoster
type MockLedgerPoster struct {
	mock.Mock
}

func (m *MockLedgerPoster) Post(ctx context.Context, entityID uuid.UUID, reference string, lines []treasury.LedgerLine) (string, error) {
	args := m.Called(ctx, entityID, reference, lines)
	return args.String(0), args.Error(1)
}

// MockFiscalCalendar is a mock implementation of FiscalCalendar
type MockFiscalCalendar struct {
	mock.Mock
}

func (m *MockFiscalCalendar) IsPeriodOpen(ctx context.Context, tenantID uuid.UUID, date time.Time) (bool, error) {
	args := m.Called(ctx, tenantID, date)
	return args.Bool(0), args.Error(1)
}

// MockInterestRateSource is a mock implementation of InterestRateSource
type MockInterestRateSource struct {
	mock.Mock
}

func (m *MockInterestRateSource) BenchmarkRate(ctx context.Context, benchmark string, periodStart, periodEnd time.Time) (decimal.Decimal, error) {
	args := m.Called(ctx, benchmark, periodStart, periodEnd)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// MockPolicyOracle is a mock implementation of PolicyOracle
type MockPolicyOracle struct {
	mock.Mock
}

func (m *MockPolicyOracle) Evaluate(ctx context.Context, actor treasury.Actor, action treasury.PolicyAction, resource treasury.PolicyResource) (treasury.PolicyDecision, error) {
	args := m.Called(ctx, actor, action, resource)
	return args.Get(0).(treasury.PolicyDecision), args.Error(1)
}

// MockAuditSink is a mock implementation of AuditSink
type MockAuditSink struct {
	mock.Mock
}

func (m *MockAuditSink) Append(ctx context.Context, event treasury.AuditEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockIdempotencyStore is a mock implementation of IdempotencyStore
type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// testRepos bundles the repository mocks behind a NoOpTransactionScope
type testRepos struct {
	pools         *MockCashPoolRepository
	sweeps        *MockCashSweepRepository
	allocations   *MockInterestAllocationRepository
	configChanges *MockPoolConfigChangeRepository
	configHistory *MockPoolConfigHistoryRepository
}

func newTestRepos() *testRepos {
	return &testRepos{
		pools:         new(MockCashPoolRepository),
		sweeps:        new(MockCashSweepRepository),
		allocations:   new(MockInterestAllocationRepository),
		configChanges: new(MockPoolConfigChangeRepository),
		configHistory: new(MockPoolConfigHistoryRepository),
	}
}

func (r *testRepos) scope() *NoOpTransactionScope {
	return NewNoOpTransactionScope(r.pools, r.sweeps, r.allocations, r.configChanges, r.configHistory)
}

// allowAllOracle grants every policy request
func allowAllOracle() *MockPolicyOracle {
	oracle := new(MockPolicyOracle)
	oracle.On("Evaluate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(treasury.Allow(), nil)
	return oracle
}

// poolFixture is an activated two-member intercompany target-balance pool
type poolFixture struct {
	pool         *treasury.CashPool
	tenantID     uuid.UUID
	memberEntity uuid.UUID
	concEntity   uuid.UUID
}

func newActivePool(t *testing.T) *poolFixture {
	t.Helper()

	tenantID := uuid.New()
	pool, err := treasury.NewCashPool(
		tenantID,
		"Group USD Pool",
		treasury.PoolTypeTargetBalance,
		valueobject.USD,
		decimal.NewFromInt(10000),
		decimal.NewFromInt(1000),
		decimal.NewFromInt(100000),
		decimal.NewFromInt(50000),
	)
	require.NoError(t, err)

	memberEntity := uuid.New()
	concEntity := uuid.New()
	require.NoError(t, pool.AddMemberAccount("ACC-MEMBER-1", memberEntity, "Subsidiary One", valueobject.USD, treasury.AccountRoleMember))
	require.NoError(t, pool.AddMemberAccount("ACC-CONC-1", concEntity, "Group Treasury", valueobject.USD, treasury.AccountRoleConcentration))
	pool.RateBenchmark = "SOFR"
	pool.AgreementReference = "ICA-2026-001"
	require.NoError(t, pool.Activate())
	pool.ClearDomainEvents()

	return &poolFixture{
		pool:         pool,
		tenantID:     tenantID,
		memberEntity: memberEntity,
		concEntity:   concEntity,
	}
}

// actorScopedTo builds an actor whose entity scope covers the given entities
func actorScopedTo(entities ...uuid.UUID) treasury.Actor {
	return treasury.Actor{
		UserID:      uuid.New(),
		Roles:       []string{"treasury-operator"},
		EntityScope: entities,
	}
}

func assertDomainCode(t *testing.T, err error, code string) {
	t.Helper()
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	require.Equal(t, code, domainErr.Code)
}
