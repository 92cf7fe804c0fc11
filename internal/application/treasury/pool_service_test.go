package treasury

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/treasury/backend/internal/domain/shared"
	"github.com/treasury/backend/internal/domain/shared/valueobject"
	"github.com/treasury/backend/internal/domain/treasury"
	"go.uber.org/zap"
)

type poolServiceFixture struct {
	repos   *testRepos
	audit   *MockAuditSink
	service *PoolService
}

func newPoolServiceFixture(t *testing.T) *poolServiceFixture {
	t.Helper()

	f := &poolServiceFixture{
		repos: newTestRepos(),
		audit: new(MockAuditSink),
	}
	f.audit.On("Append", mock.Anything, mock.Anything).Return(nil)
	f.service = NewPoolService(
		f.repos.scope(),
		NewAuthorizationGate(allowAllOracle()),
		f.audit,
		shared.NoOpEventPublisher{},
		zap.NewNop(),
	)
	return f
}

func TestPoolService_CreatePool(t *testing.T) {
	t.Run("should create a draft pool", func(t *testing.T) {
		f := newPoolServiceFixture(t)
		cmd := CreatePoolCommand{
			TenantID:               uuid.New(),
			Actor:                  actorScopedTo(),
			Name:                   "Group USD Pool",
			PoolType:               treasury.PoolTypeTargetBalance,
			Currency:               valueobject.USD,
			TargetBalance:          decimal.NewFromInt(10000),
			SweepThreshold:         decimal.NewFromInt(1000),
			DailyLimit:             decimal.NewFromInt(100000),
			SingleTransactionLimit: decimal.NewFromInt(50000),
			RateBenchmark:          "SOFR",
		}

		f.repos.pools.On("Save", mock.Anything, mock.Anything).Return(nil)

		view, err := f.service.CreatePool(context.Background(), cmd)
		require.NoError(t, err)

		assert.Equal(t, treasury.PoolStatusDraft, view.Status)
		assert.Equal(t, "Group USD Pool", view.Name)
		assert.Equal(t, 1, view.Version)
		assert.Zero(t, view.MemberCount)
		f.audit.AssertCalled(t, "Append", mock.Anything, mock.Anything)
	})

	t.Run("should reject a command missing required fields", func(t *testing.T) {
		f := newPoolServiceFixture(t)
		cmd := CreatePoolCommand{
			TenantID: uuid.New(),
			Actor:    actorScopedTo(),
			PoolType: treasury.PoolTypeTargetBalance,
			Currency: valueobject.USD,
		}

		_, err := f.service.CreatePool(context.Background(), cmd)
		assertDomainCode(t, err, "INVALID_INPUT")
		f.repos.pools.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})
}

func TestPoolService_AddMemberAccount(t *testing.T) {
	newDraftPool := func(t *testing.T) (*treasury.CashPool, uuid.UUID) {
		t.Helper()
		tenantID := uuid.New()
		pool, err := treasury.NewCashPool(
			tenantID, "Group USD Pool", treasury.PoolTypeTargetBalance, valueobject.USD,
			decimal.NewFromInt(10000), decimal.NewFromInt(1000),
			decimal.NewFromInt(100000), decimal.NewFromInt(50000),
		)
		require.NoError(t, err)
		pool.ClearDomainEvents()
		return pool, tenantID
	}

	t.Run("should add a member to a draft pool", func(t *testing.T) {
		f := newPoolServiceFixture(t)
		pool, tenantID := newDraftPool(t)
		entityID := uuid.New()
		cmd := AddMemberAccountCommand{
			TenantID:   tenantID,
			Actor:      actorScopedTo(entityID),
			PoolID:     pool.ID,
			AccountID:  "ACC-MEMBER-1",
			EntityID:   entityID,
			EntityName: "Subsidiary One",
			Currency:   valueobject.USD,
			Role:       treasury.AccountRoleMember,
		}

		f.repos.pools.On("FindByID", mock.Anything, tenantID, pool.ID).Return(pool, nil)
		f.repos.pools.On("SaveWithLock", mock.Anything, pool, 1).Return(nil)

		view, err := f.service.AddMemberAccount(context.Background(), cmd)
		require.NoError(t, err)

		assert.Equal(t, 1, view.MemberCount)
		assert.Equal(t, 2, view.Version)
	})

	t.Run("should reject a duplicate account", func(t *testing.T) {
		f := newPoolServiceFixture(t)
		pool, tenantID := newDraftPool(t)
		entityID := uuid.New()
		require.NoError(t, pool.AddMemberAccount("ACC-MEMBER-1", entityID, "Subsidiary One", valueobject.USD, treasury.AccountRoleMember))

		cmd := AddMemberAccountCommand{
			TenantID:   tenantID,
			Actor:      actorScopedTo(entityID),
			PoolID:     pool.ID,
			AccountID:  "ACC-MEMBER-1",
			EntityID:   entityID,
			EntityName: "Subsidiary One",
			Currency:   valueobject.USD,
			Role:       treasury.AccountRoleMember,
		}

		f.repos.pools.On("FindByID", mock.Anything, tenantID, pool.ID).Return(pool, nil)

		_, err := f.service.AddMemberAccount(context.Background(), cmd)
		assertDomainCode(t, err, treasury.CodeDuplicateMemberAccount)
		f.repos.pools.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestPoolService_Lifecycle(t *testing.T) {
	t.Run("should activate and snapshot the initial configuration", func(t *testing.T) {
		f := newPoolServiceFixture(t)

		tenantID := uuid.New()
		pool, err := treasury.NewCashPool(
			tenantID, "Group USD Pool", treasury.PoolTypeTargetBalance, valueobject.USD,
			decimal.NewFromInt(10000), decimal.NewFromInt(1000),
			decimal.NewFromInt(100000), decimal.NewFromInt(50000),
		)
		require.NoError(t, err)
		memberEntity := uuid.New()
		concEntity := uuid.New()
		require.NoError(t, pool.AddMemberAccount("ACC-MEMBER-1", memberEntity, "Subsidiary One", valueobject.USD, treasury.AccountRoleMember))
		require.NoError(t, pool.AddMemberAccount("ACC-CONC-1", concEntity, "Group Treasury", valueobject.USD, treasury.AccountRoleConcentration))
		pool.RateBenchmark = "SOFR"
		pool.AgreementReference = "ICA-2026-001"
		versionBefore := pool.Version

		cmd := PoolLifecycleCommand{
			TenantID: tenantID,
			Actor:    actorScopedTo(memberEntity, concEntity),
			PoolID:   pool.ID,
		}

		f.repos.pools.On("FindByID", mock.Anything, tenantID, pool.ID).Return(pool, nil)
		f.repos.pools.On("SaveWithLock", mock.Anything, pool, versionBefore).Return(nil)
		f.repos.configHistory.On("Append", mock.Anything, mock.MatchedBy(func(h *treasury.PoolConfigHistory) bool {
			return h.ChangeID == nil && h.PoolID == pool.ID
		})).Return(nil)

		view, err := f.service.ActivatePool(context.Background(), cmd)
		require.NoError(t, err)

		assert.Equal(t, treasury.PoolStatusActive, view.Status)
		f.repos.configHistory.AssertNumberOfCalls(t, "Append", 1)
	})

	t.Run("should suspend and resume an active pool", func(t *testing.T) {
		f := newPoolServiceFixture(t)
		fx := newActivePool(t)
		cmd := PoolLifecycleCommand{
			TenantID: fx.tenantID,
			Actor:    actorScopedTo(fx.memberEntity, fx.concEntity),
			PoolID:   fx.pool.ID,
			Reason:   "quarter-end audit",
		}

		f.repos.pools.On("FindByID", mock.Anything, fx.tenantID, fx.pool.ID).Return(fx.pool, nil)
		f.repos.pools.On("SaveWithLock", mock.Anything, fx.pool, mock.Anything).Return(nil)

		view, err := f.service.SuspendPool(context.Background(), cmd)
		require.NoError(t, err)
		assert.Equal(t, treasury.PoolStatusSuspended, view.Status)

		view, err = f.service.ResumePool(context.Background(), cmd)
		require.NoError(t, err)
		assert.Equal(t, treasury.PoolStatusActive, view.Status)
	})

	t.Run("should refuse closure while pending work remains", func(t *testing.T) {
		f := newPoolServiceFixture(t)
		fx := newActivePool(t)
		cmd := PoolLifecycleCommand{
			TenantID: fx.tenantID,
			Actor:    actorScopedTo(fx.memberEntity, fx.concEntity),
			PoolID:   fx.pool.ID,
		}

		f.repos.pools.On("FindByID", mock.Anything, fx.tenantID, fx.pool.ID).Return(fx.pool, nil)
		f.repos.sweeps.On("CountPendingForPool", mock.Anything, fx.tenantID, fx.pool.ID).Return(int64(1), nil)
		f.repos.configChanges.On("CountPendingForPool", mock.Anything, fx.tenantID, fx.pool.ID).Return(int64(0), nil)

		_, err := f.service.ClosePool(context.Background(), cmd)
		assertDomainCode(t, err, treasury.CodePendingTransactions)
		assert.Equal(t, treasury.PoolStatusActive, fx.pool.Status)
	})

	t.Run("should close a quiet pool", func(t *testing.T) {
		f := newPoolServiceFixture(t)
		fx := newActivePool(t)
		cmd := PoolLifecycleCommand{
			TenantID: fx.tenantID,
			Actor:    actorScopedTo(fx.memberEntity, fx.concEntity),
			PoolID:   fx.pool.ID,
		}

		f.repos.pools.On("FindByID", mock.Anything, fx.tenantID, fx.pool.ID).Return(fx.pool, nil)
		f.repos.sweeps.On("CountPendingForPool", mock.Anything, fx.tenantID, fx.pool.ID).Return(int64(0), nil)
		f.repos.configChanges.On("CountPendingForPool", mock.Anything, fx.tenantID, fx.pool.ID).Return(int64(0), nil)
		f.repos.pools.On("SaveWithLock", mock.Anything, fx.pool, mock.Anything).Return(nil)

		view, err := f.service.ClosePool(context.Background(), cmd)
		require.NoError(t, err)
		assert.Equal(t, treasury.PoolStatusClosed, view.Status)
	})

	t.Run("should reject an actor outside the pool's entity scope", func(t *testing.T) {
		f := newPoolServiceFixture(t)
		fx := newActivePool(t)
		cmd := PoolLifecycleCommand{
			TenantID: fx.tenantID,
			Actor:    actorScopedTo(uuid.New()),
			PoolID:   fx.pool.ID,
		}

		f.repos.pools.On("FindByID", mock.Anything, fx.tenantID, fx.pool.ID).Return(fx.pool, nil)

		_, err := f.service.SuspendPool(context.Background(), cmd)
		assertDomainCode(t, err, treasury.CodeScopeViolation)
	})
}

func TestPoolService_Queries(t *testing.T) {
	t.Run("should list pools as views", func(t *testing.T) {
		f := newPoolServiceFixture(t)
		fx := newActivePool(t)
		page := shared.NewPaginated([]*treasury.CashPool{fx.pool}, 1, 1, 20)

		f.repos.pools.On("FindAll", mock.Anything, fx.tenantID, mock.Anything).Return(&page, nil)

		result, err := f.service.ListPools(context.Background(), fx.tenantID, shared.Filter{Page: 1, PageSize: 20})
		require.NoError(t, err)

		assert.Equal(t, int64(1), result.Total)
		require.Len(t, result.Items, 1)
		assert.Equal(t, fx.pool.ID, result.Items[0].ID)
		assert.Equal(t, 2, result.Items[0].MemberCount)
	})

	t.Run("should return not found for an unknown pool", func(t *testing.T) {
		f := newPoolServiceFixture(t)
		tenantID := uuid.New()
		poolID := uuid.New()

		f.repos.pools.On("FindByID", mock.Anything, tenantID, poolID).Return(nil, nil)

		_, err := f.service.GetPool(context.Background(), tenantID, poolID)
		assertDomainCode(t, err, treasury.CodePoolNotFound)
	})
}
