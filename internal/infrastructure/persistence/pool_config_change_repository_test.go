package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/treasury/backend/internal/domain/shared"
	"github.com/treasury/backend/internal/domain/treasury"
)

func newStoredChange(t *testing.T, pool *treasury.CashPool) *treasury.PoolConfigChange {
	t.Helper()

	threshold := decimal.NewFromInt(2500)
	change, err := treasury.NewPoolConfigChange(
		pool.TenantID,
		pool.ID,
		uuid.New(),
		pool.Version,
		treasury.PoolConfigDelta{SweepThreshold: &threshold},
		"raise threshold for quarter end",
	)
	require.NoError(t, err)
	change.ClearDomainEvents()
	return change
}

func TestGormPoolConfigChangeRepository_Save(t *testing.T) {
	t.Run("should round-trip a change including the proposed delta", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewGormPoolConfigChangeRepository(db)
		pool := newStoredPool(t, uuid.New())
		change := newStoredChange(t, pool)

		require.NoError(t, repo.Save(context.Background(), change))

		found, err := repo.FindByID(context.Background(), pool.TenantID, change.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, treasury.ConfigChangeStatusPending, found.Status)
		assert.Equal(t, change.RequestedBy, found.RequestedBy)
		assert.Equal(t, pool.Version, found.ExpectedPoolVersion)
		require.NotNil(t, found.ProposedDelta.SweepThreshold)
		assert.True(t, found.ProposedDelta.SweepThreshold.Equal(decimal.NewFromInt(2500)))
	})

	t.Run("should return nil for an unknown change", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewGormPoolConfigChangeRepository(db)

		found, err := repo.FindByID(context.Background(), uuid.New(), uuid.New())
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}

func TestGormPoolConfigChangeRepository_SaveWithLock(t *testing.T) {
	t.Run("should let exactly one decision through", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewGormPoolConfigChangeRepository(db)
		pool := newStoredPool(t, uuid.New())
		change := newStoredChange(t, pool)
		require.NoError(t, repo.Save(context.Background(), change))

		versionBefore := change.Version
		require.NoError(t, change.Approve(uuid.New(), pool.Version))

		require.NoError(t, repo.SaveWithLock(context.Background(), change, versionBefore))

		err := repo.SaveWithLock(context.Background(), change, versionBefore)
		require.Error(t, err)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, treasury.CodeVersionConflict, domainErr.Code)

		found, err := repo.FindByID(context.Background(), pool.TenantID, change.ID)
		require.NoError(t, err)
		assert.Equal(t, treasury.ConfigChangeStatusApproved, found.Status)
		require.NotNil(t, found.ApprovedBy)
	})
}

func TestGormPoolConfigChangeRepository_Pending(t *testing.T) {
	t.Run("should list and count only pending changes", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewGormPoolConfigChangeRepository(db)
		pool := newStoredPool(t, uuid.New())

		pending := newStoredChange(t, pool)
		require.NoError(t, repo.Save(context.Background(), pending))

		decided := newStoredChange(t, pool)
		require.NoError(t, decided.Reject(uuid.New(), "not needed"))
		require.NoError(t, repo.Save(context.Background(), decided))

		changes, err := repo.FindPendingByPool(context.Background(), pool.TenantID, pool.ID)
		require.NoError(t, err)
		require.Len(t, changes, 1)
		assert.Equal(t, pending.ID, changes[0].ID)

		count, err := repo.CountPendingForPool(context.Background(), pool.TenantID, pool.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, count)
	})
}

func TestGormPoolConfigHistoryRepository(t *testing.T) {
	t.Run("should append and list snapshots", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewGormPoolConfigHistoryRepository(db)
		pool := newStoredPool(t, uuid.New())

		activation := treasury.NewPoolConfigHistory(pool, nil)
		require.NoError(t, repo.Append(context.Background(), activation))

		changeID := uuid.New()
		afterChange := treasury.NewPoolConfigHistory(pool, &changeID)
		require.NoError(t, repo.Append(context.Background(), afterChange))

		page, err := repo.FindByPool(context.Background(), pool.TenantID, pool.ID, shared.DefaultFilter())
		require.NoError(t, err)
		assert.EqualValues(t, 2, page.Total)
		require.Len(t, page.Items, 2)
	})

	t.Run("should scope history per tenant", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewGormPoolConfigHistoryRepository(db)
		pool := newStoredPool(t, uuid.New())
		require.NoError(t, repo.Append(context.Background(), treasury.NewPoolConfigHistory(pool, nil)))

		page, err := repo.FindByPool(context.Background(), uuid.New(), pool.ID, shared.DefaultFilter())
		require.NoError(t, err)
		assert.EqualValues(t, 0, page.Total)
		assert.Empty(t, page.Items)
	})
}
