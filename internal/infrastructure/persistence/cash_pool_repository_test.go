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

func TestGormCashPoolRepository_Save(t *testing.T) {
	t.Run("should round-trip a pool with its members", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewGormCashPoolRepository(db)
		tenantID := uuid.New()
		pool := newStoredPool(t, tenantID)

		require.NoError(t, repo.Save(context.Background(), pool))

		found, err := repo.FindByID(context.Background(), tenantID, pool.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, pool.Name, found.Name)
		assert.Equal(t, treasury.PoolStatusActive, found.Status)
		assert.True(t, found.SweepThreshold.Equal(decimal.NewFromInt(1000)))
		require.Len(t, found.Members, 2)
		assert.NotNil(t, found.ConcentrationAccount())
	})

	t.Run("should persist member removals", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewGormCashPoolRepository(db)
		tenantID := uuid.New()
		pool := newStoredPool(t, tenantID)
		require.NoError(t, repo.Save(context.Background(), pool))

		pool.Members = pool.Members[1:]
		require.NoError(t, repo.Save(context.Background(), pool))

		found, err := repo.FindByID(context.Background(), tenantID, pool.ID)
		require.NoError(t, err)
		require.Len(t, found.Members, 1)
		assert.Equal(t, "ACC-CONC-1", found.Members[0].AccountID)
	})
}

func TestGormCashPoolRepository_FindByID(t *testing.T) {
	t.Run("should return nil for an unknown pool", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewGormCashPoolRepository(db)

		found, err := repo.FindByID(context.Background(), uuid.New(), uuid.New())
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("should not cross tenant boundaries", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewGormCashPoolRepository(db)
		pool := newStoredPool(t, uuid.New())
		require.NoError(t, repo.Save(context.Background(), pool))

		found, err := repo.FindByID(context.Background(), uuid.New(), pool.ID)
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}

func TestGormCashPoolRepository_SaveWithLock(t *testing.T) {
	t.Run("should persist when the stored version matches", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewGormCashPoolRepository(db)
		tenantID := uuid.New()
		pool := newStoredPool(t, tenantID)
		require.NoError(t, repo.Save(context.Background(), pool))

		versionBefore := pool.Version
		require.NoError(t, pool.Suspend("audit"))

		require.NoError(t, repo.SaveWithLock(context.Background(), pool, versionBefore))

		found, err := repo.FindByID(context.Background(), tenantID, pool.ID)
		require.NoError(t, err)
		assert.Equal(t, treasury.PoolStatusSuspended, found.Status)
		assert.Equal(t, versionBefore+1, found.Version)
	})

	t.Run("should reject a stale version", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewGormCashPoolRepository(db)
		tenantID := uuid.New()
		pool := newStoredPool(t, tenantID)
		require.NoError(t, repo.Save(context.Background(), pool))

		require.NoError(t, pool.Suspend("audit"))

		err := repo.SaveWithLock(context.Background(), pool, pool.Version+5)
		require.Error(t, err)

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, treasury.CodeVersionConflict, domainErr.Code)

		found, err := repo.FindByID(context.Background(), tenantID, pool.ID)
		require.NoError(t, err)
		assert.Equal(t, treasury.PoolStatusActive, found.Status)
	})
}

func TestGormCashPoolRepository_FindByStatus(t *testing.T) {
	t.Run("should filter by status and paginate", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewGormCashPoolRepository(db)
		tenantID := uuid.New()

		active := newStoredPool(t, tenantID)
		require.NoError(t, repo.Save(context.Background(), active))

		suspended := newStoredPool(t, tenantID)
		require.NoError(t, suspended.Suspend("maintenance"))
		require.NoError(t, repo.Save(context.Background(), suspended))

		page, err := repo.FindByStatus(context.Background(), tenantID, treasury.PoolStatusActive, shared.DefaultFilter())
		require.NoError(t, err)
		assert.EqualValues(t, 1, page.Total)
		require.Len(t, page.Items, 1)
		assert.Equal(t, active.ID, page.Items[0].ID)
	})

	t.Run("should list all pools for a tenant only", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewGormCashPoolRepository(db)
		tenantID := uuid.New()

		require.NoError(t, repo.Save(context.Background(), newStoredPool(t, tenantID)))
		require.NoError(t, repo.Save(context.Background(), newStoredPool(t, tenantID)))
		require.NoError(t, repo.Save(context.Background(), newStoredPool(t, uuid.New())))

		page, err := repo.FindAll(context.Background(), tenantID, shared.Filter{Page: 1, PageSize: 1})
		require.NoError(t, err)
		assert.EqualValues(t, 2, page.Total)
		assert.Len(t, page.Items, 1)
		assert.Equal(t, 2, page.TotalPages)
	})
}
