package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/treasury/backend/internal/domain/shared"
	"github.com/treasury/backend/internal/domain/shared/valueobject"
	"github.com/treasury/backend/internal/domain/treasury"
)

var (
	periodStart = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	periodEnd   = time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
)

func newStoredAllocation(t *testing.T, pool *treasury.CashPool, start, end time.Time) *treasury.InterestAllocation {
	t.Helper()

	total, err := valueobject.NewMoney(decimal.RequireFromString("450.00"), pool.Currency)
	require.NoError(t, err)

	lines := []treasury.ComputedAllocationLine{
		{
			EntityID:            pool.Members[0].EntityID,
			TimeWeightedBalance: decimal.NewFromInt(3000000),
			Share:               decimal.RequireFromString("300.00"),
		},
		{
			EntityID:            pool.Members[1].EntityID,
			TimeWeightedBalance: decimal.NewFromInt(1500000),
			Share:               decimal.RequireFromString("150.00"),
		},
	}

	alloc, err := treasury.NewInterestAllocation(
		pool.TenantID, pool.ID,
		start, end,
		decimal.RequireFromString("0.036"), 360,
		total, lines,
	)
	require.NoError(t, err)
	alloc.ClearDomainEvents()
	return alloc
}

func TestGormInterestAllocationRepository_Save(t *testing.T) {
	t.Run("should round-trip an allocation with its lines", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewGormInterestAllocationRepository(db)
		pool := newStoredPool(t, uuid.New())
		alloc := newStoredAllocation(t, pool, periodStart, periodEnd)

		require.NoError(t, repo.Save(context.Background(), alloc))

		found, err := repo.FindByID(context.Background(), pool.TenantID, alloc.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.True(t, found.TotalInterest.Equal(decimal.RequireFromString("450.00")))
		assert.Equal(t, 360, found.DayCountBasis)
		require.Len(t, found.Lines, 2)

		sum := decimal.Zero
		for _, line := range found.Lines {
			sum = sum.Add(line.Share)
		}
		assert.True(t, sum.Equal(found.TotalInterest))
	})

	t.Run("should return nil for an unknown allocation", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewGormInterestAllocationRepository(db)

		found, err := repo.FindByID(context.Background(), uuid.New(), uuid.New())
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}

func TestGormInterestAllocationRepository_FindByPeriod(t *testing.T) {
	t.Run("should load an existing period allocation with its lines", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewGormInterestAllocationRepository(db)
		pool := newStoredPool(t, uuid.New())
		stored := newStoredAllocation(t, pool, periodStart, periodEnd)
		stored.SetLinePostingRef(pool.Members[0].EntityID, "GL-INT-001")
		require.NoError(t, repo.Save(context.Background(), stored))

		found, err := repo.FindByPeriod(context.Background(), pool.TenantID, pool.ID, periodStart, periodEnd)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, stored.ID, found.ID)
		require.Len(t, found.Lines, 2)

		line := found.LineForEntity(pool.Members[0].EntityID)
		require.NotNil(t, line)
		assert.Equal(t, "GL-INT-001", line.PostingRef)
		assert.False(t, found.FullyPosted())
	})

	t.Run("should return nil for a different period", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewGormInterestAllocationRepository(db)
		pool := newStoredPool(t, uuid.New())
		require.NoError(t, repo.Save(context.Background(), newStoredAllocation(t, pool, periodStart, periodEnd)))

		found, err := repo.FindByPeriod(context.Background(), pool.TenantID, pool.ID,
			periodEnd, periodEnd.AddDate(0, 1, 0))
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}

func TestGormInterestAllocationRepository_FindByPool(t *testing.T) {
	t.Run("should list allocations for a pool", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewGormInterestAllocationRepository(db)
		pool := newStoredPool(t, uuid.New())

		require.NoError(t, repo.Save(context.Background(), newStoredAllocation(t, pool, periodStart, periodEnd)))
		require.NoError(t, repo.Save(context.Background(),
			newStoredAllocation(t, pool, periodEnd, periodEnd.AddDate(0, 1, 0))))

		page, err := repo.FindByPool(context.Background(), pool.TenantID, pool.ID, shared.DefaultFilter())
		require.NoError(t, err)
		assert.EqualValues(t, 2, page.Total)
		require.Len(t, page.Items, 2)
		require.Len(t, page.Items[0].Lines, 2)
	})
}
