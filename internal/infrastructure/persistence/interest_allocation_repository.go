package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/treasury/backend/internal/domain/shared"
	"github.com/treasury/backend/internal/domain/treasury"
	"gorm.io/gorm"
)

// GormInterestAllocationRepository implements InterestAllocationRepository using GORM
type GormInterestAllocationRepository struct {
	db *gorm.DB
}

// NewGormInterestAllocationRepository creates a new GormInterestAllocationRepository
func NewGormInterestAllocationRepository(db *gorm.DB) *GormInterestAllocationRepository {
	return &GormInterestAllocationRepository{db: db}
}

// Save writes an allocation together with its per-entity lines. The
// unique index on (pool, period) backs the one-per-period invariant
// under concurrency; lines are re-saved as posting references land.
func (r *GormInterestAllocationRepository) Save(ctx context.Context, allocation *treasury.InterestAllocation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Lines").Save(allocation).Error; err != nil {
			return err
		}
		for i := range allocation.Lines {
			allocation.Lines[i].AllocationID = allocation.ID
			if err := tx.Save(&allocation.Lines[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// FindByID finds an allocation within a tenant, returning nil when absent
func (r *GormInterestAllocationRepository) FindByID(ctx context.Context, tenantID, allocationID uuid.UUID) (*treasury.InterestAllocation, error) {
	var allocation treasury.InterestAllocation
	if err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("tenant_id = ? AND id = ?", tenantID, allocationID).
		First(&allocation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &allocation, nil
}

// FindByPeriod returns the pool's allocation for the exact period,
// returning nil when absent
func (r *GormInterestAllocationRepository) FindByPeriod(ctx context.Context, tenantID, poolID uuid.UUID, periodStart, periodEnd time.Time) (*treasury.InterestAllocation, error) {
	var allocation treasury.InterestAllocation
	if err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("tenant_id = ? AND pool_id = ? AND period_start = ? AND period_end = ?",
			tenantID, poolID, periodStart, periodEnd).
		First(&allocation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &allocation, nil
}

// FindByPool lists allocations for a pool
func (r *GormInterestAllocationRepository) FindByPool(ctx context.Context, tenantID, poolID uuid.UUID, filter shared.Filter) (*shared.Paginated[*treasury.InterestAllocation], error) {
	filter = normalizeFilter(filter)

	query := r.db.WithContext(ctx).Model(&treasury.InterestAllocation{}).
		Where("tenant_id = ? AND pool_id = ?", tenantID, poolID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var allocations []*treasury.InterestAllocation
	if err := applyFilter(query.Preload("Lines"), filter).Find(&allocations).Error; err != nil {
		return nil, err
	}

	page := shared.NewPaginated(allocations, total, filter.Page, filter.PageSize)
	return &page, nil
}

// Ensure GormInterestAllocationRepository implements InterestAllocationRepository
var _ treasury.InterestAllocationRepository = (*GormInterestAllocationRepository)(nil)
