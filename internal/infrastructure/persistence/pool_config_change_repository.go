package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/treasury/backend/internal/domain/treasury"
	"gorm.io/gorm"
)

// GormPoolConfigChangeRepository implements PoolConfigChangeRepository using GORM
type GormPoolConfigChangeRepository struct {
	db *gorm.DB
}

// NewGormPoolConfigChangeRepository creates a new GormPoolConfigChangeRepository
func NewGormPoolConfigChangeRepository(db *gorm.DB) *GormPoolConfigChangeRepository {
	return &GormPoolConfigChangeRepository{db: db}
}

// Save creates or updates a config change request
func (r *GormPoolConfigChangeRepository) Save(ctx context.Context, change *treasury.PoolConfigChange) error {
	return r.db.WithContext(ctx).Save(change).Error
}

// SaveWithLock records a change decision only when the stored version
// still matches expectedVersion. Two approvers racing on the same
// pending change leaves exactly one decision.
func (r *GormPoolConfigChangeRepository) SaveWithLock(ctx context.Context, change *treasury.PoolConfigChange, expectedVersion int) error {
	result := r.db.WithContext(ctx).Model(&treasury.PoolConfigChange{}).
		Where("id = ? AND tenant_id = ? AND version = ?", change.ID, change.TenantID, expectedVersion).
		Updates(map[string]interface{}{
			"status":      change.Status,
			"reason":      change.Reason,
			"approved_by": change.ApprovedBy,
			"rejected_by": change.RejectedBy,
			"decided_at":  change.DecidedAt,
			"version":     change.Version,
			"updated_at":  change.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return treasury.ErrVersionConflict("PoolConfigChange", expectedVersion)
	}
	return nil
}

// FindByID finds a change within a tenant, returning nil when absent
func (r *GormPoolConfigChangeRepository) FindByID(ctx context.Context, tenantID, changeID uuid.UUID) (*treasury.PoolConfigChange, error) {
	var change treasury.PoolConfigChange
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, changeID).
		First(&change).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &change, nil
}

// FindPendingByPool lists the undecided changes for a pool
func (r *GormPoolConfigChangeRepository) FindPendingByPool(ctx context.Context, tenantID, poolID uuid.UUID) ([]*treasury.PoolConfigChange, error) {
	var changes []*treasury.PoolConfigChange
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND pool_id = ? AND status = ?", tenantID, poolID, treasury.ConfigChangeStatusPending).
		Order("created_at ASC").
		Find(&changes).Error
	if err != nil {
		return nil, err
	}
	return changes, nil
}

// CountPendingForPool counts the undecided changes for a pool
func (r *GormPoolConfigChangeRepository) CountPendingForPool(ctx context.Context, tenantID, poolID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&treasury.PoolConfigChange{}).
		Where("tenant_id = ? AND pool_id = ? AND status = ?", tenantID, poolID, treasury.ConfigChangeStatusPending).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Ensure GormPoolConfigChangeRepository implements PoolConfigChangeRepository
var _ treasury.PoolConfigChangeRepository = (*GormPoolConfigChangeRepository)(nil)
