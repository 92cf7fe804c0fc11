package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/treasury/backend/internal/domain/shared"
	"github.com/treasury/backend/internal/domain/treasury"
	"gorm.io/gorm"
)

// GormPoolConfigHistoryRepository implements PoolConfigHistoryRepository
// using GORM. The table is append-only; there is no update or delete.
type GormPoolConfigHistoryRepository struct {
	db *gorm.DB
}

// NewGormPoolConfigHistoryRepository creates a new GormPoolConfigHistoryRepository
func NewGormPoolConfigHistoryRepository(db *gorm.DB) *GormPoolConfigHistoryRepository {
	return &GormPoolConfigHistoryRepository{db: db}
}

// Append writes a configuration snapshot
func (r *GormPoolConfigHistoryRepository) Append(ctx context.Context, history *treasury.PoolConfigHistory) error {
	return r.db.WithContext(ctx).Create(history).Error
}

// FindByPool lists snapshots for a pool, newest first by default
func (r *GormPoolConfigHistoryRepository) FindByPool(ctx context.Context, tenantID, poolID uuid.UUID, filter shared.Filter) (*shared.Paginated[*treasury.PoolConfigHistory], error) {
	filter = normalizeFilter(filter)

	query := r.db.WithContext(ctx).Model(&treasury.PoolConfigHistory{}).
		Where("tenant_id = ? AND pool_id = ?", tenantID, poolID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var snapshots []*treasury.PoolConfigHistory
	if err := applyFilter(query, filter).Find(&snapshots).Error; err != nil {
		return nil, err
	}

	page := shared.NewPaginated(snapshots, total, filter.Page, filter.PageSize)
	return &page, nil
}

// Ensure GormPoolConfigHistoryRepository implements PoolConfigHistoryRepository
var _ treasury.PoolConfigHistoryRepository = (*GormPoolConfigHistoryRepository)(nil)
