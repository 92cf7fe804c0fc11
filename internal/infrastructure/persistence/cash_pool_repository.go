package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/treasury/backend/internal/domain/shared"
	"github.com/treasury/backend/internal/domain/treasury"
	"gorm.io/gorm"
)

// GormCashPoolRepository implements CashPoolRepository using GORM
type GormCashPoolRepository struct {
	db *gorm.DB
}

// NewGormCashPoolRepository creates a new GormCashPoolRepository
func NewGormCashPoolRepository(db *gorm.DB) *GormCashPoolRepository {
	return &GormCashPoolRepository{db: db}
}

// Save creates or updates a cash pool together with its member accounts
func (r *GormCashPoolRepository) Save(ctx context.Context, pool *treasury.CashPool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Members").Save(pool).Error; err != nil {
			return err
		}
		return r.saveMembers(tx, pool)
	})
}

// SaveWithLock persists the pool only when the stored version still
// matches expectedVersion. The aggregate has already incremented its own
// version; the update is a compare-and-swap against the previous value.
func (r *GormCashPoolRepository) SaveWithLock(ctx context.Context, pool *treasury.CashPool, expectedVersion int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&treasury.CashPool{}).
			Where("id = ? AND tenant_id = ? AND version = ?", pool.ID, pool.TenantID, expectedVersion).
			Updates(map[string]interface{}{
				"name":                     pool.Name,
				"status":                   pool.Status,
				"target_balance":           pool.TargetBalance,
				"sweep_threshold":          pool.SweepThreshold,
				"daily_limit":              pool.DailyLimit,
				"single_transaction_limit": pool.SingleTransactionLimit,
				"agreement_reference":      pool.AgreementReference,
				"rate_benchmark":           pool.RateBenchmark,
				"activated_at":             pool.ActivatedAt,
				"closed_at":                pool.ClosedAt,
				"version":                  pool.Version,
				"updated_at":               pool.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return treasury.ErrVersionConflict("CashPool", expectedVersion)
		}
		return r.saveMembers(tx, pool)
	})
}

// saveMembers replaces the stored member set with the aggregate's
func (r *GormCashPoolRepository) saveMembers(tx *gorm.DB, pool *treasury.CashPool) error {
	currentIDs := make([]uuid.UUID, len(pool.Members))
	for i, m := range pool.Members {
		currentIDs[i] = m.ID
	}

	if len(currentIDs) > 0 {
		if err := tx.Where("pool_id = ? AND id NOT IN ?", pool.ID, currentIDs).
			Delete(&treasury.PoolMemberAccount{}).Error; err != nil {
			return err
		}
	} else {
		if err := tx.Where("pool_id = ?", pool.ID).
			Delete(&treasury.PoolMemberAccount{}).Error; err != nil {
			return err
		}
	}

	for i := range pool.Members {
		pool.Members[i].PoolID = pool.ID
		if err := tx.Save(&pool.Members[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

// FindByID finds a pool within a tenant, returning nil when absent
func (r *GormCashPoolRepository) FindByID(ctx context.Context, tenantID, poolID uuid.UUID) (*treasury.CashPool, error) {
	var pool treasury.CashPool
	if err := r.db.WithContext(ctx).
		Preload("Members").
		Where("tenant_id = ? AND id = ?", tenantID, poolID).
		First(&pool).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pool, nil
}

// FindByStatus lists pools in a lifecycle state for a tenant
func (r *GormCashPoolRepository) FindByStatus(ctx context.Context, tenantID uuid.UUID, status treasury.PoolStatus, filter shared.Filter) (*shared.Paginated[*treasury.CashPool], error) {
	return r.findPaginated(ctx, filter,
		r.db.WithContext(ctx).Model(&treasury.CashPool{}).
			Where("tenant_id = ? AND status = ?", tenantID, status))
}

// FindAll lists all pools for a tenant
func (r *GormCashPoolRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[*treasury.CashPool], error) {
	return r.findPaginated(ctx, filter,
		r.db.WithContext(ctx).Model(&treasury.CashPool{}).
			Where("tenant_id = ?", tenantID))
}

func (r *GormCashPoolRepository) findPaginated(_ context.Context, filter shared.Filter, query *gorm.DB) (*shared.Paginated[*treasury.CashPool], error) {
	filter = normalizeFilter(filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var pools []*treasury.CashPool
	if err := applyFilter(query.Preload("Members"), filter).Find(&pools).Error; err != nil {
		return nil, err
	}

	page := shared.NewPaginated(pools, total, filter.Page, filter.PageSize)
	return &page, nil
}

// Ensure GormCashPoolRepository implements CashPoolRepository
var _ treasury.CashPoolRepository = (*GormCashPoolRepository)(nil)
