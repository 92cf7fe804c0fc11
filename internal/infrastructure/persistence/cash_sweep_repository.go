package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/treasury/backend/internal/domain/shared"
	"github.com/treasury/backend/internal/domain/treasury"
	"gorm.io/gorm"
)

// settledStatuses are the sweep outcomes that consumed daily limit:
// fully executed sweeps plus partially posted ones, whose posted leg
// already moved funds.
var settledStatuses = []treasury.SweepStatus{
	treasury.SweepStatusExecuted,
	treasury.SweepStatusNeedsReconciliation,
}

// GormCashSweepRepository implements CashSweepRepository using GORM
type GormCashSweepRepository struct {
	db *gorm.DB
}

// NewGormCashSweepRepository creates a new GormCashSweepRepository
func NewGormCashSweepRepository(db *gorm.DB) *GormCashSweepRepository {
	return &GormCashSweepRepository{db: db}
}

// Save creates or updates a sweep together with its ledger legs
func (r *GormCashSweepRepository) Save(ctx context.Context, sweep *treasury.CashSweep) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Legs").Save(sweep).Error; err != nil {
			return err
		}
		return r.saveLegs(tx, sweep)
	})
}

// SaveWithLock records a sweep outcome only when the stored version
// still matches expectedVersion
func (r *GormCashSweepRepository) SaveWithLock(ctx context.Context, sweep *treasury.CashSweep, expectedVersion int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&treasury.CashSweep{}).
			Where("id = ? AND tenant_id = ? AND version = ?", sweep.ID, sweep.TenantID, expectedVersion).
			Updates(map[string]interface{}{
				"status":         sweep.Status,
				"failure_reason": sweep.FailureReason,
				"executed_at":    sweep.ExecutedAt,
				"version":        sweep.Version,
				"updated_at":     sweep.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return treasury.ErrVersionConflict("CashSweep", expectedVersion)
		}
		return r.saveLegs(tx, sweep)
	})
}

// saveLegs upserts the posted ledger legs. Legs are append-only; rows
// are never deleted once posted.
func (r *GormCashSweepRepository) saveLegs(tx *gorm.DB, sweep *treasury.CashSweep) error {
	for i := range sweep.Legs {
		sweep.Legs[i].SweepID = sweep.ID
		if err := tx.Save(&sweep.Legs[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

// FindByID finds a sweep within a tenant, returning nil when absent
func (r *GormCashSweepRepository) FindByID(ctx context.Context, tenantID, sweepID uuid.UUID) (*treasury.CashSweep, error) {
	var sweep treasury.CashSweep
	if err := r.db.WithContext(ctx).
		Preload("Legs").
		Where("tenant_id = ? AND id = ?", tenantID, sweepID).
		First(&sweep).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sweep, nil
}

// FindByIdempotencyKey returns the sweep recorded for the key, or nil
// when the key is unseen
func (r *GormCashSweepRepository) FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*treasury.CashSweep, error) {
	var sweep treasury.CashSweep
	if err := r.db.WithContext(ctx).
		Preload("Legs").
		Where("tenant_id = ? AND idempotency_key = ?", tenantID, key).
		First(&sweep).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sweep, nil
}

// FindByPool lists sweeps for a pool
func (r *GormCashSweepRepository) FindByPool(ctx context.Context, tenantID, poolID uuid.UUID, filter shared.Filter) (*shared.Paginated[*treasury.CashSweep], error) {
	return r.findPaginated(filter,
		r.db.WithContext(ctx).Model(&treasury.CashSweep{}).
			Where("tenant_id = ? AND pool_id = ?", tenantID, poolID))
}

// SumSettledForDate totals the absolute amounts of executed and
// needs-reconciliation sweeps for a pool on a calendar date (UTC)
func (r *GormCashSweepRepository) SumSettledForDate(ctx context.Context, tenantID, poolID uuid.UUID, date time.Time) (decimal.Decimal, error) {
	day := date.UTC()
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	var total decimal.Decimal
	err := r.db.WithContext(ctx).Model(&treasury.CashSweep{}).
		Select("COALESCE(SUM(ABS(amount)), 0)").
		Where("tenant_id = ? AND pool_id = ?", tenantID, poolID).
		Where("status IN ?", settledStatuses).
		Where("execution_date >= ? AND execution_date < ?", start, end).
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// ExistsUnreconciledForPair reports whether an unresolved partial sweep
// blocks the account pair in either direction. A pair stays blocked
// until an executed compensating sweep references the stuck record.
func (r *GormCashSweepRepository) ExistsUnreconciledForPair(ctx context.Context, tenantID uuid.UUID, accountA, accountB string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&treasury.CashSweep{}).
		Where("tenant_id = ? AND status = ?", tenantID, treasury.SweepStatusNeedsReconciliation).
		Where("(from_account_id = ? AND to_account_id = ?) OR (from_account_id = ? AND to_account_id = ?)",
			accountA, accountB, accountB, accountA).
		Where("NOT EXISTS (SELECT 1 FROM cash_sweeps AS comp WHERE comp.compensates_sweep_id = cash_sweeps.id AND comp.status = ?)",
			treasury.SweepStatusExecuted).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CountPendingForPool counts sweeps still awaiting an outcome
func (r *GormCashSweepRepository) CountPendingForPool(ctx context.Context, tenantID, poolID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&treasury.CashSweep{}).
		Where("tenant_id = ? AND pool_id = ? AND status = ?", tenantID, poolID, treasury.SweepStatusPending).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// FindNeedingReconciliation lists unresolved partial sweeps for a tenant
func (r *GormCashSweepRepository) FindNeedingReconciliation(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[*treasury.CashSweep], error) {
	return r.findPaginated(filter,
		r.db.WithContext(ctx).Model(&treasury.CashSweep{}).
			Where("tenant_id = ? AND status = ?", tenantID, treasury.SweepStatusNeedsReconciliation))
}

func (r *GormCashSweepRepository) findPaginated(filter shared.Filter, query *gorm.DB) (*shared.Paginated[*treasury.CashSweep], error) {
	filter = normalizeFilter(filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var sweeps []*treasury.CashSweep
	if err := applyFilter(query.Preload("Legs"), filter).Find(&sweeps).Error; err != nil {
		return nil, err
	}

	page := shared.NewPaginated(sweeps, total, filter.Page, filter.PageSize)
	return &page, nil
}

// Ensure GormCashSweepRepository implements CashSweepRepository
var _ treasury.CashSweepRepository = (*GormCashSweepRepository)(nil)
