package persistence

import (
	"context"

	apptreasury "github.com/treasury/backend/internal/application/treasury"
	"github.com/treasury/backend/internal/domain/treasury"
	"gorm.io/gorm"
)

// GormTransactionScope implements the application TransactionScope over
// a GORM transaction. Repository calls made inside Execute share one
// database transaction and commit or roll back together.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs fn inside one database transaction
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos apptreasury.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// gormTransactionalRepositories exposes the treasury repositories bound
// to the in-flight transaction
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

func (r *gormTransactionalRepositories) PoolRepo() treasury.CashPoolRepository {
	return NewGormCashPoolRepository(r.tx)
}

func (r *gormTransactionalRepositories) SweepRepo() treasury.CashSweepRepository {
	return NewGormCashSweepRepository(r.tx)
}

func (r *gormTransactionalRepositories) AllocationRepo() treasury.InterestAllocationRepository {
	return NewGormInterestAllocationRepository(r.tx)
}

func (r *gormTransactionalRepositories) ConfigChangeRepo() treasury.PoolConfigChangeRepository {
	return NewGormPoolConfigChangeRepository(r.tx)
}

func (r *gormTransactionalRepositories) ConfigHistoryRepo() treasury.PoolConfigHistoryRepository {
	return NewGormPoolConfigHistoryRepository(r.tx)
}

var _ apptreasury.TransactionScope = (*GormTransactionScope)(nil)
var _ apptreasury.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
