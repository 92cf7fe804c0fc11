package treasury

import (
	"context"

	"github.com/treasury/backend/internal/domain/treasury"
)

// TransactionScope provides transactional access to treasury
// repositories. All repository operations performed inside Execute are
// committed or rolled back atomically.
//
// The scope covers the engine's own records only. Ledger postings go
// through the LedgerPoster collaborator and are NOT part of this
// transaction; a sweep whose postings partially succeed is recorded as
// NEEDS_RECONCILIATION rather than rolled back.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the treasury
// repositories within one transaction
type TransactionalRepositories interface {
	// PoolRepo returns the cash pool repository scoped to the current transaction
	PoolRepo() treasury.CashPoolRepository
	// SweepRepo returns the cash sweep repository scoped to the current transaction
	SweepRepo() treasury.CashSweepRepository
	// AllocationRepo returns the interest allocation repository scoped to the current transaction
	AllocationRepo() treasury.InterestAllocationRepository
	// ConfigChangeRepo returns the config change repository scoped to the current transaction
	ConfigChangeRepo() treasury.PoolConfigChangeRepository
	// ConfigHistoryRepo returns the config history repository scoped to the current transaction
	ConfigHistoryRepo() treasury.PoolConfigHistoryRepository
}

// NoOpTransactionScope runs the function against plain repositories
// without a real transaction. For tests.
type NoOpTransactionScope struct {
	poolRepo          treasury.CashPoolRepository
	sweepRepo         treasury.CashSweepRepository
	allocationRepo    treasury.InterestAllocationRepository
	configChangeRepo  treasury.PoolConfigChangeRepository
	configHistoryRepo treasury.PoolConfigHistoryRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope over the given
// repositories
func NewNoOpTransactionScope(
	poolRepo treasury.CashPoolRepository,
	sweepRepo treasury.CashSweepRepository,
	allocationRepo treasury.InterestAllocationRepository,
	configChangeRepo treasury.PoolConfigChangeRepository,
	configHistoryRepo treasury.PoolConfigHistoryRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		poolRepo:          poolRepo,
		sweepRepo:         sweepRepo,
		allocationRepo:    allocationRepo,
		configChangeRepo:  configChangeRepo,
		configHistoryRepo: configHistoryRepo,
	}
}

// Execute runs the function without a real transaction
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// PoolRepo returns the cash pool repository
func (s *NoOpTransactionScope) PoolRepo() treasury.CashPoolRepository {
	return s.poolRepo
}

// SweepRepo returns the cash sweep repository
func (s *NoOpTransactionScope) SweepRepo() treasury.CashSweepRepository {
	return s.sweepRepo
}

// AllocationRepo returns the interest allocation repository
func (s *NoOpTransactionScope) AllocationRepo() treasury.InterestAllocationRepository {
	return s.allocationRepo
}

// ConfigChangeRepo returns the config change repository
func (s *NoOpTransactionScope) ConfigChangeRepo() treasury.PoolConfigChangeRepository {
	return s.configChangeRepo
}

// ConfigHistoryRepo returns the config history repository
func (s *NoOpTransactionScope) ConfigHistoryRepo() treasury.PoolConfigHistoryRepository {
	return s.configHistoryRepo
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
