package treasury

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/treasury/backend/internal/domain/shared"
	"github.com/treasury/backend/internal/domain/shared/valueobject"
	"github.com/treasury/backend/internal/domain/treasury"
	"github.com/treasury/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// InterestService closes interest periods: it computes pool-level
// interest from daily balances, allocates it pro-rata across entities
// and posts one interest entry per entity ledger.
type InterestService struct {
	txScope    TransactionScope
	gate       *AuthorizationGate
	calculator *treasury.InterestCalculator
	balances   treasury.BalanceSource
	rates      treasury.InterestRateSource
	ledger     treasury.LedgerPoster
	calendar   treasury.FiscalCalendar
	audit      treasury.AuditSink
	publisher  shared.EventPublisher
	locks      *poolLocks
	logger     *zap.Logger
}

// NewInterestService creates a new InterestService
func NewInterestService(
	txScope TransactionScope,
	gate *AuthorizationGate,
	dayCountBasis int,
	balances treasury.BalanceSource,
	rates treasury.InterestRateSource,
	ledger treasury.LedgerPoster,
	calendar treasury.FiscalCalendar,
	audit treasury.AuditSink,
	publisher shared.EventPublisher,
	logger *zap.Logger,
) *InterestService {
	return &InterestService{
		txScope:    txScope,
		gate:       gate,
		calculator: treasury.NewInterestCalculator(dayCountBasis),
		balances:   balances,
		rates:      rates,
		ledger:     ledger,
		calendar:   calendar,
		audit:      audit,
		publisher:  publisher,
		locks:      newPoolLocks(),
		logger:     logger,
	}
}

// AllocateInterest closes the period for a pool: at most one allocation
// per (pool, period) ever exists.
func (s *InterestService) AllocateInterest(ctx context.Context, cmd AllocateInterestCommand) (*AllocationResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "interest", "allocate")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, cmd.TenantID.String(),
		telemetry.SpanAttrPoolID, cmd.PoolID.String(),
	)

	if err := validateCommand(cmd); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !cmd.PeriodEnd.After(cmd.PeriodStart) {
		err := treasury.ErrInterestCalculationFailed("period end must be after period start")
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.locks.Lock(cmd.PoolID)
	defer s.locks.Unlock(cmd.PoolID)

	alloc, err := s.allocate(ctx, cmd)
	if err != nil {
		telemetry.RecordError(span, err)
		s.auditAllocation(ctx, cmd, nil, treasury.AuditResultFail, err.Error())
		return nil, err
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrAllocationID, alloc.ID.String(),
		telemetry.SpanAttrAmount, alloc.TotalInterest.String(),
	)
	return newAllocationResult(alloc), nil
}

func (s *InterestService) allocate(ctx context.Context, cmd AllocateInterestCommand) (*treasury.InterestAllocation, error) {
	var pool *treasury.CashPool
	var existing *treasury.InterestAllocation
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		loaded, err := repos.PoolRepo().FindByID(ctx, cmd.TenantID, cmd.PoolID)
		if err != nil {
			return fmt.Errorf("failed to load pool: %w", err)
		}
		if loaded == nil {
			return treasury.ErrPoolNotFound(cmd.PoolID)
		}
		pool = loaded

		if pool.IsSuspended() {
			return treasury.ErrPoolSuspended()
		}
		if !pool.IsActive() {
			return treasury.ErrPoolNotActive(pool.Status)
		}
		if err := s.gate.Authorize(ctx, cmd.Actor, treasury.ActionAllocateInterest, pool); err != nil {
			return err
		}

		existing, err = repos.AllocationRepo().FindByPeriod(ctx, cmd.TenantID, cmd.PoolID, cmd.PeriodStart, cmd.PeriodEnd)
		if err != nil {
			return fmt.Errorf("allocation lookup failed: %w", err)
		}
		if existing != nil {
			if existing.FullyPosted() {
				return treasury.ErrInterestAlreadyAllocated(cmd.PoolID, cmd.PeriodStart, cmd.PeriodEnd)
			}
			// A partially posted allocation from an earlier attempt is
			// resumed, never recomputed: its ID keeps the ledger
			// references stable.
			return nil
		}

		open, err := s.calendar.IsPeriodOpen(ctx, cmd.TenantID, cmd.PeriodEnd)
		if err != nil {
			return fmt.Errorf("fiscal calendar check failed: %w", err)
		}
		if !open {
			return treasury.ErrPeriodClosed(cmd.PeriodEnd)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	alloc := existing
	if alloc == nil {
		alloc, err = s.buildAllocation(ctx, pool, cmd)
		if err != nil {
			return nil, err
		}
		// Persist before posting so a retry finds this allocation and
		// reuses its per-entity posting references.
		err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			return repos.AllocationRepo().Save(ctx, alloc)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to save allocation: %w", err)
		}
	}

	if err := s.postLines(ctx, alloc); err != nil {
		return nil, err
	}

	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		return repos.AllocationRepo().Save(ctx, alloc)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save allocation: %w", err)
	}

	s.publishEvents(ctx, alloc)
	s.auditAllocation(ctx, cmd, alloc, treasury.AuditResultOK, "")
	s.logger.Info("interest allocated",
		zap.String("pool_id", cmd.PoolID.String()),
		zap.String("total", alloc.TotalInterest.String()),
		zap.Int("lines", len(alloc.Lines)),
	)

	return alloc, nil
}

// buildAllocation computes the pool interest and its pro-rata split for
// a fresh period
func (s *InterestService) buildAllocation(ctx context.Context, pool *treasury.CashPool, cmd AllocateInterestCommand) (*treasury.InterestAllocation, error) {
	rate, err := s.rates.BenchmarkRate(ctx, pool.RateBenchmark, cmd.PeriodStart, cmd.PeriodEnd)
	if err != nil {
		if errors.Is(err, treasury.ErrNoBenchmarkRate) {
			return nil, treasury.ErrInterestRateNotBenchmarked(pool.RateBenchmark)
		}
		return nil, fmt.Errorf("benchmark rate lookup failed: %w", err)
	}

	contributions, err := s.gatherContributions(ctx, pool, cmd)
	if err != nil {
		return nil, err
	}

	total, err := s.calculator.ComputeTotalInterest(contributions, rate, pool.Currency)
	if err != nil {
		return nil, err
	}
	lines, err := s.calculator.Allocate(total, contributions)
	if err != nil {
		return nil, err
	}

	return treasury.NewInterestAllocation(
		cmd.TenantID, cmd.PoolID,
		cmd.PeriodStart, cmd.PeriodEnd,
		rate, s.calculator.DayCountBasis(),
		total, lines,
	)
}

// postLines posts one interest entry per entity ledger, skipping lines
// an earlier attempt already posted. The reference keys idempotent
// posting at the ledger and is stable across retries.
func (s *InterestService) postLines(ctx context.Context, alloc *treasury.InterestAllocation) error {
	memo := fmt.Sprintf("pool interest %s to %s",
		alloc.PeriodStart.Format("2006-01-02"), alloc.PeriodEnd.Format("2006-01-02"))
	for _, line := range alloc.Lines {
		if line.PostingRef != "" {
			continue
		}
		amount, err := valueobject.NewMoney(line.Share, alloc.Currency)
		if err != nil {
			return err
		}
		reference := fmt.Sprintf("%s:%s", alloc.ID, line.EntityID)
		postingRef, err := s.ledger.Post(ctx, line.EntityID, reference, []treasury.LedgerLine{{
			Direction: treasury.LegDirectionCredit,
			Amount:    amount,
			Memo:      memo,
		}})
		if err != nil {
			s.savePartial(ctx, alloc)
			return fmt.Errorf("interest posting failed for entity %s: %w", line.EntityID, err)
		}
		alloc.SetLinePostingRef(line.EntityID, postingRef)
	}
	return nil
}

// savePartial persists posting references acquired before a failure so
// a retry does not post them again
func (s *InterestService) savePartial(ctx context.Context, alloc *treasury.InterestAllocation) {
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		return repos.AllocationRepo().Save(ctx, alloc)
	})
	if err != nil {
		s.logger.Error("failed to save partially posted allocation",
			zap.String("allocation_id", alloc.ID.String()), zap.Error(err))
	}
}

// gatherContributions folds each member account's daily balances into
// per-entity time-weighted contributions
func (s *InterestService) gatherContributions(ctx context.Context, pool *treasury.CashPool, cmd AllocateInterestCommand) ([]treasury.EntityContribution, error) {
	var dated []treasury.DatedEntityBalance
	for _, member := range pool.Members {
		if !member.Active {
			continue
		}
		daily, err := s.balances.GetDailyBalances(ctx, member.AccountID, cmd.PeriodStart, cmd.PeriodEnd)
		if err != nil {
			return nil, fmt.Errorf("daily balance read failed for %s: %w", member.AccountID, err)
		}
		for _, day := range daily {
			dated = append(dated, treasury.DatedEntityBalance{
				EntityID: member.EntityID,
				Date:     day.Date,
				Balance:  day.Balance,
			})
		}
	}
	return treasury.ContributionsFromDailyBalances(dated), nil
}

// GetAllocation returns an allocation by ID
func (s *InterestService) GetAllocation(ctx context.Context, tenantID, allocationID uuid.UUID) (*AllocationResult, error) {
	var alloc *treasury.InterestAllocation
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		alloc, err = repos.AllocationRepo().FindByID(ctx, tenantID, allocationID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load allocation: %w", err)
	}
	if alloc == nil {
		return nil, shared.NewDomainError("ALLOCATION_NOT_FOUND", "Interest allocation not found")
	}
	return newAllocationResult(alloc), nil
}

func (s *InterestService) publishEvents(ctx context.Context, alloc *treasury.InterestAllocation) {
	events := alloc.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.logger.Error("event publish failed", zap.Error(err))
	}
	alloc.ClearDomainEvents()
}

// auditAllocation appends the single audit event for an allocation
// attempt. A nil allocation means the attempt failed before an
// aggregate existed.
func (s *InterestService) auditAllocation(ctx context.Context, cmd AllocateInterestCommand, alloc *treasury.InterestAllocation, result treasury.AuditResult, detail string) {
	var event treasury.AuditEvent
	if alloc != nil {
		event = treasury.NewAuditEvent(cmd.TenantID, cmd.Actor.UserID, "interest.allocate", result, "InterestAllocation", alloc.ID, alloc.CorrelationID)
		if alloc.Version > 1 {
			event.BeforeRef = treasury.SnapshotRef("InterestAllocation", alloc.ID, alloc.Version-1)
		}
		event.AfterRef = treasury.SnapshotRef("InterestAllocation", alloc.ID, alloc.Version)
	} else {
		event = treasury.NewAuditEvent(cmd.TenantID, cmd.Actor.UserID, "interest.allocate", result, "InterestAllocation", uuid.Nil, uuid.New())
	}
	event.Detail = detail
	if err := s.audit.Append(ctx, event); err != nil {
		s.logger.Error("audit append failed", zap.Error(err))
	}
}
