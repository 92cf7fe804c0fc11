package treasury

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/treasury/backend/internal/domain/shared"
	"github.com/treasury/backend/internal/domain/treasury"
	"github.com/treasury/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// SweepServiceConfig carries the tunables for sweep execution
type SweepServiceConfig struct {
	StaleBalanceTolerance time.Duration
	ReconciliationMode    treasury.ReconciliationMode
	Idempotency           shared.IdempotencyConfig
}

// SweepService orchestrates sweep execution: idempotent replay, gate
// checks, sizing, per-entity ledger posting and outcome recording.
//
// The check-then-act sequence for one pool is serialized behind a
// per-pool lock so two concurrent sweeps cannot both read a pre-sweep
// balance and double-spend it. Different pools proceed in parallel.
type SweepService struct {
	txScope    TransactionScope
	gate       *AuthorizationGate
	calculator *treasury.SweepCalculator
	balances   treasury.BalanceSource
	ledger     treasury.LedgerPoster
	calendar   treasury.FiscalCalendar
	audit      treasury.AuditSink
	publisher  shared.EventPublisher
	idemStore  shared.IdempotencyStore
	locks      *poolLocks
	cfg        SweepServiceConfig
	logger     *zap.Logger
}

// NewSweepService creates a new SweepService
func NewSweepService(
	txScope TransactionScope,
	gate *AuthorizationGate,
	balances treasury.BalanceSource,
	ledger treasury.LedgerPoster,
	calendar treasury.FiscalCalendar,
	audit treasury.AuditSink,
	publisher shared.EventPublisher,
	idemStore shared.IdempotencyStore,
	cfg SweepServiceConfig,
	logger *zap.Logger,
) *SweepService {
	return &SweepService{
		txScope:    txScope,
		gate:       gate,
		calculator: treasury.NewSweepCalculator(cfg.StaleBalanceTolerance),
		balances:   balances,
		ledger:     ledger,
		calendar:   calendar,
		audit:      audit,
		publisher:  publisher,
		idemStore:  idemStore,
		locks:      newPoolLocks(),
		cfg:        cfg,
		logger:     logger,
	}
}

// ExecuteSweep runs the full sweep sequence for one member account.
//
// A key that already reached a terminal outcome returns that outcome
// unchanged with Replayed set; a key still being processed fails with
// SWEEP_ALREADY_IN_PROGRESS. Ledger posting is entity by entity and not
// atomic across entities: a partial post records NEEDS_RECONCILIATION
// and keeps the posted legs.
func (s *SweepService) ExecuteSweep(ctx context.Context, cmd ExecuteSweepCommand) (*SweepResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "sweep", "execute")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, cmd.TenantID.String(),
		telemetry.SpanAttrPoolID, cmd.PoolID.String(),
		telemetry.SpanAttrAccountID, cmd.MemberAccountID,
		telemetry.SpanAttrIdempotencyKey, cmd.IdempotencyKey,
	)

	if err := validateCommand(cmd); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	// Segregation of duties: the user initiating a sweep cannot also
	// approve it.
	if cmd.Approver.UserID == cmd.Actor.UserID {
		err := treasury.ErrSodViolation("sweep approver must differ from the initiating user")
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.locks.Lock(cmd.PoolID)
	defer s.locks.Unlock(cmd.PoolID)

	// Replay check before any side effect.
	if replay, err := s.findReplay(ctx, cmd); replay != nil || err != nil {
		if replay != nil {
			telemetry.AddEvent(span, "idempotent_replay", telemetry.SpanAttrSweepID, replay.SweepID.String())
		}
		return replay, err
	}

	// Fast-path duplicate guard in front of the persistent unique index.
	if s.idemStore != nil && s.cfg.Idempotency.Enabled {
		fresh, err := s.idemStore.MarkProcessed(ctx, s.idemKey(cmd), s.cfg.Idempotency.TTL)
		if err != nil {
			s.logger.Warn("idempotency store unavailable, relying on unique index", zap.Error(err))
		} else if !fresh {
			err := treasury.ErrSweepAlreadyInProgress(cmd.IdempotencyKey)
			telemetry.RecordError(span, err)
			return nil, err
		}
	}

	result, err := s.execute(ctx, cmd)
	if err != nil {
		telemetry.RecordError(span, err)
		s.auditSweep(ctx, cmd, nil, treasury.AuditResultFail, err.Error())
		return nil, err
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrSweepID, result.SweepID.String(),
		telemetry.SpanAttrAmount, result.Amount.String(),
		telemetry.SpanAttrCorrelationID, result.CorrelationID.String(),
	)
	return result, nil
}

// execute runs the post-replay portion of the sweep sequence
func (s *SweepService) execute(ctx context.Context, cmd ExecuteSweepCommand) (*SweepResult, error) {
	var pool *treasury.CashPool
	var plan *treasury.SweepPlan

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

		open, err := s.calendar.IsPeriodOpen(ctx, cmd.TenantID, cmd.ExecutionDate)
		if err != nil {
			return fmt.Errorf("fiscal calendar check failed: %w", err)
		}
		if !open {
			return treasury.ErrPeriodClosed(cmd.ExecutionDate)
		}

		if err := s.gate.Authorize(ctx, cmd.Actor, treasury.ActionExecuteSweep, pool); err != nil {
			return err
		}
		if err := s.gate.Authorize(ctx, cmd.Approver, treasury.ActionApproveSweep, pool); err != nil {
			return err
		}

		balance, err := s.balances.GetBalance(ctx, cmd.MemberAccountID)
		if err != nil {
			return fmt.Errorf("balance read failed: %w", err)
		}
		sameDayTotal, err := repos.SweepRepo().SumSettledForDate(ctx, cmd.TenantID, cmd.PoolID, cmd.ExecutionDate)
		if err != nil {
			return fmt.Errorf("failed to sum same-day sweeps: %w", err)
		}

		plan, err = s.calculator.Calculate(pool, cmd.MemberAccountID, balance, time.Now(), sameDayTotal)
		return err
	})
	if err != nil {
		return nil, err
	}

	// Notional pools move no funds; the recorded balance feeds interest
	// netting only.
	if plan.NoTransfer {
		s.auditSweep(ctx, cmd, nil, treasury.AuditResultOK, "notional balance recorded")
		return &SweepResult{
			PoolID:          cmd.PoolID,
			NoTransfer:      true,
			Status:          treasury.SweepStatusExecuted,
			RecordedBalance: plan.RecordedBalance,
		}, nil
	}

	sweep, err := s.createPendingSweep(ctx, cmd, pool, plan)
	if err != nil {
		return nil, err
	}

	result, err := s.postAndSettle(ctx, cmd, sweep, sweep.EntityEntries())
	if err != nil {
		return nil, err
	}
	return result, nil
}

// createPendingSweep records the sweep before posting so a crash
// between posting legs leaves an inspectable row. The pair-block check
// happens here, inside the same transaction as the insert.
func (s *SweepService) createPendingSweep(ctx context.Context, cmd ExecuteSweepCommand, pool *treasury.CashPool, plan *treasury.SweepPlan) (*treasury.CashSweep, error) {
	sweep, err := treasury.NewCashSweep(
		cmd.TenantID,
		cmd.PoolID,
		cmd.ExecutionDate,
		plan.FromAccountID,
		plan.ToAccountID,
		plan.FromEntityID,
		plan.ToEntityID,
		plan.Amount,
		cmd.IdempotencyKey,
	)
	if err != nil {
		return nil, err
	}

	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		blocked, err := repos.SweepRepo().ExistsUnreconciledForPair(ctx, cmd.TenantID, plan.FromAccountID, plan.ToAccountID)
		if err != nil {
			return fmt.Errorf("pair block check failed: %w", err)
		}
		if blocked {
			return treasury.ErrAccountPairBlocked(plan.FromAccountID, plan.ToAccountID)
		}
		return repos.SweepRepo().Save(ctx, sweep)
	})
	if err != nil {
		return nil, err
	}
	return sweep, nil
}

// postAndSettle posts one balanced ledger entry per legal entity and
// records the terminal outcome
func (s *SweepService) postAndSettle(ctx context.Context, cmd ExecuteSweepCommand, sweep *treasury.CashSweep, entries []treasury.EntityEntry) (*SweepResult, error) {
	legs, postErr := s.postEntries(ctx, sweep, entries)

	var outcomeErr error
	switch {
	case postErr == nil:
		outcomeErr = sweep.MarkExecuted(legs)
	case len(legs) == 0:
		outcomeErr = sweep.MarkFailed(postErr.Error())
	default:
		outcomeErr = sweep.MarkNeedsReconciliation(legs, postErr.Error())
	}
	if outcomeErr != nil {
		return nil, outcomeErr
	}

	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		// The aggregate already incremented; CAS against the stored row.
		return repos.SweepRepo().SaveWithLock(ctx, sweep, sweep.Version-1)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record sweep outcome: %w", err)
	}

	s.publishEvents(ctx, sweep)

	switch sweep.Status {
	case treasury.SweepStatusExecuted:
		s.auditSweep(ctx, cmd, sweep, treasury.AuditResultOK, "")
		s.logger.Info("sweep executed",
			zap.String("sweep_id", sweep.ID.String()),
			zap.String("amount", sweep.Amount.String()),
			zap.Int("legs", len(sweep.Legs)),
		)
	case treasury.SweepStatusFailed:
		s.auditSweep(ctx, cmd, sweep, treasury.AuditResultFail, sweep.FailureReason)
	case treasury.SweepStatusNeedsReconciliation:
		s.auditSweep(ctx, cmd, sweep, treasury.AuditResultFail, sweep.FailureReason)
		s.logger.Warn("sweep partially posted",
			zap.String("sweep_id", sweep.ID.String()),
			zap.String("reason", sweep.FailureReason),
		)
		if s.cfg.ReconciliationMode == treasury.ReconciliationModeCompensate {
			if err := s.recordCompensation(ctx, sweep); err != nil {
				s.logger.Error("failed to record compensating sweep", zap.Error(err))
			}
		}
	}

	return newSweepResult(sweep, false), nil
}

// postEntries posts the prepared entries in order, source entity first.
// Returns the successfully posted legs and the first error.
func (s *SweepService) postEntries(ctx context.Context, sweep *treasury.CashSweep, entries []treasury.EntityEntry) ([]treasury.LedgerLeg, error) {
	posted := make([]treasury.LedgerLeg, 0, len(entries))
	for _, entry := range entries {
		// The reference keys idempotent posting at the ledger: replaying
		// the same sweep/entity pair must not double-post.
		reference := fmt.Sprintf("%s:%s", sweep.ID, entry.EntityID)
		postingRef, err := s.ledger.Post(ctx, entry.EntityID, reference, entry.Lines)
		if err != nil {
			return posted, err
		}
		posted = append(posted, *treasury.NewLedgerLeg(sweep.ID, entry.EntityID, entry.Direction, sweep.Amount, postingRef))
	}
	return posted, nil
}

// recordCompensation records a new compensating sweep for the posted
// leg of a partially-applied sweep. Posted entries are never edited.
func (s *SweepService) recordCompensation(ctx context.Context, original *treasury.CashSweep) error {
	comp, err := treasury.NewCompensatingSweep(original)
	if err != nil {
		return err
	}
	return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		return repos.SweepRepo().Save(ctx, comp)
	})
}

// ReconcileSweep resolves a NEEDS_RECONCILIATION sweep by recording a
// compensating sweep for its posted leg, lifting the pair block.
func (s *SweepService) ReconcileSweep(ctx context.Context, cmd ReconcileSweepCommand) (*SweepResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "sweep", "reconcile")
	defer span.End()

	if err := validateCommand(cmd); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.locks.Lock(cmd.PoolID)
	defer s.locks.Unlock(cmd.PoolID)

	var comp, original *treasury.CashSweep
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		pool, err := repos.PoolRepo().FindByID(ctx, cmd.TenantID, cmd.PoolID)
		if err != nil {
			return fmt.Errorf("failed to load pool: %w", err)
		}
		if pool == nil {
			return treasury.ErrPoolNotFound(cmd.PoolID)
		}
		if err := s.gate.Authorize(ctx, cmd.Actor, treasury.ActionReconcileSweep, pool); err != nil {
			return err
		}

		original, err = repos.SweepRepo().FindByID(ctx, cmd.TenantID, cmd.SweepID)
		if err != nil {
			return fmt.Errorf("failed to load sweep: %w", err)
		}
		if original == nil {
			return treasury.ErrSweepNotFound(cmd.SweepID)
		}
		if original.Status != treasury.SweepStatusNeedsReconciliation {
			return shared.NewDomainError("INVALID_STATE", "Only sweeps needing reconciliation can be reconciled")
		}

		// Idempotent: an existing compensating record means a previous
		// reconcile already succeeded.
		existing, err := repos.SweepRepo().FindByIdempotencyKey(ctx, cmd.TenantID, original.IdempotencyKey+":comp")
		if err != nil {
			return fmt.Errorf("compensation lookup failed: %w", err)
		}
		if existing != nil {
			comp = existing
			return nil
		}

		comp, err = treasury.NewCompensatingSweep(original)
		if err != nil {
			return err
		}
		return repos.SweepRepo().Save(ctx, comp)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	// Reverse only the legs of the original that actually posted; the
	// entity whose leg failed has nothing to compensate.
	if comp.Status == treasury.SweepStatusPending {
		result, err := s.postAndSettle(ctx, ExecuteSweepCommand{
			TenantID:       cmd.TenantID,
			Actor:          cmd.Actor,
			PoolID:         cmd.PoolID,
			IdempotencyKey: comp.IdempotencyKey,
		}, comp, comp.CompensationEntries(original))
		if err != nil {
			return nil, err
		}
		if result.Status == treasury.SweepStatusFailed {
			return nil, treasury.ErrSweepExecutionFailed(result.FailureReason)
		}
		return result, nil
	}
	return newSweepResult(comp, true), nil
}

// GetSweep returns a sweep by ID
func (s *SweepService) GetSweep(ctx context.Context, tenantID, sweepID uuid.UUID) (*SweepResult, error) {
	var sweep *treasury.CashSweep
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		sweep, err = repos.SweepRepo().FindByID(ctx, tenantID, sweepID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load sweep: %w", err)
	}
	if sweep == nil {
		return nil, treasury.ErrSweepNotFound(sweepID)
	}
	return newSweepResult(sweep, false), nil
}

// ListSweepsNeedingReconciliation returns unresolved partial sweeps
func (s *SweepService) ListSweepsNeedingReconciliation(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[*SweepResult], error) {
	var page *shared.Paginated[*treasury.CashSweep]
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		page, err = repos.SweepRepo().FindNeedingReconciliation(ctx, tenantID, filter)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sweeps: %w", err)
	}

	results := make([]*SweepResult, 0, len(page.Items))
	for _, sweep := range page.Items {
		results = append(results, newSweepResult(sweep, false))
	}
	result := shared.NewPaginated(results, page.Total, page.Page, page.PageSize)
	return &result, nil
}

// findReplay returns the prior outcome for the idempotency key, if any
func (s *SweepService) findReplay(ctx context.Context, cmd ExecuteSweepCommand) (*SweepResult, error) {
	var existing *treasury.CashSweep
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		existing, err = repos.SweepRepo().FindByIdempotencyKey(ctx, cmd.TenantID, cmd.IdempotencyKey)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("idempotency lookup failed: %w", err)
	}
	if existing == nil {
		return nil, nil
	}
	if !existing.IsTerminal() {
		return nil, treasury.ErrSweepAlreadyInProgress(cmd.IdempotencyKey)
	}
	return newSweepResult(existing, true), nil
}

func (s *SweepService) idemKey(cmd ExecuteSweepCommand) string {
	return fmt.Sprintf("sweep:%s:%s", cmd.TenantID, cmd.IdempotencyKey)
}

func (s *SweepService) publishEvents(ctx context.Context, sweep *treasury.CashSweep) {
	events := sweep.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.logger.Error("event publish failed", zap.Error(err))
	}
	sweep.ClearDomainEvents()
}

// auditSweep appends the single audit event for a sweep attempt. A nil
// sweep means the attempt failed before an aggregate existed, so there
// is no snapshot to reference.
func (s *SweepService) auditSweep(ctx context.Context, cmd ExecuteSweepCommand, sweep *treasury.CashSweep, result treasury.AuditResult, detail string) {
	var event treasury.AuditEvent
	if sweep != nil {
		event = treasury.NewAuditEvent(cmd.TenantID, cmd.Actor.UserID, "sweep.execute", result, "CashSweep", sweep.ID, sweep.CorrelationID)
		if sweep.Version > 1 {
			event.BeforeRef = treasury.SnapshotRef("CashSweep", sweep.ID, sweep.Version-1)
		}
		event.AfterRef = treasury.SnapshotRef("CashSweep", sweep.ID, sweep.Version)
	} else {
		event = treasury.NewAuditEvent(cmd.TenantID, cmd.Actor.UserID, "sweep.execute", result, "CashSweep", uuid.Nil, uuid.New())
	}
	event.Detail = detail
	if err := s.audit.Append(ctx, event); err != nil {
		s.logger.Error("audit append failed", zap.Error(err))
	}
}
