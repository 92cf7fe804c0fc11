package treasury

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/treasury/backend/internal/domain/shared"
	"github.com/treasury/backend/internal/domain/treasury"
	"github.com/treasury/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// PoolService manages the cash pool lifecycle: creation, membership,
// activation, suspension and closure.
type PoolService struct {
	txScope   TransactionScope
	gate      *AuthorizationGate
	audit     treasury.AuditSink
	publisher shared.EventPublisher
	logger    *zap.Logger
}

// NewPoolService creates a new PoolService
func NewPoolService(
	txScope TransactionScope,
	gate *AuthorizationGate,
	audit treasury.AuditSink,
	publisher shared.EventPublisher,
	logger *zap.Logger,
) *PoolService {
	return &PoolService{
		txScope:   txScope,
		gate:      gate,
		audit:     audit,
		publisher: publisher,
		logger:    logger,
	}
}

// CreatePool creates a pool in Draft status
func (s *PoolService) CreatePool(ctx context.Context, cmd CreatePoolCommand) (*PoolView, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "pool", "create")
	defer span.End()

	if err := validateCommand(cmd); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	pool, err := treasury.NewCashPool(
		cmd.TenantID,
		cmd.Name,
		cmd.PoolType,
		cmd.Currency,
		cmd.TargetBalance,
		cmd.SweepThreshold,
		cmd.DailyLimit,
		cmd.SingleTransactionLimit,
	)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	pool.AgreementReference = cmd.AgreementReference
	pool.RateBenchmark = cmd.RateBenchmark

	if err := s.gate.Authorize(ctx, cmd.Actor, treasury.ActionManagePool, pool); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		return repos.PoolRepo().Save(ctx, pool)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save pool: %w", err)
	}

	s.finish(ctx, cmd.TenantID, cmd.Actor, "pool.create", pool)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrPoolID, pool.ID.String(),
		telemetry.SpanAttrPoolType, string(pool.PoolType),
	)

	view := NewPoolView(pool)
	return &view, nil
}

// AddMemberAccount registers a bank account in a draft pool
func (s *PoolService) AddMemberAccount(ctx context.Context, cmd AddMemberAccountCommand) (*PoolView, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "pool", "add_member_account")
	defer span.End()

	if err := validateCommand(cmd); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var pool *treasury.CashPool
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		pool, err = s.loadPool(ctx, repos, cmd.TenantID, cmd.PoolID)
		if err != nil {
			return err
		}
		if err := s.gate.Authorize(ctx, cmd.Actor, treasury.ActionManagePool, pool); err != nil {
			return err
		}

		expectedVersion := pool.Version
		if err := pool.AddMemberAccount(cmd.AccountID, cmd.EntityID, cmd.EntityName, cmd.Currency, cmd.Role); err != nil {
			return err
		}
		return repos.PoolRepo().SaveWithLock(ctx, pool, expectedVersion)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.finish(ctx, cmd.TenantID, cmd.Actor, "pool.add_member_account", pool)

	view := NewPoolView(pool)
	return &view, nil
}

// ActivatePool transitions a draft pool to Active and appends the
// activation snapshot to the config history
func (s *PoolService) ActivatePool(ctx context.Context, cmd PoolLifecycleCommand) (*PoolView, error) {
	return s.transition(ctx, cmd, "activate", func(pool *treasury.CashPool) error {
		return pool.Activate()
	})
}

// SuspendPool transitions an active pool to Suspended
func (s *PoolService) SuspendPool(ctx context.Context, cmd PoolLifecycleCommand) (*PoolView, error) {
	return s.transition(ctx, cmd, "suspend", func(pool *treasury.CashPool) error {
		return pool.Suspend(cmd.Reason)
	})
}

// ResumePool transitions a suspended pool back to Active
func (s *PoolService) ResumePool(ctx context.Context, cmd PoolLifecycleCommand) (*PoolView, error) {
	return s.transition(ctx, cmd, "resume", func(pool *treasury.CashPool) error {
		return pool.Resume()
	})
}

// ClosePool closes the pool. Closure is refused while pending sweeps or
// pending config changes remain.
func (s *PoolService) ClosePool(ctx context.Context, cmd PoolLifecycleCommand) (*PoolView, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "pool", "close")
	defer span.End()

	if err := validateCommand(cmd); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var pool *treasury.CashPool
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		pool, err = s.loadPool(ctx, repos, cmd.TenantID, cmd.PoolID)
		if err != nil {
			return err
		}
		if err := s.gate.Authorize(ctx, cmd.Actor, treasury.ActionManagePool, pool); err != nil {
			return err
		}

		pendingSweeps, err := repos.SweepRepo().CountPendingForPool(ctx, cmd.TenantID, cmd.PoolID)
		if err != nil {
			return fmt.Errorf("failed to count pending sweeps: %w", err)
		}
		pendingChanges, err := repos.ConfigChangeRepo().CountPendingForPool(ctx, cmd.TenantID, cmd.PoolID)
		if err != nil {
			return fmt.Errorf("failed to count pending config changes: %w", err)
		}
		if pendingSweeps > 0 || pendingChanges > 0 {
			return treasury.ErrPendingTransactionsExist(pendingSweeps, pendingChanges)
		}

		expectedVersion := pool.Version
		if err := pool.Close(); err != nil {
			return err
		}
		return repos.PoolRepo().SaveWithLock(ctx, pool, expectedVersion)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.auditFail(ctx, cmd.TenantID, cmd.Actor, "pool.close", cmd.PoolID, err)
		return nil, err
	}

	s.finish(ctx, cmd.TenantID, cmd.Actor, "pool.close", pool)

	view := NewPoolView(pool)
	return &view, nil
}

// GetPool returns the pool read model
func (s *PoolService) GetPool(ctx context.Context, tenantID, poolID uuid.UUID) (*PoolView, error) {
	var pool *treasury.CashPool
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		pool, err = s.loadPool(ctx, repos, tenantID, poolID)
		return err
	})
	if err != nil {
		return nil, err
	}
	view := NewPoolView(pool)
	return &view, nil
}

// ListPools returns pools for the tenant, paginated
func (s *PoolService) ListPools(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*shared.Paginated[PoolView], error) {
	var page *shared.Paginated[*treasury.CashPool]
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		page, err = repos.PoolRepo().FindAll(ctx, tenantID, filter)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pools: %w", err)
	}

	views := make([]PoolView, 0, len(page.Items))
	for _, pool := range page.Items {
		views = append(views, NewPoolView(pool))
	}
	result := shared.NewPaginated(views, page.Total, page.Page, page.PageSize)
	return &result, nil
}

// transition runs one lifecycle mutation under the common
// load-authorize-mutate-save sequence
func (s *PoolService) transition(ctx context.Context, cmd PoolLifecycleCommand, method string, mutate func(*treasury.CashPool) error) (*PoolView, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "pool", method)
	defer span.End()

	if err := validateCommand(cmd); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var pool *treasury.CashPool
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		pool, err = s.loadPool(ctx, repos, cmd.TenantID, cmd.PoolID)
		if err != nil {
			return err
		}
		if err := s.gate.Authorize(ctx, cmd.Actor, treasury.ActionManagePool, pool); err != nil {
			return err
		}

		expectedVersion := pool.Version
		if err := mutate(pool); err != nil {
			return err
		}
		if err := repos.PoolRepo().SaveWithLock(ctx, pool, expectedVersion); err != nil {
			return err
		}

		// Activation freezes the first configuration snapshot.
		if method == "activate" {
			return repos.ConfigHistoryRepo().Append(ctx, treasury.NewPoolConfigHistory(pool, nil))
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.auditFail(ctx, cmd.TenantID, cmd.Actor, "pool."+method, cmd.PoolID, err)
		return nil, err
	}

	s.finish(ctx, cmd.TenantID, cmd.Actor, "pool."+method, pool)
	telemetry.SetAttribute(span, telemetry.SpanAttrPoolID, pool.ID.String())

	view := NewPoolView(pool)
	return &view, nil
}

func (s *PoolService) loadPool(ctx context.Context, repos TransactionalRepositories, tenantID, poolID uuid.UUID) (*treasury.CashPool, error) {
	pool, err := repos.PoolRepo().FindByID(ctx, tenantID, poolID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pool: %w", err)
	}
	if pool == nil {
		return nil, treasury.ErrPoolNotFound(poolID)
	}
	return pool, nil
}

// finish emits the audit event and publishes the aggregate's domain
// events after a successful mutation
func (s *PoolService) finish(ctx context.Context, tenantID uuid.UUID, actor treasury.Actor, action string, pool *treasury.CashPool) {
	event := treasury.NewAuditEvent(tenantID, actor.UserID, action, treasury.AuditResultOK, "CashPool", pool.ID, uuid.New())
	if pool.Version > 1 {
		event.BeforeRef = treasury.SnapshotRef("CashPool", pool.ID, pool.Version-1)
	}
	event.AfterRef = treasury.SnapshotRef("CashPool", pool.ID, pool.Version)
	if err := s.audit.Append(ctx, event); err != nil {
		s.logger.Error("audit append failed", zap.String("action", action), zap.Error(err))
	}

	events := pool.GetDomainEvents()
	if len(events) > 0 {
		if err := s.publisher.Publish(ctx, events...); err != nil {
			s.logger.Error("event publish failed", zap.String("action", action), zap.Error(err))
		}
		pool.ClearDomainEvents()
	}

	s.logger.Info("pool operation completed",
		zap.String("action", action),
		zap.String("pool_id", pool.ID.String()),
		zap.String("status", string(pool.Status)),
		zap.Int("version", pool.Version),
	)
}

func (s *PoolService) auditFail(ctx context.Context, tenantID uuid.UUID, actor treasury.Actor, action string, resourceID uuid.UUID, opErr error) {
	event := treasury.NewAuditEvent(tenantID, actor.UserID, action, treasury.AuditResultFail, "CashPool", resourceID, uuid.New())
	event.Detail = opErr.Error()
	_ = s.audit.Append(ctx, event)
}
