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

// ConfigChangeService runs the dual-approval workflow for pool
// parameter changes: request, approve (applying the delta and
// appending a config history snapshot) and reject.
type ConfigChangeService struct {
	txScope   TransactionScope
	gate      *AuthorizationGate
	audit     treasury.AuditSink
	publisher shared.EventPublisher
	logger    *zap.Logger
}

// NewConfigChangeService creates a new ConfigChangeService
func NewConfigChangeService(
	txScope TransactionScope,
	gate *AuthorizationGate,
	audit treasury.AuditSink,
	publisher shared.EventPublisher,
	logger *zap.Logger,
) *ConfigChangeService {
	return &ConfigChangeService{
		txScope:   txScope,
		gate:      gate,
		audit:     audit,
		publisher: publisher,
		logger:    logger,
	}
}

// RequestChange opens a pending change against the pool version the
// requester observed
func (s *ConfigChangeService) RequestChange(ctx context.Context, cmd RequestConfigChangeCommand) (*ConfigChangeResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "config_change", "request")
	defer span.End()

	if err := validateCommand(cmd); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var change *treasury.PoolConfigChange
	var poolVersion int
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		pool, err := s.loadPool(ctx, repos, cmd.TenantID, cmd.PoolID)
		if err != nil {
			return err
		}
		if pool.Status.IsTerminal() {
			return shared.NewDomainError("INVALID_STATE", "Cannot reconfigure a closed pool")
		}
		if err := s.gate.Authorize(ctx, cmd.Actor, treasury.ActionRequestConfig, pool); err != nil {
			return err
		}

		change, err = treasury.NewPoolConfigChange(
			cmd.TenantID, cmd.PoolID, cmd.Actor.UserID,
			cmd.ObservedVersion, cmd.Delta, cmd.Reason,
		)
		if err != nil {
			return err
		}
		poolVersion = pool.Version
		return repos.ConfigChangeRepo().Save(ctx, change)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.finish(ctx, cmd.TenantID, cmd.Actor, "config.request", change)
	telemetry.SetAttribute(span, telemetry.SpanAttrChangeID, change.ID.String())

	return newConfigChangeResult(change, poolVersion), nil
}

// ApproveChange applies a pending change. The approver must differ from
// the requester and the pool version must still match the version the
// requester observed; both the change decision, the delta application
// and the history snapshot commit atomically.
func (s *ConfigChangeService) ApproveChange(ctx context.Context, cmd DecideConfigChangeCommand) (*ConfigChangeResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "config_change", "approve")
	defer span.End()

	if err := validateCommand(cmd); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var change *treasury.PoolConfigChange
	var pool *treasury.CashPool
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		pool, err = s.loadPool(ctx, repos, cmd.TenantID, cmd.PoolID)
		if err != nil {
			return err
		}
		if err := s.gate.Authorize(ctx, cmd.Actor, treasury.ActionApproveConfig, pool); err != nil {
			return err
		}

		change, err = s.loadChange(ctx, repos, cmd.TenantID, cmd.ChangeID)
		if err != nil {
			return err
		}

		changeVersion := change.Version
		if err := change.Approve(cmd.Actor.UserID, pool.Version); err != nil {
			return err
		}

		poolVersion := pool.Version
		if err := pool.ApplyConfigDelta(change.ProposedDelta, change.ID); err != nil {
			return err
		}

		if err := repos.ConfigChangeRepo().SaveWithLock(ctx, change, changeVersion); err != nil {
			return err
		}
		if err := repos.PoolRepo().SaveWithLock(ctx, pool, poolVersion); err != nil {
			return err
		}
		return repos.ConfigHistoryRepo().Append(ctx, treasury.NewPoolConfigHistory(pool, &change.ID))
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.auditFail(ctx, cmd.TenantID, cmd.Actor, "config.approve", cmd.ChangeID, err)
		return nil, err
	}

	s.finish(ctx, cmd.TenantID, cmd.Actor, "config.approve", change)
	s.publishPoolEvents(ctx, pool)
	s.logger.Info("config change approved",
		zap.String("change_id", change.ID.String()),
		zap.String("pool_id", pool.ID.String()),
		zap.Int("pool_version", pool.Version),
	)

	return newConfigChangeResult(change, pool.Version), nil
}

// RejectChange declines a pending change
func (s *ConfigChangeService) RejectChange(ctx context.Context, cmd DecideConfigChangeCommand) (*ConfigChangeResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "config_change", "reject")
	defer span.End()

	if err := validateCommand(cmd); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var change *treasury.PoolConfigChange
	var poolVersion int
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		pool, err := s.loadPool(ctx, repos, cmd.TenantID, cmd.PoolID)
		if err != nil {
			return err
		}
		if err := s.gate.Authorize(ctx, cmd.Actor, treasury.ActionApproveConfig, pool); err != nil {
			return err
		}

		change, err = s.loadChange(ctx, repos, cmd.TenantID, cmd.ChangeID)
		if err != nil {
			return err
		}

		changeVersion := change.Version
		if err := change.Reject(cmd.Actor.UserID, cmd.Reason); err != nil {
			return err
		}
		poolVersion = pool.Version
		return repos.ConfigChangeRepo().SaveWithLock(ctx, change, changeVersion)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.auditFail(ctx, cmd.TenantID, cmd.Actor, "config.reject", cmd.ChangeID, err)
		return nil, err
	}

	s.finish(ctx, cmd.TenantID, cmd.Actor, "config.reject", change)

	return newConfigChangeResult(change, poolVersion), nil
}

// GetHistory returns the append-only configuration snapshots for a pool
func (s *ConfigChangeService) GetHistory(ctx context.Context, tenantID, poolID uuid.UUID, filter shared.Filter) (*shared.Paginated[*treasury.PoolConfigHistory], error) {
	var page *shared.Paginated[*treasury.PoolConfigHistory]
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		page, err = repos.ConfigHistoryRepo().FindByPool(ctx, tenantID, poolID, filter)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load config history: %w", err)
	}
	return page, nil
}

func (s *ConfigChangeService) loadPool(ctx context.Context, repos TransactionalRepositories, tenantID, poolID uuid.UUID) (*treasury.CashPool, error) {
	pool, err := repos.PoolRepo().FindByID(ctx, tenantID, poolID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pool: %w", err)
	}
	if pool == nil {
		return nil, treasury.ErrPoolNotFound(poolID)
	}
	return pool, nil
}

func (s *ConfigChangeService) loadChange(ctx context.Context, repos TransactionalRepositories, tenantID, changeID uuid.UUID) (*treasury.PoolConfigChange, error) {
	change, err := repos.ConfigChangeRepo().FindByID(ctx, tenantID, changeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load config change: %w", err)
	}
	if change == nil {
		return nil, treasury.ErrConfigChangeNotFound(changeID)
	}
	return change, nil
}

func (s *ConfigChangeService) finish(ctx context.Context, tenantID uuid.UUID, actor treasury.Actor, action string, change *treasury.PoolConfigChange) {
	event := treasury.NewAuditEvent(tenantID, actor.UserID, action, treasury.AuditResultOK, "PoolConfigChange", change.ID, uuid.New())
	if change.Version > 1 {
		event.BeforeRef = treasury.SnapshotRef("PoolConfigChange", change.ID, change.Version-1)
	}
	event.AfterRef = treasury.SnapshotRef("PoolConfigChange", change.ID, change.Version)
	if err := s.audit.Append(ctx, event); err != nil {
		s.logger.Error("audit append failed", zap.String("action", action), zap.Error(err))
	}

	events := change.GetDomainEvents()
	if len(events) > 0 {
		if err := s.publisher.Publish(ctx, events...); err != nil {
			s.logger.Error("event publish failed", zap.String("action", action), zap.Error(err))
		}
		change.ClearDomainEvents()
	}
}

func (s *ConfigChangeService) publishPoolEvents(ctx context.Context, pool *treasury.CashPool) {
	events := pool.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.logger.Error("event publish failed", zap.Error(err))
	}
	pool.ClearDomainEvents()
}

func (s *ConfigChangeService) auditFail(ctx context.Context, tenantID uuid.UUID, actor treasury.Actor, action string, resourceID uuid.UUID, opErr error) {
	event := treasury.NewAuditEvent(tenantID, actor.UserID, action, treasury.AuditResultFail, "PoolConfigChange", resourceID, uuid.New())
	event.Detail = opErr.Error()
	if err := s.audit.Append(ctx, event); err != nil {
		s.logger.Error("audit append failed", zap.String("action", action), zap.Error(err))
	}
}
