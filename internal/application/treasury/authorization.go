package treasury

import (
	"context"
	"fmt"

	"github.com/treasury/backend/internal/domain/treasury"
)

// AuthorizationGate performs the per-operation checks shared by all
// treasury services: entity scope, then the policy oracle. Checks run
// in a fixed order so a caller failing several gates always sees the
// same error.
type AuthorizationGate struct {
	oracle treasury.PolicyOracle
}

// NewAuthorizationGate creates a gate backed by the policy oracle
func NewAuthorizationGate(oracle treasury.PolicyOracle) *AuthorizationGate {
	return &AuthorizationGate{oracle: oracle}
}

// Authorize verifies the actor may perform the action on the pool.
// Scope is anchored on the concentration account's legal entity; for
// pools without one (draft, notional) any member entity in scope
// suffices.
func (g *AuthorizationGate) Authorize(ctx context.Context, actor treasury.Actor, action treasury.PolicyAction, pool *treasury.CashPool) error {
	if err := g.checkScope(actor, pool); err != nil {
		return err
	}

	decision, err := g.oracle.Evaluate(ctx, actor, action, treasury.PolicyResource{
		TenantID: pool.TenantID,
		PoolID:   pool.ID,
	})
	if err != nil {
		return fmt.Errorf("policy evaluation failed: %w", err)
	}
	if !decision.Allowed {
		return treasury.ErrInsufficientPermissions(decision.Reason)
	}
	return nil
}

func (g *AuthorizationGate) checkScope(actor treasury.Actor, pool *treasury.CashPool) error {
	if conc := pool.ConcentrationAccount(); conc != nil {
		if !actor.InScope(conc.EntityID) {
			return treasury.ErrScopeViolation(actor.UserID, conc.EntityID)
		}
		return nil
	}
	for _, entityID := range pool.EntityIDs() {
		if actor.InScope(entityID) {
			return nil
		}
	}
	// A draft pool with no members yet has nothing to anchor scope on.
	if len(pool.Members) == 0 {
		return nil
	}
	return treasury.ErrScopeViolation(actor.UserID, pool.ID)
}
