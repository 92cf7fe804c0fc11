package cache

import (
	"fmt"

	"github.com/treasury/backend/internal/domain/shared"
	"github.com/treasury/backend/internal/infrastructure/config"
)

// NewIdempotencyStore builds the idempotency store selected by the
// engine configuration
func NewIdempotencyStore(cfg *config.Config) (shared.IdempotencyStore, error) {
	switch cfg.Engine.IdempotencyBackend {
	case "memory":
		return NewInMemoryIdempotencyStore(), nil
	case "redis":
		return NewRedisIdempotencyStore(cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown idempotency backend %q", cfg.Engine.IdempotencyBackend)
	}
}
