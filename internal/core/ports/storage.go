// Package ports define contratos que conectam o domínio a implementações externas.
package ports

import (
	"context"
	"time"

	"github.com/JeanGrijp/api-guardian/internal/core/domain"
)

// Storage é o backend compartilhado de contadores e bloqueios.
//
// Increment must be atomic with respect to the TTL it installs: a freshly
// created key always carries an expiry, and concurrent increments never lose
// updates. The returned count is the post-increment value.
type Storage interface {
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Count(ctx context.Context, key string) (int64, error)
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)

	// GetBlock returns nil when no unexpired record exists for the key.
	GetBlock(ctx context.Context, key string) (*domain.BlockRecord, error)
	SetBlock(ctx context.Context, key string, record domain.BlockRecord, ttl time.Duration) error
	RemoveBlock(ctx context.Context, key string) error
}
