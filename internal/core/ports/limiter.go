// Package ports define contratos que conectam o domínio a implementações externas.
package ports

import (
	"context"
	"time"

	"github.com/JeanGrijp/api-guardian/internal/core/domain"
)

// Admitter é o único ponto de entrada para decisões de admissão.
type Admitter interface {
	Admit(ctx context.Context, req domain.RequestContext) (domain.Verdict, error)
}

// Admin expõe operações administrativas de bloqueio e suporte.
// Identifiers use the canonical "scope:value" form, e.g. "ip:1.2.3.4".
type Admin interface {
	BlockIdentifier(ctx context.Context, identifier, reason string, duration time.Duration) error
	IsBlocked(ctx context.Context, identifier string) (domain.BlockStatus, error)
	UnblockIdentifier(ctx context.Context, identifier string) error
	GetStats(ctx context.Context, identifier string, window time.Duration) (domain.UsageStats, error)
	ResetLimit(ctx context.Context, identifier string) error
}
