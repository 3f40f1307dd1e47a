// Package services implementa a lógica central de admissão e rate limiting.
package services

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/JeanGrijp/api-guardian/internal/core/domain"
	"github.com/JeanGrijp/api-guardian/internal/core/ports"
)

// Evaluator aplica uma política de janela fixa sobre o storage de contadores.
type Evaluator struct {
	storage ports.Storage
	clock   clockwork.Clock
}

func NewEvaluator(storage ports.Storage, clock clockwork.Clock) *Evaluator {
	return &Evaluator{storage: storage, clock: clock}
}

// Evaluate incrementa o contador da janela corrente e deriva o resultado.
//
// The order is increment-then-read on purpose: two concurrent requests can
// never both observe "allowed" before either one is counted. A caller that
// retries after a network error pays a second increment; we prefer that
// duplication over the complexity of exactly-once counting.
func (e *Evaluator) Evaluate(ctx context.Context, identifier, action string, policy domain.Policy) (domain.RateLimitResult, error) {
	now := e.clock.Now()
	key := domain.CounterKey(identifier, action, policy.Window, now)

	count, err := e.storage.Increment(ctx, key, policy.Window)
	if err != nil {
		return domain.RateLimitResult{}, fmt.Errorf("increment %s: %w", key, err)
	}

	remaining := int64(policy.Limit) - count
	if remaining < 0 {
		remaining = 0
	}

	return domain.RateLimitResult{
		Allowed:   count <= int64(policy.Limit),
		Limit:     policy.Limit,
		Remaining: remaining,
		ResetTime: domain.WindowReset(policy.Window, now),
		TotalHits: count,
	}, nil
}
