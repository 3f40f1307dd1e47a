package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/JeanGrijp/api-guardian/internal/core/domain"
)

// Nomes canônicos das camadas de política.
const (
	TierIP     = "IP-based"
	TierUser   = "User-based"
	TierOrg    = "Organization-based"
	TierAPIKey = "API-key-based"
)

// PolicyTable associa uma política padrão e sobrescritas por ação.
type PolicyTable struct {
	Default domain.Policy
	Actions map[string]domain.Policy
}

// For resolve a política aplicável à ação informada.
func (t PolicyTable) For(action string) domain.Policy {
	if policy, ok := t.Actions[action]; ok {
		return policy
	}
	return t.Default
}

func (t PolicyTable) validate() error {
	if err := t.Default.Validate(); err != nil {
		return fmt.Errorf("default policy: %w", err)
	}
	for action, policy := range t.Actions {
		if err := policy.Validate(); err != nil {
			return fmt.Errorf("action %q: %w", action, err)
		}
	}
	return nil
}

// Tier é uma dimensão independente de rate limiting com prioridade própria.
// Identify returns the canonical identifier for the request, or "" when the
// tier does not apply (an unauthenticated call has no user identifier).
type Tier struct {
	Name     string
	Rank     int
	Policies PolicyTable
	Identify func(domain.RequestContext) string
}

// TierResolver avalia as camadas em ordem de prioridade e para na primeira violação.
type TierResolver struct {
	evaluator *Evaluator
	tiers     []Tier
}

// NewTierResolver valida as tabelas de política e fixa a ordem de avaliação.
// Ties on rank keep declaration order.
func NewTierResolver(evaluator *Evaluator, tiers []Tier) (*TierResolver, error) {
	if evaluator == nil {
		return nil, fmt.Errorf("evaluator is required")
	}
	if len(tiers) == 0 {
		return nil, fmt.Errorf("at least one tier is required")
	}
	for _, tier := range tiers {
		if tier.Name == "" || tier.Identify == nil {
			return nil, fmt.Errorf("tier must have a name and an identifier function")
		}
		if err := tier.Policies.validate(); err != nil {
			return nil, fmt.Errorf("tier %s: %w", tier.Name, err)
		}
	}

	ordered := make([]Tier, len(tiers))
	copy(ordered, tiers)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Rank < ordered[j].Rank })

	return &TierResolver{evaluator: evaluator, tiers: ordered}, nil
}

// Identifiers lista, em ordem de prioridade, os identificadores aplicáveis à requisição.
func (r *TierResolver) Identifiers(req domain.RequestContext) []string {
	ids := make([]string, 0, len(r.tiers))
	for _, tier := range r.tiers {
		if id := tier.Identify(req); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// EvaluateAll percorre as camadas aplicáveis e devolve o veredito combinado.
//
// The first violated tier short-circuits the walk: tiers after it are not
// incremented for an already-rejected request. A request denied by a
// low-priority tier therefore never counts against higher-priority tiers;
// that under-count during an attack is intentional, kept from the original
// behavior. When nothing is violated the last evaluated tier's result is
// returned, carrying the budget of the tier that was closest to its ceiling.
func (r *TierResolver) EvaluateAll(ctx context.Context, req domain.RequestContext) (domain.RateLimitResult, error) {
	var last domain.RateLimitResult
	evaluated := false

	for _, tier := range r.tiers {
		identifier := tier.Identify(req)
		if identifier == "" {
			continue
		}

		result, err := r.evaluator.Evaluate(ctx, identifier, req.Action, tier.Policies.For(req.Action))
		if err != nil {
			return domain.RateLimitResult{}, fmt.Errorf("tier %s: %w", tier.Name, err)
		}
		if !result.Allowed {
			result.ViolatedTier = tier.Name
			return result, nil
		}
		last = result
		evaluated = true
	}

	if !evaluated {
		return domain.RateLimitResult{}, domain.ErrMissingIdentifier
	}
	return last, nil
}
