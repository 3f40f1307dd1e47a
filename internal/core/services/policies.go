package services

import (
	"github.com/JeanGrijp/api-guardian/internal/core/domain"
)

// DefaultTiers monta as quatro camadas canônicas na ordem de prioridade fixa:
// endereço de rede, usuário autenticado, organização e credencial de API.
// Lower rank is evaluated first; the cheapest and most restrictive dimension
// (the network address) fronts the walk.
func DefaultTiers(ip, user, org, apiKey PolicyTable) []Tier {
	return []Tier{
		{
			Name:     TierIP,
			Rank:     10,
			Policies: ip,
			Identify: func(req domain.RequestContext) string {
				if req.NetworkAddress == "" {
					return ""
				}
				return domain.Identifier(domain.ScopeIP, req.NetworkAddress)
			},
		},
		{
			Name:     TierUser,
			Rank:     20,
			Policies: user,
			Identify: func(req domain.RequestContext) string {
				if req.UserID == "" {
					return ""
				}
				return domain.Identifier(domain.ScopeUser, req.UserID)
			},
		},
		{
			Name:     TierOrg,
			Rank:     30,
			Policies: org,
			Identify: func(req domain.RequestContext) string {
				if req.OrganizationID == "" {
					return ""
				}
				return domain.Identifier(domain.ScopeOrg, req.OrganizationID)
			},
		},
		{
			Name:     TierAPIKey,
			Rank:     40,
			Policies: apiKey,
			Identify: func(req domain.RequestContext) string {
				if req.APICredential == "" {
					return ""
				}
				return domain.Identifier(domain.ScopeAPIKey, req.APICredential)
			},
		},
	}
}
