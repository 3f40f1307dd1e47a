// Package domain concentra entidades e estruturas centrais do subsistema de admissão.
package domain

import (
	"fmt"
	"time"
)

// Policy define um teto de requisições dentro de uma janela fixa.
//
// SkipSuccessful and SkipFailed mirror the configuration surface of the host
// application: when set, the routing layer (the only place that knows the
// request outcome) may decide not to report the request against this policy.
// Admission itself always counts, since it runs before an outcome exists.
type Policy struct {
	Limit          int
	Window         time.Duration
	SkipSuccessful bool
	SkipFailed     bool
}

// Validate garante que a política possui valores utilizáveis.
func (p Policy) Validate() error {
	if p.Limit <= 0 {
		return fmt.Errorf("%w: limit=%d", ErrInvalidPolicy, p.Limit)
	}
	if p.Window < time.Second || p.Window > 30*24*time.Hour {
		return fmt.Errorf("%w: window=%s", ErrInvalidPolicy, p.Window)
	}
	return nil
}

// RequestContext descreve quem está pedindo admissão e para qual ação.
type RequestContext struct {
	NetworkAddress string
	UserID         string
	OrganizationID string
	APICredential  string
	Action         string
	Endpoint       string
}

// RateLimitResult é o resultado transitório de uma avaliação de limite.
type RateLimitResult struct {
	Allowed      bool
	Limit        int
	Remaining    int64
	ResetTime    time.Time
	TotalHits    int64
	ViolatedTier string
}

// BlockRecord registra uma quarentena ativa para um identificador.
type BlockRecord struct {
	Identifier string    `json:"identifier"`
	Reason     string    `json:"reason"`
	BlockedAt  time.Time `json:"blocked_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// BlockStatus é a visão de consulta de um bloqueio.
type BlockStatus struct {
	Blocked   bool
	Reason    string
	BlockedAt time.Time
	ExpiresAt time.Time
}

// Verdict é a decisão final entregue à camada HTTP.
type Verdict struct {
	Allowed           bool
	HTTPStatus        int
	Limit             int
	Remaining         int64
	ResetTime         time.Time
	RetryAfterSeconds int
	ViolatedTier      string
	BlockedReason     string
}

// Trend descreve a direção do volume de requisições entre janelas.
type Trend string

const (
	TrendRising  Trend = "rising"
	TrendFalling Trend = "falling"
	TrendFlat    Trend = "flat"
)

// UsageStats agrega contagens por janela para operações de suporte.
type UsageStats struct {
	Identifier          string
	Window              time.Duration
	CurrentWindowCount  int64
	PreviousWindowCount int64
	Trend               Trend
}
