package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/JeanGrijp/api-guardian/internal/core/domain"
	"github.com/JeanGrijp/api-guardian/internal/core/ports"
)

const (
	metricDecisions       = "guardian.decisions"
	metricDecisionSeconds = "guardian.decision_seconds"
)

// Config agrega o comportamento transversal da fachada de admissão.
type Config struct {
	// Timeout limita a decisão inteira; zero desliga o deadline.
	Timeout time.Duration
	// FailClosed nega requisições quando a avaliação falha internamente.
	// The default is fail open: the rate limiter must not become an outage
	// of its own.
	FailClosed bool
}

// AdmissionService orquestra quarentena, camadas de política e avaliação.
// É o único ponto de entrada público do subsistema.
type AdmissionService struct {
	quarantine *QuarantineManager
	resolver   *TierResolver
	storage    ports.Storage
	clock      clockwork.Clock
	logger     *zap.Logger
	metrics    ports.MetricsRecorder
	cfg        Config
}

var (
	_ ports.Admitter = (*AdmissionService)(nil)
	_ ports.Admin    = (*AdmissionService)(nil)
)

// NewAdmissionService cria a fachada; todas as dependências são obrigatórias.
func NewAdmissionService(quarantine *QuarantineManager, resolver *TierResolver, storage ports.Storage, clock clockwork.Clock, logger *zap.Logger, metrics ports.MetricsRecorder, cfg Config) (*AdmissionService, error) {
	if quarantine == nil || resolver == nil || storage == nil {
		return nil, fmt.Errorf("quarantine, resolver and storage are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = ports.NoOpMetricsRecorder{}
	}
	return &AdmissionService{
		quarantine: quarantine,
		resolver:   resolver,
		storage:    storage,
		clock:      clock,
		logger:     logger,
		metrics:    metrics,
		cfg:        cfg,
	}, nil
}

// Admit decide se a requisição pode prosseguir.
//
// Sequence: quarantine check on every applicable identifier, velocity hit on
// the network source, then tier-by-tier evaluation. A quarantined identifier
// is denied before any tier counter is incremented.
func (s *AdmissionService) Admit(ctx context.Context, req domain.RequestContext) (domain.Verdict, error) {
	started := time.Now()
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	identifiers := s.resolver.Identifiers(req)
	if len(identifiers) == 0 {
		return domain.Verdict{}, domain.ErrMissingIdentifier
	}

	for _, identifier := range identifiers {
		status, err := s.quarantine.CheckBlocked(ctx, identifier)
		if err != nil {
			return s.recover(req, err, started), nil
		}
		if status.Blocked {
			return s.blockedVerdict(req, status, started), nil
		}
	}

	if req.NetworkAddress != "" {
		source := domain.Identifier(domain.ScopeIP, req.NetworkAddress)
		tripped, err := s.quarantine.RecordHit(ctx, source)
		if err != nil {
			return s.recover(req, err, started), nil
		}
		if tripped {
			status, err := s.quarantine.CheckBlocked(ctx, source)
			if err != nil || !status.Blocked {
				// The record was installed a moment ago; synthesize it if the
				// re-read raced with storage.
				status = domain.BlockStatus{Blocked: true, Reason: ReasonExcessiveRate}
			}
			return s.blockedVerdict(req, status, started), nil
		}
	}

	result, err := s.resolver.EvaluateAll(ctx, req)
	if err != nil {
		if errors.Is(err, domain.ErrMissingIdentifier) {
			return domain.Verdict{}, err
		}
		return s.recover(req, err, started), nil
	}

	verdict := s.verdictFrom(result)
	outcome := "allowed"
	if !verdict.Allowed {
		outcome = "denied"
	}
	s.observe(req, outcome, verdict.ViolatedTier, started)
	return verdict, nil
}

func (s *AdmissionService) verdictFrom(result domain.RateLimitResult) domain.Verdict {
	verdict := domain.Verdict{
		Allowed:      result.Allowed,
		HTTPStatus:   http.StatusOK,
		Limit:        result.Limit,
		Remaining:    result.Remaining,
		ResetTime:    result.ResetTime,
		ViolatedTier: result.ViolatedTier,
	}
	if !result.Allowed {
		verdict.HTTPStatus = http.StatusTooManyRequests
		verdict.RetryAfterSeconds = secondsUntil(s.clock.Now(), result.ResetTime)
	}
	return verdict
}

func (s *AdmissionService) blockedVerdict(req domain.RequestContext, status domain.BlockStatus, started time.Time) domain.Verdict {
	s.observe(req, "blocked", "", started)
	verdict := domain.Verdict{
		Allowed:       false,
		HTTPStatus:    http.StatusForbidden,
		BlockedReason: status.Reason,
		ResetTime:     status.ExpiresAt,
	}
	if !status.ExpiresAt.IsZero() {
		verdict.RetryAfterSeconds = secondsUntil(s.clock.Now(), status.ExpiresAt)
	}
	return verdict
}

// recover aplica a política de falha configurada a um erro interno inesperado.
func (s *AdmissionService) recover(req domain.RequestContext, err error, started time.Time) domain.Verdict {
	s.logger.Warn("admission evaluation failed",
		zap.String("action", req.Action),
		zap.Bool("fail_closed", s.cfg.FailClosed),
		zap.Error(err))

	if s.cfg.FailClosed {
		s.observe(req, "denied", "", started)
		return domain.Verdict{
			Allowed:           false,
			HTTPStatus:        http.StatusTooManyRequests,
			RetryAfterSeconds: 1,
		}
	}
	s.observe(req, "allowed", "", started)
	return domain.Verdict{Allowed: true, HTTPStatus: http.StatusOK}
}

func (s *AdmissionService) observe(req domain.RequestContext, outcome, tier string, started time.Time) {
	s.metrics.Add(metricDecisions, 1, map[string]string{
		"action":  req.Action,
		"outcome": outcome,
		"tier":    tier,
	})
	s.metrics.Observe(metricDecisionSeconds, time.Since(started).Seconds(), nil)
}

func secondsUntil(now, deadline time.Time) int {
	remaining := deadline.Sub(now)
	if remaining <= 0 {
		return 0
	}
	seconds := int((remaining + time.Second - 1) / time.Second)
	return seconds
}

// BlockIdentifier instala manualmente um bloqueio para o identificador.
func (s *AdmissionService) BlockIdentifier(ctx context.Context, identifier, reason string, duration time.Duration) error {
	if identifier == "" {
		return fmt.Errorf("identifier is required")
	}
	if reason == "" {
		reason = "manual"
	}
	return s.quarantine.Block(ctx, identifier, reason, duration)
}

// IsBlocked consulta o estado de bloqueio do identificador.
func (s *AdmissionService) IsBlocked(ctx context.Context, identifier string) (domain.BlockStatus, error) {
	return s.quarantine.CheckBlocked(ctx, identifier)
}

// UnblockIdentifier remove o bloqueio do identificador.
func (s *AdmissionService) UnblockIdentifier(ctx context.Context, identifier string) error {
	return s.quarantine.Unblock(ctx, identifier)
}

// GetStats devolve as contagens agregadas da janela corrente e anterior,
// lidas do contador de velocidade mantido por identificador.
func (s *AdmissionService) GetStats(ctx context.Context, identifier string, window time.Duration) (domain.UsageStats, error) {
	if window <= 0 {
		return domain.UsageStats{}, fmt.Errorf("stats window must be positive, got %s", window)
	}

	index := domain.WindowIndex(window, s.clock.Now())
	current, err := s.storage.Count(ctx, domain.SuspectKeyAt(identifier, index))
	if err != nil {
		return domain.UsageStats{}, fmt.Errorf("stats %s: %w", identifier, err)
	}
	previous, err := s.storage.Count(ctx, domain.SuspectKeyAt(identifier, index-1))
	if err != nil {
		return domain.UsageStats{}, fmt.Errorf("stats %s: %w", identifier, err)
	}

	trend := domain.TrendFlat
	switch {
	case current > previous:
		trend = domain.TrendRising
	case current < previous:
		trend = domain.TrendFalling
	}

	return domain.UsageStats{
		Identifier:          identifier,
		Window:              window,
		CurrentWindowCount:  current,
		PreviousWindowCount: previous,
		Trend:               trend,
	}, nil
}

// ResetLimit descarta todas as janelas de contagem do identificador.
func (s *AdmissionService) ResetLimit(ctx context.Context, identifier string) error {
	if identifier == "" {
		return fmt.Errorf("identifier is required")
	}
	if _, err := s.storage.DeleteByPrefix(ctx, domain.CounterPrefix(identifier)); err != nil {
		return fmt.Errorf("reset counters %s: %w", identifier, err)
	}
	if _, err := s.storage.DeleteByPrefix(ctx, domain.SuspectPrefix(identifier)); err != nil {
		return fmt.Errorf("reset velocity %s: %w", identifier, err)
	}
	s.logger.Info("rate limit state reset", zap.String("identifier", identifier))
	return nil
}
