// Package fallback disponibiliza o storage degradável: distribuído com reserva local.
package fallback

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JeanGrijp/api-guardian/internal/core/domain"
	"github.com/JeanGrijp/api-guardian/internal/core/ports"
)

const metricFallbackTransitions = "guardian.storage.fallback_transitions"

// Storage encaminha cada operação ao backend primário e, em caso de erro,
// delega a mesma operação ao backend local sem propagar a falha.
//
// Degradation is logged once per episode, not per request; recovery flips the
// flag back and is logged once as well. While degraded, limits are enforced
// per process instead of globally, which is the accepted trade-off.
type Storage struct {
	primary  ports.Storage
	local    ports.Storage
	logger   *zap.Logger
	metrics  ports.MetricsRecorder
	degraded atomic.Bool
}

var _ ports.Storage = (*Storage)(nil)

func New(primary, local ports.Storage, logger *zap.Logger, metrics ports.MetricsRecorder) *Storage {
	if metrics == nil {
		metrics = ports.NoOpMetricsRecorder{}
	}
	return &Storage{
		primary: primary,
		local:   local,
		logger:  logger,
		metrics: metrics,
	}
}

// Degraded informa se o storage está servindo do backend local.
func (s *Storage) Degraded() bool {
	return s.degraded.Load()
}

func (s *Storage) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := s.primary.Increment(ctx, key, ttl)
	if err == nil {
		s.markHealthy()
		return count, nil
	}
	s.markDegraded(err)
	return s.local.Increment(ctx, key, ttl)
}

func (s *Storage) Count(ctx context.Context, key string) (int64, error) {
	count, err := s.primary.Count(ctx, key)
	if err == nil {
		s.markHealthy()
		return count, nil
	}
	s.markDegraded(err)
	return s.local.Count(ctx, key)
}

func (s *Storage) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	// O backend local é limpo sempre, para que um reset administrativo não
	// ressuscite contagens antigas quando a degradação terminar.
	localRemoved, localErr := s.local.DeleteByPrefix(ctx, prefix)

	removed, err := s.primary.DeleteByPrefix(ctx, prefix)
	if err == nil {
		s.markHealthy()
		return removed + localRemoved, nil
	}
	s.markDegraded(err)
	return localRemoved, localErr
}

func (s *Storage) GetBlock(ctx context.Context, key string) (*domain.BlockRecord, error) {
	record, err := s.primary.GetBlock(ctx, key)
	if err == nil {
		s.markHealthy()
		return record, nil
	}
	s.markDegraded(err)
	return s.local.GetBlock(ctx, key)
}

func (s *Storage) SetBlock(ctx context.Context, key string, record domain.BlockRecord, ttl time.Duration) error {
	// Bloqueios são gravados nos dois backends: se o primário cair depois,
	// a quarentena continua valendo localmente.
	localErr := s.local.SetBlock(ctx, key, record, ttl)

	if err := s.primary.SetBlock(ctx, key, record, ttl); err != nil {
		s.markDegraded(err)
		return localErr
	}
	s.markHealthy()
	return nil
}

func (s *Storage) RemoveBlock(ctx context.Context, key string) error {
	localErr := s.local.RemoveBlock(ctx, key)

	if err := s.primary.RemoveBlock(ctx, key); err != nil {
		s.markDegraded(err)
		return localErr
	}
	s.markHealthy()
	return nil
}

func (s *Storage) markDegraded(err error) {
	if s.degraded.CompareAndSwap(false, true) {
		s.metrics.Add(metricFallbackTransitions, 1, map[string]string{"state": "degraded"})
		s.logger.Warn("distributed storage unavailable, serving from local fallback",
			zap.Error(err))
	}
}

func (s *Storage) markHealthy() {
	if s.degraded.CompareAndSwap(true, false) {
		s.metrics.Add(metricFallbackTransitions, 1, map[string]string{"state": "recovered"})
		s.logger.Info("distributed storage recovered")
	}
}
