package services

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/JeanGrijp/api-guardian/internal/core/domain"
	"github.com/JeanGrijp/api-guardian/internal/core/ports"
)

// ReasonExcessiveRate é a razão instalada em bloqueios automáticos.
const ReasonExcessiveRate = "excessive request rate"

// QuarantineConfig parametriza a detecção de anomalia e a duração do bloqueio.
type QuarantineConfig struct {
	// Threshold de requisições dentro de Window que dispara a quarentena.
	Threshold     int
	Window        time.Duration
	BlockDuration time.Duration
}

func (c QuarantineConfig) validate() error {
	if c.Threshold <= 0 {
		return fmt.Errorf("quarantine threshold must be positive, got %d", c.Threshold)
	}
	if c.Window <= 0 || c.BlockDuration <= 0 {
		return fmt.Errorf("quarantine window and block duration must be positive")
	}
	return nil
}

// QuarantineManager acompanha a velocidade de requisições por identificador
// e coloca fontes anômalas em quarentena temporária.
type QuarantineManager struct {
	storage ports.Storage
	clock   clockwork.Clock
	logger  *zap.Logger
	cfg     QuarantineConfig
}

func NewQuarantineManager(storage ports.Storage, clock clockwork.Clock, logger *zap.Logger, cfg QuarantineConfig) (*QuarantineManager, error) {
	if storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &QuarantineManager{storage: storage, clock: clock, logger: logger, cfg: cfg}, nil
}

// CheckBlocked consulta o registro de bloqueio do identificador.
func (q *QuarantineManager) CheckBlocked(ctx context.Context, identifier string) (domain.BlockStatus, error) {
	record, err := q.storage.GetBlock(ctx, domain.BlockKey(identifier))
	if err != nil {
		return domain.BlockStatus{}, fmt.Errorf("check block %s: %w", identifier, err)
	}
	if record == nil || q.clock.Now().After(record.ExpiresAt) {
		return domain.BlockStatus{}, nil
	}
	return domain.BlockStatus{
		Blocked:   true,
		Reason:    record.Reason,
		BlockedAt: record.BlockedAt,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// RecordHit soma a requisição ao contador de velocidade do identificador e,
// se o threshold for ultrapassado, instala o bloqueio. Devolve se a fonte
// acabou de ser colocada em quarentena.
//
// The velocity counter lives for two windows so support tooling can still
// read the previous bucket when computing trends.
func (q *QuarantineManager) RecordHit(ctx context.Context, identifier string) (bool, error) {
	now := q.clock.Now()
	key := domain.SuspectKey(identifier, q.cfg.Window, now)

	count, err := q.storage.Increment(ctx, key, 2*q.cfg.Window)
	if err != nil {
		return false, fmt.Errorf("record hit %s: %w", identifier, err)
	}
	if count <= int64(q.cfg.Threshold) {
		return false, nil
	}

	if err := q.Block(ctx, identifier, ReasonExcessiveRate, q.cfg.BlockDuration); err != nil {
		return false, err
	}
	return true, nil
}

// Block instala um registro de bloqueio com razão e duração explícitas.
func (q *QuarantineManager) Block(ctx context.Context, identifier, reason string, duration time.Duration) error {
	if duration <= 0 {
		return fmt.Errorf("block duration must be positive, got %s", duration)
	}

	now := q.clock.Now()
	record := domain.BlockRecord{
		Identifier: identifier,
		Reason:     reason,
		BlockedAt:  now,
		ExpiresAt:  now.Add(duration),
	}

	if err := q.storage.SetBlock(ctx, domain.BlockKey(identifier), record, duration); err != nil {
		return fmt.Errorf("block %s: %w", identifier, err)
	}

	q.logger.Warn("identifier quarantined",
		zap.String("identifier", identifier),
		zap.String("reason", reason),
		zap.Time("expires_at", record.ExpiresAt))
	return nil
}

// Unblock remove o bloqueio do identificador, se existir.
func (q *QuarantineManager) Unblock(ctx context.Context, identifier string) error {
	if err := q.storage.RemoveBlock(ctx, domain.BlockKey(identifier)); err != nil {
		return fmt.Errorf("unblock %s: %w", identifier, err)
	}
	q.logger.Info("identifier released from quarantine", zap.String("identifier", identifier))
	return nil
}
