// Package redis disponibiliza a implementação distribuída do storage baseada em Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/JeanGrijp/api-guardian/internal/core/domain"
	"github.com/JeanGrijp/api-guardian/internal/core/ports"
)

const scanBatchSize = 128

type Storage struct {
	client *redis.Client
}

var _ ports.Storage = (*Storage)(nil)

type Config struct {
	Addr     string
	Password string
	DB       int
}

func New(cfg Config) (*Storage, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Storage{client: client}, nil
}

func (s *Storage) Close() error {
	return s.client.Close()
}

// Increment soma 1 à chave e instala/renova o TTL em uma única transação.
// The pipeline keeps INCR and PEXPIRE atomic so a freshly created key can
// never be left without an expiry.
func (s *Storage) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := s.client.TxPipeline()
	counter := pipe.Incr(ctx, key)
	pipe.PExpire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return counter.Val(), nil
}

// Count lê o valor corrente da chave; chave ausente conta como zero.
func (s *Storage) Count(ctx context.Context, key string) (int64, error) {
	value, err := s.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return value, nil
}

// DeleteByPrefix varre e remove todas as chaves sob o prefixo informado.
func (s *Storage) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	var cursor uint64
	var removed int64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, prefix+"*", scanBatchSize).Result()
		if err != nil {
			return removed, err
		}
		if len(keys) > 0 {
			deleted, err := s.client.Del(ctx, keys...).Result()
			removed += deleted
			if err != nil {
				return removed, err
			}
		}
		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}

func (s *Storage) GetBlock(ctx context.Context, key string) (*domain.BlockRecord, error) {
	payload, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var record domain.BlockRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("decode block record %s: %w", key, err)
	}
	return &record, nil
}

func (s *Storage) SetBlock(ctx context.Context, key string, record domain.BlockRecord, ttl time.Duration) error {
	if ttl <= 0 {
		return s.client.Del(ctx, key).Err()
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode block record %s: %w", key, err)
	}
	return s.client.Set(ctx, key, payload, ttl).Err()
}

func (s *Storage) RemoveBlock(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
