// Package memory disponibiliza a implementação local, em processo, do storage.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/JeanGrijp/api-guardian/internal/core/domain"
	"github.com/JeanGrijp/api-guardian/internal/core/ports"
)

// sweepBatchSize limita quantas entradas a varredura remove por aquisição do lock,
// para que incrementos concorrentes nunca fiquem presos atrás de uma varredura longa.
const sweepBatchSize = 128

const DefaultSweepInterval = 5 * time.Minute

type counterEntry struct {
	count     int64
	expiresAt time.Time
}

// Storage mantém contadores e bloqueios em mapas protegidos por mutex.
// Counts are per process: under fallback this trades global accuracy for
// availability, which is the intended degradation mode.
type Storage struct {
	clock clockwork.Clock

	mu       sync.Mutex
	counters map[string]*counterEntry
	blocks   map[string]domain.BlockRecord

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

var _ ports.Storage = (*Storage)(nil)

// New cria o storage e inicia a varredura periódica de entradas expiradas.
// Stop must be called to release the sweeper.
func New(clock clockwork.Clock, sweepInterval time.Duration) *Storage {
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	s := &Storage{
		clock:    clock,
		counters: make(map[string]*counterEntry),
		blocks:   make(map[string]domain.BlockRecord),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	ticker := clock.NewTicker(sweepInterval)
	go s.sweepLoop(ticker)
	return s
}

// Stop encerra a goroutine de varredura e aguarda sua saída.
func (s *Storage) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		<-s.doneCh
	})
}

// Increment soma 1 à chave, renovando sua expiração, e devolve o novo total.
// An expired entry behaves as absent and restarts at 1.
func (s *Storage) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.counters[key]
	if !ok || now.After(entry.expiresAt) {
		s.counters[key] = &counterEntry{count: 1, expiresAt: now.Add(ttl)}
		return 1, nil
	}
	entry.count++
	entry.expiresAt = now.Add(ttl)
	return entry.count, nil
}

// Count lê o valor corrente da chave; entradas expiradas contam como zero.
func (s *Storage) Count(_ context.Context, key string) (int64, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.counters[key]
	if !ok || now.After(entry.expiresAt) {
		return 0, nil
	}
	return entry.count, nil
}

// DeleteByPrefix remove todas as chaves de contador sob o prefixo informado.
func (s *Storage) DeleteByPrefix(_ context.Context, prefix string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for key := range s.counters {
		if strings.HasPrefix(key, prefix) {
			delete(s.counters, key)
			removed++
		}
	}
	return removed, nil
}

func (s *Storage) GetBlock(_ context.Context, key string) (*domain.BlockRecord, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.blocks[key]
	if !ok {
		return nil, nil
	}
	if now.After(record.ExpiresAt) {
		delete(s.blocks, key)
		return nil, nil
	}
	return &record, nil
}

func (s *Storage) SetBlock(_ context.Context, key string, record domain.BlockRecord, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ttl <= 0 {
		delete(s.blocks, key)
		return nil
	}
	s.blocks[key] = record
	return nil
}

func (s *Storage) RemoveBlock(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.blocks, key)
	return nil
}

func (s *Storage) sweepLoop(ticker clockwork.Ticker) {
	defer close(s.doneCh)

	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.Chan():
			s.sweepExpired()
		}
	}
}

// sweepExpired coleta as chaves expiradas e as remove em lotes,
// liberando o lock entre os lotes.
func (s *Storage) sweepExpired() {
	now := s.clock.Now()

	s.mu.Lock()
	var expired []string
	for key, entry := range s.counters {
		if now.After(entry.expiresAt) {
			expired = append(expired, key)
		}
	}
	var expiredBlocks []string
	for key, record := range s.blocks {
		if now.After(record.ExpiresAt) {
			expiredBlocks = append(expiredBlocks, key)
		}
	}
	s.mu.Unlock()

	for start := 0; start < len(expired); start += sweepBatchSize {
		end := min(start+sweepBatchSize, len(expired))
		s.mu.Lock()
		for _, key := range expired[start:end] {
			if entry, ok := s.counters[key]; ok && now.After(entry.expiresAt) {
				delete(s.counters, key)
			}
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	for _, key := range expiredBlocks {
		if record, ok := s.blocks[key]; ok && now.After(record.ExpiresAt) {
			delete(s.blocks, key)
		}
	}
	s.mu.Unlock()
}

// Len devolve o número de entradas de contador vivas; usado em testes e métricas.
func (s *Storage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}
