package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/JeanGrijp/api-guardian/internal/core/domain"
)

var errStorageDown = errors.New("storage down")

// mockStorage implementa ports.Storage em memória para os testes do pacote.
type mockStorage struct {
	mu     sync.Mutex
	counts map[string]int64
	blocks map[string]domain.BlockRecord

	failIncrement bool
	failGetBlock  bool
}

func newMockStorage() *mockStorage {
	return &mockStorage{
		counts: make(map[string]int64),
		blocks: make(map[string]domain.BlockRecord),
	}
}

func (m *mockStorage) Increment(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failIncrement {
		return 0, errStorageDown
	}
	m.counts[key]++
	return m.counts[key], nil
}

func (m *mockStorage) Count(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key], nil
}

func (m *mockStorage) DeleteByPrefix(_ context.Context, prefix string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for key := range m.counts {
		if strings.HasPrefix(key, prefix) {
			delete(m.counts, key)
			removed++
		}
	}
	return removed, nil
}

func (m *mockStorage) GetBlock(_ context.Context, key string) (*domain.BlockRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGetBlock {
		return nil, errStorageDown
	}
	record, ok := m.blocks[key]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

func (m *mockStorage) SetBlock(_ context.Context, key string, record domain.BlockRecord, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ttl <= 0 {
		delete(m.blocks, key)
		return nil
	}
	m.blocks[key] = record
	return nil
}

func (m *mockStorage) RemoveBlock(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blocks, key)
	return nil
}

// incrementsFor conta quantas chaves de contador existem para o prefixo.
func (m *mockStorage) totalFor(prefix string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for key, count := range m.counts {
		if strings.HasPrefix(key, prefix) {
			total += count
		}
	}
	return total
}
