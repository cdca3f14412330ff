package store

import (
	"context"
	"sync"

	"connection-pro/internal/domain"
)

// MemoryStore держит записи в памяти процесса.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
	failSet error
}

var _ domain.Store = (*MemoryStore)(nil)

// NewMemory создаёт пустое хранилище.
func NewMemory() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

// Get возвращает копию записи.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.records[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// Set сохраняет копию значения.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSet != nil {
		return s.failSet
	}
	s.records[key] = append([]byte(nil), value...)
	return nil
}

// FailWrites заставляет Set возвращать err. nil снимает ошибку.
func (s *MemoryStore) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSet = err
}
