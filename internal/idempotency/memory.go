package idempotency

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/frahmantamala/payment-gateway/internal/core/datamodel/idempotency"
)

// MemoryStore keeps records for the process lifetime.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]idempotency.Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]idempotency.Record),
	}
}

func (s *MemoryStore) Reserve(_ context.Context, rec *idempotency.Record) (*idempotency.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.records[rec.Key]; ok {
		return &existing, false, nil
	}
	s.records[rec.Key] = *rec
	return nil, true, nil
}

func (s *MemoryStore) TakeOver(_ context.Context, staleToken string, rec *idempotency.Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[rec.Key]
	if !ok || existing.Token != staleToken || existing.State != idempotency.StateInProgress {
		return false, nil
	}
	rec.CreatedAt = existing.CreatedAt
	s.records[rec.Key] = *rec
	return true, nil
}

func (s *MemoryStore) Complete(_ context.Context, key, token string, response json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[key]
	if !ok || existing.Token != token {
		return ErrNotFound
	}
	existing.State = idempotency.StateCompleted
	existing.Response = append(json.RawMessage(nil), response...)
	existing.UpdatedAt = time.Now().UTC()
	s.records[key] = existing
	return nil
}

func (s *MemoryStore) Release(_ context.Context, key, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.records[key]; !ok || existing.Token != token {
		return ErrNotFound
	}
	delete(s.records, key)
	return nil
}

// Get returns a copy of the record under key.
func (s *MemoryStore) Get(_ context.Context, key string) (*idempotency.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &existing, nil
}
