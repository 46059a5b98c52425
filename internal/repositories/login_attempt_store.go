package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/oldrefery/summit-backend-sub001/internal/models"
)

// MemoryLoginAttemptStore keeps failed login counters in process memory.
// Stale entries are only removed when they are read or incremented.
type MemoryLoginAttemptStore struct {
	mu      sync.Mutex
	records map[string]models.LoginAttemptRecord
}

func NewMemoryLoginAttemptStore() *MemoryLoginAttemptStore {
	return &MemoryLoginAttemptStore{records: make(map[string]models.LoginAttemptRecord)}
}

// Get returns the record for key, or nil when none exists
func (s *MemoryLoginAttemptStore) Get(_ context.Context, key string) (*models.LoginAttemptRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// Increment adds one failed attempt. A missing or expired record is replaced
// by a fresh window starting at now.
func (s *MemoryLoginAttemptStore) Increment(_ context.Context, key string, now time.Time, window time.Duration) (*models.LoginAttemptRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok || rec.Expired(now, window) {
		rec = models.LoginAttemptRecord{Count: 0, WindowStart: now}
	}
	rec.Count++
	s.records[key] = rec
	return &rec, nil
}

func (s *MemoryLoginAttemptStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, key)
	return nil
}

// Len reports how many keys are currently tracked
func (s *MemoryLoginAttemptStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
