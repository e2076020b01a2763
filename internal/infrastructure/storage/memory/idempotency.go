package memory

import (
	"context"
	"sync"
	"time"

	"bakehouse/internal/core/apperror"
	"bakehouse/internal/infrastructure/idempotency"
)

var _ idempotency.Store = (*IdempotencyStore)(nil)

// IdempotencyStore keeps idempotency keys in memory. Keys live outside the
// Store transactions: a rolled back request still owns its key until released.
type IdempotencyStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	clock   func() time.Time
	records map[string]idempotency.Record
}

// NewIdempotencyStore creates a store whose completed keys expire after ttl.
func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = idempotency.DefaultTTL
	}
	return &IdempotencyStore{
		ttl:     ttl,
		clock:   func() time.Time { return time.Now().UTC() },
		records: make(map[string]idempotency.Record),
	}
}

// Acquire claims key, replays a finished request or reports a conflict.
func (s *IdempotencyStore) Acquire(_ context.Context, key, operation, requestHash string) (*idempotency.Replay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	rec, ok := s.records[key]
	if !ok || now.After(rec.ExpiresAt) {
		s.records[key] = idempotency.Record{
			Key:         key,
			Operation:   operation,
			Status:      idempotency.StatusPending,
			RequestHash: requestHash,
			CreatedAt:   now,
			UpdatedAt:   now,
			ExpiresAt:   now.Add(s.ttl),
		}
		return nil, nil
	}

	if rec.Operation != operation || rec.RequestHash != requestHash {
		return nil, apperror.NewIdempotencyMismatch(key).
			WithDetail("storedOperation", rec.Operation).
			WithDetail("requestOperation", operation)
	}

	if rec.Status == idempotency.StatusSuccess {
		return idempotency.ReplayOf(rec), nil
	}
	if now.Sub(rec.UpdatedAt) > idempotency.StalePending {
		rec.UpdatedAt = now
		s.records[key] = rec
		return nil, nil
	}
	return nil, apperror.NewIdempotencyConflict(key)
}

// Complete stores the response of key.
func (s *IdempotencyStore) Complete(_ context.Context, key string, replay idempotency.Replay) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return nil
	}
	rec.Status = idempotency.StatusSuccess
	rec.StatusCode = replay.StatusCode
	rec.ContentType = replay.ContentType
	rec.Response = append([]byte(nil), replay.Body...)
	rec.UpdatedAt = s.clock()
	s.records[key] = rec
	return nil
}

// Release forgets a pending key.
func (s *IdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.records[key]; ok && rec.Status == idempotency.StatusPending {
		delete(s.records, key)
	}
	return nil
}

// CleanupExpired removes expired keys.
func (s *IdempotencyStore) CleanupExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	var removed int64
	for key, rec := range s.records {
		if now.After(rec.ExpiresAt) {
			delete(s.records, key)
			removed++
		}
	}
	return removed, nil
}
