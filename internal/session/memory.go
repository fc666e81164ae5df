package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore holds sessions in-process with lazy expiry. Used by tests and
// single-node dev runs without redis.
type MemoryStore struct {
	mu sync.RWMutex
	m  map[string]memEntry
}

type memEntry struct {
	sess Session
	exp  time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]memEntry)}
}

func (s *MemoryStore) Create(_ context.Context, sess Session, ttl time.Duration) error {
	s.mu.Lock()
	s.m[sess.ID] = memEntry{sess: sess, exp: time.Now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Session, error) {
	now := time.Now()

	s.mu.RLock()
	e, ok := s.m[id]
	s.mu.RUnlock()

	if !ok {
		return Session{}, ErrNotFound
	}

	if now.After(e.exp) {
		// expired: drop lazily
		s.mu.Lock()
		delete(s.m, id)
		s.mu.Unlock()
		return Session{}, ErrNotFound
	}

	return e.sess, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.m, id)
	s.mu.Unlock()
	return nil
}
