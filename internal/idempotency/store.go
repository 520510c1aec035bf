// Package idempotency guards against processing the same creation request
// twice. A key is acquired before processing starts, released when
// processing fails so the request can be retried, and marked done when it
// succeeds so the key stays held.
package idempotency

import (
	"context"
	"errors"
	"sync"
)

// ErrEmptyKey is returned when a blank key is passed to a Store.
var ErrEmptyKey = errors.New("idempotency: key is required")

// Store records which request keys are in flight or done.
type Store interface {
	// Acquire claims key. It returns false when key is already held.
	Acquire(ctx context.Context, key string) (bool, error)
	// Release frees key so a later Acquire succeeds.
	Release(ctx context.Context, key string) error
	// Done marks key as permanently processed.
	Done(ctx context.Context, key string) error
}

type state int

const (
	stateProcessing state = iota + 1
	stateDone
)

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu   sync.RWMutex
	keys map[string]state
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string]state)}
}

// Acquire implements Store.
func (s *MemoryStore) Acquire(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, held := s.keys[key]; held {
		return false, nil
	}
	s.keys[key] = stateProcessing
	return true, nil
}

// Release implements Store. Releasing a done key is a no-op.
func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.keys[key] == stateProcessing {
		delete(s.keys, key)
	}
	return nil
}

// Done implements Store.
func (s *MemoryStore) Done(_ context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.keys[key] = stateDone
	return nil
}

// IsDone reports whether key has been marked done.
func (s *MemoryStore) IsDone(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keys[key] == stateDone
}

var _ Store = (*MemoryStore)(nil)
