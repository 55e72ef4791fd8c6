package store

import (
	"context"
	"sync"
)

// MemoryStore keeps both scopes in process memory. The durable scope is
// durable in name only; the store exists for tests and for consumers that
// never want credentials to touch disk.
type MemoryStore struct {
	mu        sync.Mutex
	durable   Pair
	ephemeral Pair
	closed    bool

	watchers *watcherList
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{watchers: newWatcherList()}
}

// Read returns the first pair holding an access token, durable scope first.
// A pair without a refresh token is still returned; whether it is usable is
// the caller's judgment.
func (s *MemoryStore) Read(_ context.Context) (Pair, Scope, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Pair{}, ScopeDurable, false, ErrClosed
	}
	if s.durable.AccessToken != "" {
		return s.durable, ScopeDurable, true, nil
	}
	if s.ephemeral.AccessToken != "" {
		return s.ephemeral, ScopeEphemeral, true, nil
	}
	return Pair{}, ScopeDurable, false, nil
}

// Write replaces the pair held by the given scope.
func (s *MemoryStore) Write(_ context.Context, pair Pair, scope Scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if scope == ScopeEphemeral {
		s.ephemeral = pair
	} else {
		s.durable = pair
	}
	return nil
}

// Clear removes the pair from both scopes and notifies watchers when an
// access token was present.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	removed := s.durable.AccessToken != "" || s.ephemeral.AccessToken != ""
	s.durable = Pair{}
	s.ephemeral = Pair{}
	s.mu.Unlock()

	if removed {
		s.watchers.notify()
	}
	return nil
}

// Watch registers a clear handler.
func (s *MemoryStore) Watch(handler ClearHandler) (cancel func()) {
	return s.watchers.add(handler)
}

// Close marks the store unusable. Clearing is intentionally not implied:
// Close is a lifecycle operation, not a logout.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
