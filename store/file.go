package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists the durable scope as a JSON document on disk and keeps
// the ephemeral scope in process memory. The file is written with 0600
// permissions and replaced atomically via rename.
type FileStore struct {
	path string

	mu        sync.Mutex
	durable   Pair
	ephemeral Pair
	closed    bool

	watchers *watcherList
}

type filePayload struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// NewFileStore creates a store backed by the given file path. The parent
// directory is created when missing; an existing document is loaded into the
// durable scope.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("file store requires a path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	s := &FileStore{
		path:     path,
		watchers: newWatcherList(),
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read token file: %w", err)
	default:
		var payload filePayload
		// A corrupt document reads as an absent pair; the next Write
		// replaces it wholesale.
		if err := json.Unmarshal(data, &payload); err == nil {
			s.durable = Pair{AccessToken: payload.AccessToken, RefreshToken: payload.RefreshToken}
		}
	}

	return s, nil
}

// Read returns the first pair holding an access token, durable scope first.
func (s *FileStore) Read(_ context.Context) (Pair, Scope, bool, error) {
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

// Write replaces the pair held by the given scope. Durable writes hit disk
// before the in-memory copy is updated.
func (s *FileStore) Write(_ context.Context, pair Pair, scope Scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if scope == ScopeEphemeral {
		s.ephemeral = pair
		return nil
	}

	if err := s.persist(pair); err != nil {
		return err
	}
	s.durable = pair
	return nil
}

// Clear removes the pair from both scopes, deletes the on-disk document, and
// notifies watchers when an access token was present.
func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	removed := s.durable.AccessToken != "" || s.ephemeral.AccessToken != ""
	s.durable = Pair{}
	s.ephemeral = Pair{}
	err := os.Remove(s.path)
	s.mu.Unlock()

	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	if removed {
		s.watchers.notify()
	}
	return nil
}

// Watch registers a clear handler. FileStore notifications are process-local.
func (s *FileStore) Watch(handler ClearHandler) (cancel func()) {
	return s.watchers.add(handler)
}

// Close marks the store unusable without touching the on-disk document.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *FileStore) persist(pair Pair) error {
	data, err := json.Marshal(filePayload{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
	if err != nil {
		return fmt.Errorf("encode token file: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace token file: %w", err)
	}
	return nil
}
