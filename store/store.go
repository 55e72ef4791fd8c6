package store

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by operations on a store after Close.
var ErrClosed = errors.New("store closed")

// Storage entry names, shared by every implementation so a durable scope
// written by one process is readable by another.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
)

// Scope selects the durability class of a stored pair. It is chosen once at
// login (the "remember" flag) and fixed until the next login.
type Scope int

const (
	// ScopeDurable survives process end.
	ScopeDurable Scope = iota
	// ScopeEphemeral is lost with the process.
	ScopeEphemeral
)

func (s Scope) String() string {
	switch s {
	case ScopeDurable:
		return "durable"
	case ScopeEphemeral:
		return "ephemeral"
	default:
		return "unknown"
	}
}

// Pair is the access/refresh token pair. Pairs are opaque to the client and
// replaced as a unit: an access token from one refresh cycle is never
// combined with a refresh token from another.
type Pair struct {
	AccessToken  string
	RefreshToken string
}

// Complete reports whether both entries of the pair are present.
func (p Pair) Complete() bool {
	return p.AccessToken != "" && p.RefreshToken != ""
}

// ClearHandler is invoked after the access-token entry has been removed from
// the store. Handlers run outside store locks and must not call back into the
// store's Close.
type ClearHandler func()

// Store is the storage substrate for the session layer.
//
// Read checks the durable scope first, then the ephemeral scope, and returns
// the first pair holding an access token together with the scope that held
// it. Pairs are never merged across scopes. Write
// persists a pair atomically into one scope. Clear removes the pair from both
// scopes unconditionally and notifies watchers when an access token was
// actually removed. Watch registers a clear notification handler and returns
// its cancel func.
type Store interface {
	Read(ctx context.Context) (Pair, Scope, bool, error)
	Write(ctx context.Context, pair Pair, scope Scope) error
	Clear(ctx context.Context) error
	Watch(handler ClearHandler) (cancel func())
	Close() error
}

// watcherList is the shared clear-notification fan-out. Handlers are invoked
// synchronously, in registration order, outside any store lock.
type watcherList struct {
	mu       sync.Mutex
	nextID   int
	handlers map[int]ClearHandler
	order    []int
}

func newWatcherList() *watcherList {
	return &watcherList{handlers: map[int]ClearHandler{}}
}

func (w *watcherList) add(handler ClearHandler) (cancel func()) {
	if handler == nil {
		return func() {}
	}

	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.handlers[id] = handler
	w.order = append(w.order, id)
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.handlers, id)
	}
}

func (w *watcherList) notify() {
	w.mu.Lock()
	handlers := make([]ClearHandler, 0, len(w.handlers))
	for _, id := range w.order {
		if h, ok := w.handlers[id]; ok {
			handlers = append(handlers, h)
		}
	}
	w.mu.Unlock()

	for _, h := range handlers {
		h()
	}
}
