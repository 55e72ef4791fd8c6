package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "gosession"

// RedisStore keeps the durable scope in a Redis hash shared by every process
// of the same deployment and the ephemeral scope in process memory. Clearing
// the durable scope publishes a tombstone on a pub/sub channel so the other
// processes converge to logged-out without a direct message protocol.
//
// Each store instance carries a random origin ID and ignores its own
// tombstones; only external clears reach the watchers through pub/sub.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	origin string

	mu        sync.Mutex
	ephemeral Pair
	closed    bool

	watchers *watcherList
	sub      *redis.PubSub
	wg       sync.WaitGroup
}

// NewRedisStore creates a Redis-backed store under the given key prefix
// (defaulting to "gosession") and starts the clear-notification subscriber.
func NewRedisStore(rdb *redis.Client, prefix string) (*RedisStore, error) {
	if rdb == nil {
		return nil, errors.New("redis store requires a client")
	}
	if prefix == "" {
		prefix = defaultRedisPrefix
	}

	s := &RedisStore{
		rdb:      rdb,
		prefix:   prefix,
		origin:   uuid.NewString(),
		watchers: newWatcherList(),
	}

	s.sub = rdb.Subscribe(context.Background(), s.eventsChannel())
	if _, err := s.sub.Receive(context.Background()); err != nil {
		_ = s.sub.Close()
		return nil, fmt.Errorf("subscribe clear channel: %w", err)
	}

	s.wg.Add(1)
	go s.listen()

	return s, nil
}

func (s *RedisStore) durableKey() string {
	return s.prefix + ":durable"
}

func (s *RedisStore) eventsChannel() string {
	return s.prefix + ":events"
}

func (s *RedisStore) listen() {
	defer s.wg.Done()

	for msg := range s.sub.Channel() {
		origin, ok := strings.CutPrefix(msg.Payload, "cleared:")
		if !ok || origin == s.origin {
			continue
		}

		s.mu.Lock()
		s.ephemeral = Pair{}
		closed := s.closed
		s.mu.Unlock()

		if !closed {
			s.watchers.notify()
		}
	}
}

// Read returns the first pair holding an access token, durable scope first.
func (s *RedisStore) Read(ctx context.Context) (Pair, Scope, bool, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Pair{}, ScopeDurable, false, ErrClosed
	}
	ephemeral := s.ephemeral
	s.mu.Unlock()

	fields, err := s.rdb.HGetAll(ctx, s.durableKey()).Result()
	if err != nil {
		return Pair{}, ScopeDurable, false, fmt.Errorf("read durable pair: %w", err)
	}

	durable := Pair{
		AccessToken:  fields[KeyAccessToken],
		RefreshToken: fields[KeyRefreshToken],
	}
	if durable.AccessToken != "" {
		return durable, ScopeDurable, true, nil
	}
	if ephemeral.AccessToken != "" {
		return ephemeral, ScopeEphemeral, true, nil
	}
	return Pair{}, ScopeDurable, false, nil
}

// Write replaces the pair held by the given scope. Durable pairs are written
// with a single HSET so the two entries land atomically.
func (s *RedisStore) Write(ctx context.Context, pair Pair, scope Scope) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if scope == ScopeEphemeral {
		s.ephemeral = pair
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	err := s.rdb.HSet(ctx, s.durableKey(),
		KeyAccessToken, pair.AccessToken,
		KeyRefreshToken, pair.RefreshToken,
	).Err()
	if err != nil {
		return fmt.Errorf("write durable pair: %w", err)
	}
	return nil
}

// Clear removes the pair from both scopes. A removed durable pair is
// announced on the pub/sub channel; local watchers are notified directly.
func (s *RedisStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	hadEphemeral := s.ephemeral.AccessToken != ""
	s.ephemeral = Pair{}
	s.mu.Unlock()

	deleted, err := s.rdb.Del(ctx, s.durableKey()).Result()
	if err != nil {
		return fmt.Errorf("clear durable pair: %w", err)
	}

	if deleted > 0 {
		// Tombstone delivery is best-effort; the clear itself already
		// succeeded.
		if err := s.rdb.Publish(ctx, s.eventsChannel(), "cleared:"+s.origin).Err(); err != nil {
			log.Print("goSession: clear tombstone publish failed")
		}
	}
	if deleted > 0 || hadEphemeral {
		s.watchers.notify()
	}
	return nil
}

// Watch registers a clear handler. Handlers fire for local clears and for
// clears performed by other processes sharing the prefix.
func (s *RedisStore) Watch(handler ClearHandler) (cancel func()) {
	return s.watchers.add(handler)
}

// Close stops the subscriber and marks the store unusable. The durable pair
// stays in Redis; Close is a lifecycle operation, not a logout.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.sub.Close()
	s.wg.Wait()
	return err
}
