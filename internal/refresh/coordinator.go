package refresh

import (
	"context"
	"errors"
	"sync"
)

// Func performs one refresh attempt and returns the new access token. It is
// responsible for reading the refresh token, calling the backend, and
// updating storage; the Coordinator only schedules it.
type Func func(ctx context.Context) (string, error)

type outcome struct {
	token string
	err   error
}

// Coordinator guarantees at most one outstanding refresh call. Callers that
// arrive while a refresh is in flight are queued and settle with the leader's
// outcome, in arrival order, without issuing a second call.
type Coordinator struct {
	fn     Func
	onJoin func()

	mu         sync.Mutex
	refreshing bool
	waiters    []chan outcome
}

// NewCoordinator creates a Coordinator around the given refresh func.
func NewCoordinator(fn Func) (*Coordinator, error) {
	if fn == nil {
		return nil, errors.New("coordinator requires a refresh func")
	}
	return &Coordinator{fn: fn}, nil
}

// SetJoinHook installs a callback invoked each time a caller joins an
// in-flight refresh instead of leading one. Set before first use; the hook
// runs outside the coordinator's lock.
func (c *Coordinator) SetJoinHook(hook func()) {
	c.onJoin = hook
}

// Refresh returns a fresh access token, either by performing the refresh
// itself (leader) or by waiting on the refresh already in flight.
//
// The refresh runs detached from the leader's context: once started it is not
// cancellable, and the transport's own timeout bounds it. A caller whose
// context ends before the wave settles returns its context error; the settle
// is still delivered to its buffer and discarded.
func (c *Coordinator) Refresh(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.refreshing {
		ch := make(chan outcome, 1)
		c.waiters = append(c.waiters, ch)
		c.mu.Unlock()

		if c.onJoin != nil {
			c.onJoin()
		}

		select {
		case out := <-ch:
			return out.token, out.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	c.refreshing = true
	c.mu.Unlock()

	done := make(chan outcome, 1)
	go func() {
		token, err := c.fn(context.WithoutCancel(ctx))

		c.mu.Lock()
		waiters := c.waiters
		c.waiters = nil
		c.refreshing = false
		c.mu.Unlock()

		// Leader first, then waiters in arrival order. All channels are
		// buffered, so abandoned callers never block the fan-out.
		done <- outcome{token: token, err: err}
		for _, ch := range waiters {
			ch <- outcome{token: token, err: err}
		}
	}()

	select {
	case out := <-done:
		return out.token, out.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// pending reports the current queue depth. Test hook.
func (c *Coordinator) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}
