package goSession

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gymkit/goSession/internal/api"
	"github.com/gymkit/goSession/internal/feed"
	"github.com/gymkit/goSession/internal/refresh"
	"github.com/gymkit/goSession/jwt"
	"github.com/gymkit/goSession/store"
)

// Controller owns one session: its stored token pair, its authenticated
// state, and the single-flight refresh path every consumer shares.
//
// All methods are safe for concurrent use. State transitions are serialized
// under one mutex; network calls never run under it.
type Controller struct {
	cfg        Config
	store      store.Store
	ownsStore  bool
	codec      *jwt.Codec
	api        *api.Client
	coord      *refresh.Coordinator
	metrics    *Metrics
	dispatcher *eventDispatcher

	client      *AuthenticatedClient
	cancelWatch func()

	// suppressClear marks clears initiated by this controller so the
	// store's synchronous watch callback does not count them as external.
	suppressClear atomic.Bool

	mu      sync.Mutex
	session Session
	closed  bool

	now func() time.Time
}

// Init restores a session from stored tokens, refreshing an expired access
// token when a refresh token is available. A store with no usable tokens
// leaves the controller unauthenticated; that is not an error.
func (c *Controller) Init(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	pair, _, ok, err := c.store.Read(ctx)
	if err != nil {
		return fmt.Errorf("read token store: %w", err)
	}
	if !ok || !pair.Complete() {
		return nil
	}

	if c.codec.IsExpired(pair.AccessToken, c.clock()) {
		token, err := c.coord.Refresh(ctx)
		if err != nil {
			// Recovery failed; stored credentials are already
			// cleared by the refresh path.
			return nil
		}
		pair.AccessToken = token
	}

	claims, err := c.codec.Decode(pair.AccessToken)
	if err != nil {
		c.clearOwn(ctx)
		return nil
	}

	_, scope, _, _ := c.store.Read(ctx)
	c.setSession(Session{User: claims, Authenticated: true, Scope: scope})
	c.metrics.Inc(MetricSessionRestored)
	c.emit(ctx, feed.Event{
		EventType: EventRestored,
		UserID:    claims.SubjectID,
		Role:      claims.Role,
		Scope:     scope.String(),
		Success:   true,
	})
	return nil
}

// Login exchanges credentials for a token pair and establishes the session.
// Remember selects the durable scope; the choice is fixed for the session's
// lifetime and every later write lands in the same scope.
func (c *Controller) Login(ctx context.Context, creds Credentials) (Session, error) {
	if err := c.checkOpen(); err != nil {
		return Session{}, err
	}

	tokens, err := c.api.Login(ctx, creds.Identifier, creds.Password)
	if err != nil {
		c.metrics.Inc(MetricLoginFailure)
		c.emit(ctx, feed.Event{EventType: EventLoginFailed, Error: err.Error()})
		return Session{}, fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}

	claims, err := c.codec.Decode(tokens.AccessToken)
	if err != nil {
		c.metrics.Inc(MetricLoginFailure)
		return Session{}, fmt.Errorf("%w: issued access token undecodable: %w", ErrLoginFailed, err)
	}

	scope := store.ScopeEphemeral
	if creds.Remember {
		scope = store.ScopeDurable
	}

	pair := store.Pair{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}
	if err := c.store.Write(ctx, pair, scope); err != nil {
		return Session{}, fmt.Errorf("persist token pair: %w", err)
	}

	session := Session{User: claims, Authenticated: true, Scope: scope}
	c.setSession(session)
	c.metrics.Inc(MetricLoginSuccess)
	c.emit(ctx, feed.Event{
		EventType: EventLogin,
		UserID:    claims.SubjectID,
		Role:      claims.Role,
		Scope:     scope.String(),
		Success:   true,
	})
	return session, nil
}

// Logout clears stored tokens and the session. Idempotent; logging out of an
// unauthenticated controller is a no-op.
func (c *Controller) Logout(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	c.mu.Lock()
	wasAuthenticated := c.session.Authenticated
	user := c.session.User
	c.session = Session{}
	c.mu.Unlock()

	c.clearOwn(ctx)

	if wasAuthenticated {
		c.metrics.Inc(MetricLogout)
		event := feed.Event{EventType: EventLogout, Success: true}
		if user != nil {
			event.UserID = user.SubjectID
			event.Role = user.Role
		}
		c.emit(ctx, event)
	}
	return nil
}

// Session returns a snapshot of the current session state.
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Client returns the HTTP client that attaches this session's bearer token
// and recovers from 401 responses through the shared refresh path.
func (c *Controller) Client() *AuthenticatedClient {
	return c.client
}

// Token returns a currently valid access token, refreshing first when needed.
// Intended for consumers that authenticate outside plain HTTP, for example
// websocket handshakes. Returns [ErrSessionExpired] when no session exists or
// the stored token is expired beyond recovery.
func (c *Controller) Token(ctx context.Context) (string, error) {
	if err := c.checkOpen(); err != nil {
		return "", err
	}

	pair, _, ok, err := c.store.Read(ctx)
	if err != nil {
		return "", err
	}
	if !ok || pair.AccessToken == "" {
		return "", ErrSessionExpired
	}
	if !c.codec.IsExpired(pair.AccessToken, c.clock()) {
		return pair.AccessToken, nil
	}
	if pair.RefreshToken == "" {
		return "", ErrSessionExpired
	}

	token, err := c.coord.Refresh(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}
	return token, nil
}

// Metrics exposes the controller's counter set for export.
func (c *Controller) Metrics() *Metrics {
	return c.metrics
}

// MetricsSnapshot copies the current counter and histogram values.
func (c *Controller) MetricsSnapshot() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// EventsDropped reports lifecycle events discarded under backpressure.
func (c *Controller) EventsDropped() uint64 {
	return c.dispatcher.droppedCount()
}

// Close releases the store watch and drains the event dispatcher. The token
// store is closed only when the controller created it.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if c.cancelWatch != nil {
		c.cancelWatch()
	}
	c.dispatcher.close()

	if c.ownsStore {
		return c.store.Close()
	}
	return nil
}

/*
====================================
TOKEN SOURCE
====================================
*/

func (c *Controller) accessToken(ctx context.Context) (string, error) {
	pair, _, ok, err := c.store.Read(ctx)
	if err != nil {
		return "", err
	}
	if !ok || pair.AccessToken == "" {
		return "", nil
	}

	if !c.codec.IsExpired(pair.AccessToken, c.clock()) {
		return pair.AccessToken, nil
	}
	if pair.RefreshToken == "" {
		// No recovery path. Send the stale token and let the backend
		// answer; the caller sees the server's verdict, not ours.
		return pair.AccessToken, nil
	}

	return c.coord.Refresh(ctx)
}

func (c *Controller) forceRefresh(ctx context.Context) (string, error) {
	return c.coord.Refresh(ctx)
}

func (c *Controller) hasRefreshToken(ctx context.Context) bool {
	pair, _, ok, err := c.store.Read(ctx)
	return err == nil && ok && pair.RefreshToken != ""
}

/*
====================================
REFRESH AND CLEAR PATHS
====================================
*/

// doRefresh is the coordinator's refresh func. It runs at most once per wave.
func (c *Controller) doRefresh(ctx context.Context) (string, error) {
	pair, scope, ok, err := c.store.Read(ctx)
	if err != nil {
		return "", fmt.Errorf("read token store: %w", err)
	}
	if !ok || pair.RefreshToken == "" {
		return "", ErrNoRefreshToken
	}

	start := c.clock()
	tokens, err := c.api.Refresh(ctx, pair.RefreshToken)
	c.metrics.Observe(MetricRefreshLatency, c.clock().Sub(start))
	if err != nil {
		c.metrics.Inc(MetricRefreshFailure)
		c.emit(ctx, feed.Event{EventType: EventRefreshFailed, Error: err.Error()})
		c.expireSession(ctx)
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	claims, err := c.codec.Decode(tokens.AccessToken)
	if err != nil {
		c.metrics.Inc(MetricRefreshFailure)
		c.expireSession(ctx)
		return "", fmt.Errorf("%w: issued access token undecodable: %w", ErrRefreshFailed, err)
	}

	// Rotation is optional on the backend. Keep the old refresh token when
	// the response omits one; the pair is still replaced as a unit.
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = pair.RefreshToken
	}

	next := store.Pair{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}
	if err := c.store.Write(ctx, next, scope); err != nil {
		return "", fmt.Errorf("persist refreshed pair: %w", err)
	}

	c.setSession(Session{User: claims, Authenticated: true, Scope: scope})
	c.metrics.Inc(MetricRefreshSuccess)
	c.emit(ctx, feed.Event{
		EventType: EventRefresh,
		UserID:    claims.SubjectID,
		Role:      claims.Role,
		Scope:     scope.String(),
		Success:   true,
	})
	return tokens.AccessToken, nil
}

// expireSession ends the session after an unrecoverable refresh failure.
func (c *Controller) expireSession(ctx context.Context) {
	c.mu.Lock()
	c.session = Session{}
	c.mu.Unlock()
	c.clearOwn(ctx)
}

// clearOwn clears the store with the external-logout watch suppressed.
func (c *Controller) clearOwn(ctx context.Context) {
	c.suppressClear.Store(true)
	defer c.suppressClear.Store(false)

	if err := c.store.Clear(ctx); err != nil {
		log.Printf("goSession: token store clear failed: %v", err)
	}
}

// onStoreCleared runs when the store's tokens disappear. Clears this
// controller performed itself are suppressed; everything else is another
// process logging the user out.
func (c *Controller) onStoreCleared() {
	if c.suppressClear.Load() {
		return
	}

	c.mu.Lock()
	wasAuthenticated := c.session.Authenticated
	user := c.session.User
	c.session = Session{}
	c.mu.Unlock()

	if !wasAuthenticated {
		return
	}

	c.metrics.Inc(MetricExternalLogout)
	event := feed.Event{EventType: EventExternalLogout, Success: true}
	if user != nil {
		event.UserID = user.SubjectID
		event.Role = user.Role
	}
	c.emit(context.Background(), event)
}

func (c *Controller) setSession(s Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

func (c *Controller) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrControllerClosed
	}
	return nil
}

func (c *Controller) emit(ctx context.Context, event feed.Event) {
	c.dispatcher.emit(ctx, event)
}

func (c *Controller) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

// ensure the controller satisfies the client's token surface.
var _ tokenSource = (*Controller)(nil)
