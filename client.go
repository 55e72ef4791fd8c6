package goSession

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// tokenSource is the controller surface the client needs. Split out so client
// tests can drive it without a full controller.
type tokenSource interface {
	// accessToken returns a send-ready access token, refreshing first when
	// the stored one is expired. Empty with nil error means no session.
	accessToken(ctx context.Context) (string, error)
	// forceRefresh obtains a new access token through the single-flight
	// coordinator, regardless of the stored token's apparent validity.
	forceRefresh(ctx context.Context) (string, error)
	// hasRefreshToken reports whether a recovery path exists at all.
	hasRefreshToken(ctx context.Context) bool
}

// AuthenticatedClient sends HTTP requests with the session's bearer token
// attached. On a 401 it refreshes once through the shared coordinator and
// replays the request exactly once; a second 401 is returned to the caller
// as-is.
//
// Requests with a body are replayable only when req.GetBody is set, which
// http.NewRequest does for the common body types.
type AuthenticatedClient struct {
	base    *http.Client
	source  tokenSource
	metrics *Metrics
}

func newAuthenticatedClient(base *http.Client, source tokenSource, metrics *Metrics) *AuthenticatedClient {
	if base == nil {
		base = http.DefaultClient
	}
	return &AuthenticatedClient{
		base:    base,
		source:  source,
		metrics: metrics,
	}
}

// Do sends the request with the current access token. Expired tokens are
// refreshed before the first send, so callers do not pay a doomed round trip.
func (c *AuthenticatedClient) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	token, err := c.source.accessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire access token: %w", err)
	}

	first := cloneForSend(req, token)
	resp, err := c.base.Do(first)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	c.metrics.Inc(MetricRequestUnauthorized)

	// Without a refresh token there is no recovery; hand the 401 back
	// untouched so the caller sees exactly what the server sent.
	if !c.source.hasRefreshToken(ctx) {
		return resp, nil
	}

	replay, err := rewindRequest(req)
	if err != nil {
		return resp, nil
	}
	drain(resp)

	refreshed, err := c.source.forceRefresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh after 401: %w", err)
	}

	c.metrics.Inc(MetricRequestRetried)

	setBearer(replay, refreshed)
	return c.base.Do(replay)
}

// Get issues an authenticated GET.
func (c *AuthenticatedClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// Transport exposes the client as an http.RoundTripper for code that composes
// transports.
func (c *AuthenticatedClient) Transport() http.RoundTripper {
	return &authRoundTripper{client: c}
}

// StandardClient wraps the authenticated client as a plain *http.Client so it
// can be handed to code that only knows net/http.
func (c *AuthenticatedClient) StandardClient() *http.Client {
	return &http.Client{
		Transport: &authRoundTripper{client: c},
	}
}

type authRoundTripper struct {
	client *AuthenticatedClient
}

func (rt *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return rt.client.Do(req)
}

// cloneForSend copies the request so the caller's value is never mutated and
// the original body position is preserved for a potential replay.
func cloneForSend(req *http.Request, token string) *http.Request {
	out := req.Clone(req.Context())
	setBearer(out, token)
	return out
}

// rewindRequest builds a second send of the same request. Bodied requests
// need GetBody; without it the first response stands.
func rewindRequest(req *http.Request) (*http.Request, error) {
	out := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return out, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("request body cannot be replayed")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	out.Body = body
	return out, nil
}

func setBearer(req *http.Request, token string) {
	if token == "" {
		req.Header.Del("Authorization")
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)
}

// drain discards a response we are about to replace so the underlying
// connection can be reused.
func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	_ = resp.Body.Close()
}
