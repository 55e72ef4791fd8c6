package goSession

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gymkit/goSession/store"
)

func seedSession(t *testing.T, mem *store.MemoryStore, access, refresh string) {
	t.Helper()
	pair := store.Pair{AccessToken: access, RefreshToken: refresh}
	if err := mem.Write(context.Background(), pair, store.ScopeEphemeral); err != nil {
		t.Fatalf("seed store: %v", err)
	}
}

func TestExpiredTokenRefreshesBeforeSend(t *testing.T) {
	fresh := validToken(t, "user-1")

	backend := newAuthBackend(t)
	backend.refreshTokens = func() (string, string) {
		return fresh, "R2"
	}
	backend.dataStatus = func(r *http.Request) int {
		if r.Header.Get("Authorization") != "Bearer "+fresh {
			return http.StatusUnauthorized
		}
		return http.StatusOK
	}

	ctrl, mem := newTestController(t, backend, nil)
	seedSession(t, mem, expiredToken(t, "user-1"), "R1")

	resp, err := ctrl.Client().Get(context.Background(), backend.srv.URL+"/api/members")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if backend.refreshCalls.Load() != 1 {
		t.Fatalf("expected 1 refresh call, got %d", backend.refreshCalls.Load())
	}
	if backend.dataCalls.Load() != 1 {
		t.Fatalf("expired token must refresh before the first send, data calls=%d", backend.dataCalls.Load())
	}
}

func TestConcurrentExpiredRequestsShareOneRefresh(t *testing.T) {
	fresh := validToken(t, "user-1")

	backend := newAuthBackend(t)
	backend.refreshTokens = func() (string, string) {
		// Hold the refresh open long enough for every caller to join
		// the in-flight wave.
		time.Sleep(150 * time.Millisecond)
		return fresh, "R2"
	}
	backend.dataStatus = func(r *http.Request) int {
		if r.Header.Get("Authorization") != "Bearer "+fresh {
			return http.StatusUnauthorized
		}
		return http.StatusOK
	}

	ctrl, mem := newTestController(t, backend, nil)
	seedSession(t, mem, expiredToken(t, "user-1"), "R1")

	const requests = 3
	var wg sync.WaitGroup
	statuses := make([]int, requests)
	errs := make([]error, requests)

	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := ctrl.Client().Get(context.Background(), backend.srv.URL+"/api/members")
			if err != nil {
				errs[i] = err
				return
			}
			statuses[i] = resp.StatusCode
			_ = resp.Body.Close()
		}(i)
	}
	wg.Wait()

	for i := 0; i < requests; i++ {
		if errs[i] != nil {
			t.Fatalf("request %d failed: %v", i, errs[i])
		}
		if statuses[i] != http.StatusOK {
			t.Fatalf("request %d got status %d", i, statuses[i])
		}
	}
	if backend.refreshCalls.Load() != 1 {
		t.Fatalf("expected a single shared refresh, got %d", backend.refreshCalls.Load())
	}
}

func TestUnauthorizedTriggersOneReplay(t *testing.T) {
	stale := validToken(t, "user-1")
	fresh := validToken(t, "user-2")

	backend := newAuthBackend(t)
	backend.refreshTokens = func() (string, string) {
		return fresh, ""
	}
	backend.dataStatus = func(r *http.Request) int {
		// The stored token looks valid but the backend has revoked it.
		if r.Header.Get("Authorization") == "Bearer "+fresh {
			return http.StatusOK
		}
		return http.StatusUnauthorized
	}

	ctrl, mem := newTestController(t, backend, nil)
	seedSession(t, mem, stale, "R1")

	resp, err := ctrl.Client().Get(context.Background(), backend.srv.URL+"/api/members")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 after replay, got %d", resp.StatusCode)
	}
	if backend.dataCalls.Load() != 2 {
		t.Fatalf("expected original send plus one replay, got %d", backend.dataCalls.Load())
	}
	if backend.refreshCalls.Load() != 1 {
		t.Fatalf("expected 1 refresh, got %d", backend.refreshCalls.Load())
	}

	// The omitted rotated refresh token retains the previous one.
	pair, _, ok, _ := mem.Read(context.Background())
	if !ok || pair.RefreshToken != "R1" || pair.AccessToken != fresh {
		t.Fatalf("unexpected stored pair %+v ok=%v", pair, ok)
	}

	if got := ctrl.Metrics().Value(MetricRequestRetried); got != 1 {
		t.Fatalf("expected 1 retried request, got %d", got)
	}
}

func TestSecondUnauthorizedIsReturned(t *testing.T) {
	backend := newAuthBackend(t)
	backend.refreshTokens = func() (string, string) {
		return validToken(t, "user-1"), ""
	}
	backend.dataStatus = func(*http.Request) int {
		return http.StatusUnauthorized
	}

	ctrl, mem := newTestController(t, backend, nil)
	seedSession(t, mem, validToken(t, "user-1"), "R1")

	resp, err := ctrl.Client().Get(context.Background(), backend.srv.URL+"/api/members")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("second 401 must reach the caller, got %d", resp.StatusCode)
	}
	if backend.dataCalls.Load() != 2 {
		t.Fatalf("exactly one replay is allowed, data calls=%d", backend.dataCalls.Load())
	}
}

func TestUnauthorizedWithoutRefreshTokenIsReturned(t *testing.T) {
	backend := newAuthBackend(t)
	backend.dataStatus = func(*http.Request) int {
		return http.StatusUnauthorized
	}

	ctrl, mem := newTestController(t, backend, nil)
	seedSession(t, mem, validToken(t, "user-1"), "")

	resp, err := ctrl.Client().Get(context.Background(), backend.srv.URL+"/api/members")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected the original 401, got %d", resp.StatusCode)
	}
	if backend.dataCalls.Load() != 1 {
		t.Fatalf("no replay without a refresh token, data calls=%d", backend.dataCalls.Load())
	}
	if backend.refreshCalls.Load() != 0 {
		t.Fatalf("no refresh without a refresh token, refresh calls=%d", backend.refreshCalls.Load())
	}
}

func TestRefreshFailureAfterUnauthorizedPropagates(t *testing.T) {
	backend := newAuthBackend(t)
	backend.refreshStatus = 400
	backend.dataStatus = func(*http.Request) int {
		return http.StatusUnauthorized
	}

	ctrl, mem := newTestController(t, backend, nil)
	seedSession(t, mem, validToken(t, "user-1"), "R1")

	_, err := ctrl.Client().Get(context.Background(), backend.srv.URL+"/api/members")
	if !errors.Is(err, ErrRefreshFailed) {
		t.Fatalf("expected ErrRefreshFailed, got %v", err)
	}

	if _, _, ok, _ := mem.Read(context.Background()); ok {
		t.Fatal("failed refresh must clear stored tokens")
	}
	if ctrl.Session().Authenticated {
		t.Fatal("failed refresh must end the session")
	}
}

func TestBodiedRequestReplaysWithBody(t *testing.T) {
	fresh := validToken(t, "user-2")

	var mu sync.Mutex
	var bodies []string

	backend := newAuthBackend(t)
	backend.refreshTokens = func() (string, string) {
		return fresh, ""
	}
	backend.dataStatus = func(r *http.Request) int {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(data))
		mu.Unlock()
		if r.Header.Get("Authorization") == "Bearer "+fresh {
			return http.StatusOK
		}
		return http.StatusUnauthorized
	}

	ctrl, mem := newTestController(t, backend, nil)
	seedSession(t, mem, validToken(t, "user-1"), "R1")

	payload := `{"name":"new member"}`
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, backend.srv.URL+"/api/members", bytes.NewReader([]byte(payload)))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}

	resp, err := ctrl.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 after replay, got %d", resp.StatusCode)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(bodies) != 2 {
		t.Fatalf("expected 2 sends, got %d", len(bodies))
	}
	for i, body := range bodies {
		if body != payload {
			t.Fatalf("send %d body = %q, want %q", i, body, payload)
		}
	}
}

func TestUnauthenticatedRequestSendsNoBearer(t *testing.T) {
	var sawAuth string
	backend := newAuthBackend(t)
	backend.dataStatus = func(r *http.Request) int {
		sawAuth = r.Header.Get("Authorization")
		return http.StatusOK
	}

	ctrl, _ := newTestController(t, backend, nil)

	resp, err := ctrl.Client().Get(context.Background(), backend.srv.URL+"/api/public")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	_ = resp.Body.Close()

	if sawAuth != "" {
		t.Fatalf("expected no Authorization header, got %q", sawAuth)
	}
}

func TestStandardClientAttachesBearer(t *testing.T) {
	token := validToken(t, "user-1")

	var sawAuth string
	backend := newAuthBackend(t)
	backend.dataStatus = func(r *http.Request) int {
		sawAuth = r.Header.Get("Authorization")
		return http.StatusOK
	}

	ctrl, mem := newTestController(t, backend, nil)
	seedSession(t, mem, token, "R1")

	httpClient := ctrl.Client().StandardClient()
	resp, err := httpClient.Get(backend.srv.URL + "/api/members")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	_ = resp.Body.Close()

	if !strings.HasPrefix(sawAuth, "Bearer ") || sawAuth != "Bearer "+token {
		t.Fatalf("unexpected Authorization header %q", sawAuth)
	}
}
