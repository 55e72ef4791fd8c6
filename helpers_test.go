package goSession

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/gymkit/goSession/store"
)

func signedToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()

	claims := jwtlib.MapClaims{
		"sub":   sub,
		"role":  "gym_admin",
		"gymId": "gym-1",
		"exp":   exp.Unix(),
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("token signing failed: %v", err)
	}
	return token
}

func validToken(t *testing.T, sub string) string {
	t.Helper()
	return signedToken(t, sub, time.Now().Add(time.Hour))
}

func expiredToken(t *testing.T, sub string) string {
	t.Helper()
	return signedToken(t, sub, time.Unix(1000, 0))
}

// authBackend is a fake gym backend with counted login, refresh, and data
// endpoints. dataStatus decides the data endpoint's verdict per request.
type authBackend struct {
	srv *httptest.Server

	loginCalls   atomic.Int64
	refreshCalls atomic.Int64
	dataCalls    atomic.Int64

	loginTokens   func() (string, string)
	refreshTokens func() (string, string)
	refreshStatus int
	dataStatus    func(r *http.Request) int
}

func newAuthBackend(t *testing.T) *authBackend {
	t.Helper()

	b := &authBackend{}
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		b.loginCalls.Add(1)
		if b.loginTokens == nil {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid credentials"}`))
			return
		}
		access, refresh := b.loginTokens()
		_ = json.NewEncoder(w).Encode(map[string]string{
			"accessToken":  access,
			"refreshToken": refresh,
		})
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		b.refreshCalls.Add(1)
		if b.refreshStatus != 0 {
			w.WriteHeader(b.refreshStatus)
			_, _ = w.Write([]byte(`{"error":"refresh rejected"}`))
			return
		}
		access, refresh := b.refreshTokens()
		resp := map[string]string{"accessToken": access}
		if refresh != "" {
			resp["refreshToken"] = refresh
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		b.dataCalls.Add(1)
		status := http.StatusOK
		if b.dataStatus != nil {
			status = b.dataStatus(r)
		}
		w.WriteHeader(status)
	})

	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func newTestController(t *testing.T, backend *authBackend, configure func(*Builder)) (*Controller, *store.MemoryStore) {
	t.Helper()

	mem := store.NewMemoryStore()
	builder := New().
		WithBaseURL(backend.srv.URL).
		WithHTTPClient(backend.srv.Client()).
		WithStore(mem).
		WithMetricsEnabled(true)
	if configure != nil {
		configure(builder)
	}

	ctrl, err := builder.Build()
	if err != nil {
		t.Fatalf("controller construction failed: %v", err)
	}
	t.Cleanup(func() { _ = ctrl.Close() })
	return ctrl, mem
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}
