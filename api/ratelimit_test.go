package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/Nathanim1919/deepen-backend/internal/log"
)

func TestUserRateLimiter_ExhaustsBurst(t *testing.T) {
	rl := newUserRateLimiter(1, 3)
	userID := uuid.New()

	for i := range 3 {
		if !rl.allow(userID) {
			t.Fatalf("request %d denied within burst", i+1)
		}
	}
	if rl.allow(userID) {
		t.Error("request beyond burst allowed")
	}
}

func TestUserRateLimiter_UsersAreIndependent(t *testing.T) {
	rl := newUserRateLimiter(1, 1)
	first, second := uuid.New(), uuid.New()

	if !rl.allow(first) {
		t.Fatal("first user's first request denied")
	}
	if rl.allow(first) {
		t.Error("first user's second request allowed past burst")
	}
	if !rl.allow(second) {
		t.Error("second user throttled by first user's bucket")
	}
}

func TestRateLimitMiddleware_Returns429(t *testing.T) {
	userID := uuid.New()
	// A tiny limiter so the test does not need dozens of requests.
	srvLimiter := newUserRateLimiter(0.001, 2)

	handler := chain(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
		authMiddleware(HeaderAuth{}, log.NewNop()),
		rateLimitMiddleware(srvLimiter, log.NewNop()),
	)

	var last *httptest.ResponseRecorder
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/api/captures", nil)
		req.Header.Set("X-User-ID", userID.String())
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, req)
	}

	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want %d", last.Code, http.StatusTooManyRequests)
	}
	if got := last.Header().Get("Retry-After"); got != "1" {
		t.Errorf("Retry-After = %q, want %q", got, "1")
	}
}

func TestRateLimitMiddleware_SkipsUnauthenticatedPaths(t *testing.T) {
	srvLimiter := newUserRateLimiter(0.001, 1)

	handler := chain(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
		rateLimitMiddleware(srvLimiter, log.NewNop()),
	)

	// No user in context: every request passes.
	for i := range 5 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}
}
