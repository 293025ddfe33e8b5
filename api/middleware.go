package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Authenticator resolves a request to the owning user. Implementations are
// the trust boundary of the API: every handler scopes storage access by the
// identifier returned here.
type Authenticator interface {
	Authenticate(r *http.Request) (uuid.UUID, error)
}

// ErrUnauthenticated is returned by authenticators when no valid identity
// is present on the request.
var ErrUnauthenticated = errors.New("unauthenticated")

// HeaderAuth trusts an upstream gateway to authenticate requests and
// forward the resolved user as a header. It must only be deployed behind
// such a gateway; the header is not verifiable here.
type HeaderAuth struct {
	// Header is the header carrying the user identifier.
	// Empty means "X-User-ID".
	Header string
}

// Authenticate implements Authenticator.
func (a HeaderAuth) Authenticate(r *http.Request) (uuid.UUID, error) {
	header := a.Header
	if header == "" {
		header = "X-User-ID"
	}
	raw := strings.TrimSpace(r.Header.Get(header))
	if raw == "" {
		return uuid.Nil, ErrUnauthenticated
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, ErrUnauthenticated
	}
	return id, nil
}

type userIDCtxKey struct{}

// userIDFromContext retrieves the authenticated user from the request
// context. The auth middleware guarantees presence on /api/ routes.
func userIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDCtxKey{}).(uuid.UUID)
	return id, ok
}

// authMiddleware rejects unauthenticated /api/ requests with 401 before
// any handler work. Health probes pass through.
func authMiddleware(auth Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				next.ServeHTTP(w, r)
				return
			}

			userID, err := auth.Authenticate(r)
			if err != nil {
				logger.Debug("rejected unauthenticated request", "path", r.URL.Path)
				writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
				return
			}

			ctx := context.WithValue(r.Context(), userIDCtxKey{}, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// loggingMiddleware logs every request with method, path, and duration.
func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"duration", time.Since(start))
		})
	}
}

// recoveryMiddleware recovers from handler panics and returns 500.
func recoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered", "error", err, "path", r.URL.Path)
					http.Error(w, "internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// chain applies middleware in order: first middleware wraps outermost.
func chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
