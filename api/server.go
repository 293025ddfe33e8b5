// Package api provides the HTTP surface of the Deepen backend.
//
// Two conversational shapes share one pipeline: the session-flavored
// /api/chat + /api/sessions endpoints (scope as a selection policy) and the
// conversation-flavored /api/conversations endpoints (scope as a static
// context descriptor). Both are owner-scoped: every handler resolves the
// requesting user through the Authenticator before touching storage.
//
// File structure:
//   - server.go: server setup and lifecycle
//   - middleware.go: recovery, logging, authentication
//   - ratelimit.go: per-user token bucket
//   - pipeline.go: shared grounded-turn pipeline (aggregate, prompt, drive)
//   - chat.go, sessions.go: session-flavored endpoints
//   - conversations.go: conversation-flavored endpoints
//   - captures.go, collections.go: content CRUD
//   - health.go: liveness and readiness probes
//   - sse.go: server-sent event writer
//   - response.go: JSON helpers and error classification
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:3500"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout bounds request-header reads (Slowloris guard).
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// IdleTimeout is the keep-alive idle bound.
	IdleTimeout = 120 * time.Second

	// DefaultChatTimeout bounds non-streaming conversational requests.
	DefaultChatTimeout = 60 * time.Second
)

// ServerConfig contains the dependencies for the API server.
type ServerConfig struct {
	Logger        *slog.Logger
	Auth          Authenticator         // Required
	Pool          *pgxpool.Pool         // Optional: nil disables readiness DB ping
	Captures      CaptureStore          // Required
	Indexer       Indexer               // Optional: nil disables retrieval indexing on create
	Conversations ConversationService   // Required
	Pipeline      *Pipeline             // Required
	ChatTimeout   time.Duration         // 0 = DefaultChatTimeout
	RateLimit     float64               // Requests/sec per user; 0 = DefaultRateLimit
	RateBurst     int                   // Burst per user; 0 = DefaultRateBurst
}

// Server is the HTTP server for the Deepen REST API.
type Server struct {
	mux     *http.ServeMux
	logger  *slog.Logger
	auth    Authenticator
	limiter *userRateLimiter
}

// NewServer creates a server with all routes registered.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Auth == nil {
		return nil, errors.New("authenticator is required")
	}
	if cfg.Captures == nil {
		return nil, errors.New("capture store is required")
	}
	if cfg.Conversations == nil {
		return nil, errors.New("conversation service is required")
	}
	if cfg.Pipeline == nil {
		return nil, errors.New("turn pipeline is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.ChatTimeout
	if timeout <= 0 {
		timeout = DefaultChatTimeout
	}
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = DefaultRateBurst
	}

	mux := http.NewServeMux()

	health := NewHealthHandler(cfg.Pool, logger)
	health.RegisterRoutes(mux)

	chat := &ChatHandler{
		conversations: cfg.Conversations,
		pipeline:      cfg.Pipeline,
		timeout:       timeout,
		logger:        logger,
	}
	chat.RegisterRoutes(mux)

	sessions := &SessionHandler{conversations: cfg.Conversations, logger: logger}
	sessions.RegisterRoutes(mux)

	conversations := &ConversationHandler{
		conversations: cfg.Conversations,
		pipeline:      cfg.Pipeline,
		timeout:       timeout,
		logger:        logger,
	}
	conversations.RegisterRoutes(mux)

	captures := &CaptureHandler{store: cfg.Captures, indexer: cfg.Indexer, logger: logger}
	captures.RegisterRoutes(mux)

	collections := &CollectionHandler{store: cfg.Captures, logger: logger}
	collections.RegisterRoutes(mux)

	return &Server{
		mux:     mux,
		logger:  logger,
		auth:    cfg.Auth,
		limiter: newUserRateLimiter(limit, burst),
	}, nil
}

// Handler returns the server's handler with middleware applied.
// Middleware order: recovery, logging, auth, rate limit, routes. Health
// probes are exempt from authentication and rate limiting.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		loggingMiddleware(s.logger),
		authMiddleware(s.auth, s.logger),
		rateLimitMiddleware(s.limiter, s.logger),
	)
}

// Run starts the HTTP server and blocks until ctx is canceled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		IdleTimeout:       IdleTimeout,
		// No WriteTimeout: SSE responses stay open for the lifetime
		// of a generation stream.
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
