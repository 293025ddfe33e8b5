// Package app assembles the application: configuration, tracing, database,
// model provider, stores, the grounding pipeline, and the HTTP server.
// Setup builds everything in dependency order; Close releases in reverse.
package app

import (
	"context"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Nathanim1919/deepen-backend/api"
	"github.com/Nathanim1919/deepen-backend/internal/config"
	"github.com/Nathanim1919/deepen-backend/internal/conversation"
	"github.com/Nathanim1919/deepen-backend/internal/knowledge"
)

// App is the assembled application container.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	Pool     *pgxpool.Pool

	Knowledge     *knowledge.Store
	Conversations *conversation.Service
	Server        *api.Server

	otelShutdown func()
}

// Run starts the HTTP server and blocks until ctx is canceled or the
// listener fails.
func (a *App) Run(ctx context.Context) error {
	return a.Server.Run(ctx, a.Config.ListenAddr)
}

// Close releases resources acquired during Setup, in reverse order.
func (a *App) Close() error {
	if a.Pool != nil {
		a.Pool.Close()
		a.Logger.Debug("database pool closed")
	}
	if a.otelShutdown != nil {
		a.otelShutdown()
	}
	return nil
}
