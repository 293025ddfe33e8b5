// Package cmd provides the deepen-backend CLI commands.
//
// Commands:
//   - serve: HTTP API server with SSE streaming
//   - migrate: apply pending database migrations and exit
//
// Signal handling and graceful shutdown are implemented via context
// cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
)

// Execute is the main entry point for the deepen-backend application.
func Execute() error {
	// Initialize logger once at entry point
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe()
	case "migrate":
		return runMigrate()
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("deepen-backend - personal knowledge backend")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  deepen-backend serve [addr]  Start HTTP API server (default: 127.0.0.1:3500)")
	fmt.Println("  deepen-backend migrate       Apply pending database migrations")
	fmt.Println("  deepen-backend --version     Show version information")
	fmt.Println("  deepen-backend --help        Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY       Gemini API key (default provider)")
	fmt.Println("  OPENAI_API_KEY       OpenAI API key (provider \"openai\")")
	fmt.Println("  DATABASE_URL         PostgreSQL connection URL")
	fmt.Println("  DEEPEN_PROVIDER      Model provider: gemini, openai, ollama")
	fmt.Println("  DEEPEN_LISTEN_ADDR   Server listen address")
	fmt.Println("  DEBUG                Enable debug logging")
}
