package testutil

import "log/slog"

// DiscardLogger returns a *slog.Logger that discards all output. Prefer
// log.NewNop() in packages that already import internal/log; this exists
// for tests that want no dependency on it.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
