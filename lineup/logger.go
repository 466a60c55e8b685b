/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package lineup

import "log/slog"

// Logger is the structured logger used by the store. It is satisfied by
// *slog.Logger and zap's SugaredLogger-style adapters.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

var _ Logger = (*slog.Logger)(nil)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// NopLogger discards everything.
func NopLogger() Logger { return nopLogger{} }
