// Package logging wraps log/slog with the level taxonomy and redaction
// discipline this project's collaborators expect: a LOG_LEVEL environment
// variable with a CRITICAL tier beyond slog's own, and a Redact helper for
// credential-shaped values. The handler New builds does not redact
// anything itself; callers pass values through Redact before logging them.
package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// LevelCritical extends slog's levels for parity with the five-level
// taxonomy (DEBUG|INFO|WARN|ERROR|CRITICAL) this system's configuration
// surface exposes.
const LevelCritical = slog.Level(12)

var levelNames = map[slog.Leveler]string{
	LevelCritical: "CRITICAL",
}

// New builds a slog.Logger writing text-formatted records to stderr at the
// level named by levelName (DEBUG|INFO|WARN|ERROR|CRITICAL, case-insensitive;
// unrecognized values fall back to INFO).
func New(levelName string) *slog.Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: ParseLevel(levelName),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok {
					if name, ok := levelNames[lvl]; ok {
						a.Value = slog.StringValue(name)
					}
				}
			}
			return a
		},
	})
	return slog.New(handler)
}

// ParseLevel maps the project's LOG_LEVEL values onto slog levels.
func ParseLevel(levelName string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(levelName)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	case "CRITICAL":
		return LevelCritical
	default:
		return slog.LevelInfo
	}
}

// WithJob returns logger with a job_id attribute added to every record it
// emits. Where the records go is decided by logger's own handler (the
// scheduler passes one that captures lines for the JobExecution row).
func WithJob(logger *slog.Logger, jobID string) *slog.Logger {
	return logger.With("job_id", jobID)
}

// redactKeys lists the attribute keys Redact replaces with a placeholder,
// mirroring httpclient's query-parameter redaction.
var redactKeys = map[string]bool{
	"api_key":     true,
	"apikey":      true,
	"token":       true,
	"anon_key":    true,
	"service_key": true,
	"password":    true,
}

// Redact returns v unchanged unless key names a credential-shaped field, in
// which case it returns a fixed placeholder.
func Redact(key string, v string) string {
	if redactKeys[strings.ToLower(key)] {
		return "REDACTED"
	}
	return v
}

// contextKey avoids collisions with other packages' context keys.
type contextKey struct{}

// Into stores logger on ctx for retrieval by From.
func Into(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// From retrieves the logger stored by Into, or slog.Default() if none was
// set.
func From(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(contextKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
