// Package logging is the leveled, structured diagnostic trail for
// compiler/VM internals during development and test runs (SPEC_FULL
// §2's ambient "Logging" row). It is deliberately standard-library
// only (`log/slog`): nothing in the example pack imports a third-party
// logging library for this concern, so there is no ecosystem choice to
// reach for instead — see DESIGN.md's justification entry.
package logging

import (
	"context"
	"log/slog"
	"os"
)

// Level mirrors slog's levels under names that read naturally at each
// call site in the compiler/VM (compile-time notices, VM dispatch
// tracing, diagnostics-store failures).
type Level = slog.Level

const (
	LevelDebug Level = slog.LevelDebug
	LevelInfo  Level = slog.LevelInfo
	LevelWarn  Level = slog.LevelWarn
	LevelError Level = slog.LevelError
)

// Logger wraps *slog.Logger with the package/component tag every
// caller in this engine attaches (lexer, parser, compiler, vm,
// module, diagnostics), so log lines are filterable by subsystem
// without every call site repeating a "component" key.
type Logger struct {
	base *slog.Logger
}

// New builds a Logger tagged with component, writing leveled,
// structured (key=value) text to standard error at minLevel and above.
func New(component string, minLevel Level) *Logger {
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: minLevel})
	return &Logger{base: slog.New(h).With("component", component)}
}

// Discard returns a Logger that drops everything, the default for
// contexts that never configured a sink (tests, library consumers who
// never call SetLogger).
func Discard() *Logger {
	h := slog.NewTextHandler(discardWriter{}, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return &Logger{base: slog.New(h)}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func (l *Logger) Debug(msg string, args ...any) { l.base.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.base.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.base.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.base.Error(msg, args...) }

// With returns a Logger that attaches args to every subsequent line —
// used to tag a single run with its instruction budget, source hash,
// or diagnostics run ID once instead of repeating it per call.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{base: l.base.With(args...)}
}

// Enabled reports whether a line at level would actually be emitted,
// letting a hot path (the VM's per-instruction trace, if ever enabled)
// skip building its log arguments entirely when logging is off.
func (l *Logger) Enabled(level Level) bool {
	return l.base.Enabled(context.Background(), level)
}
