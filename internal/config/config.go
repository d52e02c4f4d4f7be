// Package config loads the ambient settings a Context needs that
// spec.md's core components intentionally take as parameters rather
// than hardcoding: instruction/memory budgets (§5's bounded-run mode),
// backtrace depth (§6/§7), and the diagnostics store's DSN (§2's
// ambient "Diagnostics store" row).
//
// Grounded on the teacher's own env-var-driven `LoadConfig` shape (this
// package replaces the teacher's encryption/DB settings with this
// engine's own knobs, keeping the "env var with a sane non-zero
// default, optional `.env` overlay" pattern) and on the teacher's use
// of `joho/godotenv` elsewhere in the pack for `.env` loading.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds one Context's tunable limits and integration points.
type Config struct {
	// InstructionBudget bounds total dispatched VM instructions per
	// spec.md §5's bounded-run mode; zero means unbounded.
	InstructionBudget int64

	// MemoryBudget bounds the GC heap's total live payload size in
	// bytes (internal/gc.Heap.Alloc's underflow check); zero means
	// unbounded.
	MemoryBudget uint64

	// BacktraceDepth caps how many shadow-stack frames a thrown error
	// records (spec.md §6/§7's "bounded by a configurable depth").
	// Zero means unbounded.
	BacktraceDepth int

	// DiagnosticsDSN, when non-empty, is the gorm DSN internal/diagnostics
	// opens to persist run records. Empty disables persistence entirely.
	DiagnosticsDSN string
}

const (
	envInstructionBudget = "ESENGINE_INSTRUCTION_BUDGET"
	envMemoryBudget      = "ESENGINE_MEMORY_BUDGET"
	envBacktraceDepth    = "ESENGINE_BACKTRACE_DEPTH"
	envDiagnosticsDSN    = "ESENGINE_DIAGNOSTICS_DSN"
)

// defaultBacktraceDepth matches Node's default Error.stackTraceLimit
// (10), a reasonable bound for a development/debugging trail without
// being so deep it defeats the point of bounding it at all.
const defaultBacktraceDepth = 10

// Load reads Config from the process environment, first overlaying any
// `.env` file found in the working directory (godotenv.Load silently
// does nothing if no `.env` exists, so calling it unconditionally is
// safe in both dev and embedded/production use).
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		BacktraceDepth: defaultBacktraceDepth,
		DiagnosticsDSN: os.Getenv(envDiagnosticsDSN),
	}

	if v := os.Getenv(envInstructionBudget); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			cfg.InstructionBudget = n
		}
	}
	if v := os.Getenv(envMemoryBudget); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.MemoryBudget = n
		}
	}
	if v := os.Getenv(envBacktraceDepth); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.BacktraceDepth = n
		}
	}

	return cfg
}

// Default returns a Config with the package defaults and no
// environment overrides, for tests and embedders who want explicit
// control instead of process-env-driven configuration.
func Default() *Config {
	return &Config{BacktraceDepth: defaultBacktraceDepth}
}
