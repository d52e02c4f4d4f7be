// Package jserrors implements the error taxonomy of spec.md §7: eight
// error kinds distinguished by what went wrong, not by a language-level
// constructor name, plus the Fatal sentinel for the three categories of
// engine failure §7 says are never catchable by script code.
//
// Grounded on spec.md §7 directly — the teacher has no error-taxonomy
// code of its own to generalize from (its errors are plain wrapped Go
// errors returned from filesystem/DB calls) — and on
// `_examples/original_source`'s `boa_engine::builtins::error` for how a
// backtrace-carrying error type is shaped when the distilled spec is
// silent on a field's representation.
package jserrors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is one of the eight error categories of spec.md §7.
type Kind uint8

const (
	Syntax Kind = iota
	Reference
	Type
	Range
	URI
	Eval
	Aggregate
	User
)

func (k Kind) String() string {
	switch k {
	case Syntax:
		return "SyntaxError"
	case Reference:
		return "ReferenceError"
	case Type:
		return "TypeError"
	case Range:
		return "RangeError"
	case URI:
		return "URIError"
	case Eval:
		return "EvalError"
	case Aggregate:
		return "AggregateError"
	case User:
		return "Error"
	default:
		return "Error"
	}
}

// Error is a language-level thrown error surfaced to the embedder: it
// carries the classifying Kind, a human-readable message, an optional
// cause (the "why" of §7's User-kind passthrough, or a wrapped Go
// error for internal failures), and the call-stack backtrace captured
// at the point of the throw.
type Error struct {
	Kind      Kind
	Message   string
	Cause     error
	Backtrace []string

	// Errors is populated only for Kind == Aggregate: the list of inner
	// errors Promise.any (and similar combinators) wraps, per §7's
	// "wraps a list of inner errors" text.
	Errors []*Error
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind.String(), e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// WithCause returns a copy of e with Cause set, the idiom for chaining
// an internal Go error (e.g. a loader I/O failure) behind the
// language-visible error it surfaces as.
func (e *Error) WithCause(cause error) *Error {
	c := *e
	c.Cause = cause
	return &c
}

// WithBacktrace returns a copy of e with its Backtrace set to frames,
// innermost call first — the shape internal/vm.VM.Backtrace produces.
func (e *Error) WithBacktrace(frames []string) *Error {
	c := *e
	c.Backtrace = frames
	return &c
}

// FormatBacktrace renders the backtrace the way a Node-style stack
// trace reads, one frame per line indented under the error's own
// message line.
func (e *Error) FormatBacktrace() string {
	if len(e.Backtrace) == 0 {
		return e.Error()
	}
	var b strings.Builder
	b.WriteString(e.Error())
	for _, frame := range e.Backtrace {
		b.WriteString("\n    at ")
		b.WriteString(frame)
	}
	return b.String()
}

// NewAggregate wraps a list of inner errors, per §7's Aggregate kind
// (used by Promise.any and similar combinators).
func NewAggregate(message string, errs []*Error) *Error {
	return &Error{Kind: Aggregate, Message: message, Errors: errs}
}

// Fatal marks one of §7's three non-catchable engine-failure
// categories: out-of-memory, instruction-budget exhaustion, or an
// internal invariant violation. esengine.Context.RunScript/RunModule
// propagate a Fatal as a plain Go error, never as a value script code
// could catch with try/catch — the VM's handler-table walk must not
// even attempt to route it to a handler.
type Fatal struct {
	Reason FatalReason
	Cause  error
}

type FatalReason uint8

const (
	FatalOutOfMemory FatalReason = iota
	FatalBudgetExceeded
	FatalInvariantViolation
)

func (r FatalReason) String() string {
	switch r {
	case FatalOutOfMemory:
		return "out of memory"
	case FatalBudgetExceeded:
		return "instruction budget exceeded"
	case FatalInvariantViolation:
		return "internal invariant violation"
	default:
		return "fatal engine error"
	}
}

func NewFatal(reason FatalReason, cause error) *Fatal {
	return &Fatal{Reason: reason, Cause: cause}
}

func (f *Fatal) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("esengine: %s: %v", f.Reason, f.Cause)
	}
	return fmt.Sprintf("esengine: %s", f.Reason)
}

func (f *Fatal) Unwrap() error { return f.Cause }

// IsFatal reports whether err is (or wraps) a Fatal, the check
// esengine.Context uses to decide whether a run's failure is a
// catchable script exception or an engine-level abort.
func IsFatal(err error) bool {
	var f *Fatal
	return errors.As(err, &f)
}
