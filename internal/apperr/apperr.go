// Package apperr provides structured error types for switchyard.
// Errors carry the operation that failed and a Kind the CLI and engine use to
// decide whether a failure is recoverable (focus) or must be surfaced (injection).
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Op describes an operation, usually as "package.Function".
type Op string

// Kind categorizes the type of error.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindConflict
	KindInvalid
	KindLaunchPathNotFound
	KindSpawnFailed
	KindStopTimedOut
	KindFocusFailed
	KindInjectionFailed
	KindStoreCorrupted
	KindPlatformUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindConflict:
		return "conflict"
	case KindInvalid:
		return "invalid"
	case KindLaunchPathNotFound:
		return "launch path not found"
	case KindSpawnFailed:
		return "spawn failed"
	case KindStopTimedOut:
		return "stop timed out"
	case KindFocusFailed:
		return "focus failed"
	case KindInjectionFailed:
		return "injection failed"
	case KindStoreCorrupted:
		return "store corrupted"
	case KindPlatformUnsupported:
		return "platform unsupported"
	default:
		return "unknown error"
	}
}

// Error is the structured error type for switchyard.
type Error struct {
	Op      Op     // Operation that failed
	Kind    Kind   // Category of error
	Err     error  // Underlying error
	Context string // Additional context
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Context, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// E creates a new Error. Arguments can be:
// - Op: the operation name
// - Kind: the error kind
// - string: context message
// - error: the underlying error
func E(args ...any) error {
	e := &Error{}
	for _, arg := range args {
		switch a := arg.(type) {
		case Op:
			e.Op = a
		case Kind:
			e.Kind = a
		case string:
			e.Context = a
		case error:
			e.Err = a
		}
	}
	if e.Err == nil {
		e.Err = errors.New(e.Context)
		e.Context = ""
	}
	return e
}

// Is reports whether err is of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the Kind of an error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// NotFound reports a missing instance, account or process.
func NotFound(op Op, what, id string) error {
	return E(op, KindNotFound, fmt.Sprintf("%s %q not found", what, id))
}

// Conflict reports a uniqueness violation.
func Conflict(op Op, msg string) error {
	return E(op, KindConflict, msg)
}

// Invalid reports a malformed request.
func Invalid(op Op, msg string) error {
	return E(op, KindInvalid, msg)
}

// LaunchPathNotFound means no executable could be resolved for a target.
func LaunchPathNotFound(target string) error {
	return E(Op("lifecycle.Start"), KindLaunchPathNotFound,
		fmt.Sprintf("no executable found for %s; set launch_paths.%s in config.yaml", target, target))
}

// SpawnFailed wraps an exec failure.
func SpawnFailed(path string, err error) error {
	return E(Op("lifecycle.Start"), KindSpawnFailed, fmt.Sprintf("failed to spawn %s", path), err)
}

// StopTimedOut lists the pids still alive after every stop attempt.
func StopTimedOut(op Op, pids []int) error {
	parts := make([]string, len(pids))
	for i, pid := range pids {
		parts[i] = fmt.Sprint(pid)
	}
	return E(op, KindStopTimedOut, fmt.Sprintf("process still running: %s", strings.Join(parts, ", ")))
}

// FocusFailed means no main window could be activated.
func FocusFailed(pid int, err error) error {
	if err == nil {
		return E(Op("focus.Focus"), KindFocusFailed, fmt.Sprintf("no window for pid %d", pid))
	}
	return E(Op("focus.Focus"), KindFocusFailed, fmt.Sprintf("no window for pid %d", pid), err)
}

// InjectionFailed carries the step that failed.
func InjectionFailed(reason string, err error) error {
	if err == nil {
		return E(Op("inject.Inject"), KindInjectionFailed, reason)
	}
	return E(Op("inject.Inject"), KindInjectionFailed, reason, err)
}

// StoreCorrupted wraps a parse failure of a persisted file.
func StoreCorrupted(path string, err error) error {
	return E(Op("store.Load"), KindStoreCorrupted, fmt.Sprintf("cannot parse %s", path), err)
}

// PlatformUnsupported reports a capability missing on this OS or target.
func PlatformUnsupported(op Op, what string) error {
	return E(op, KindPlatformUnsupported, what)
}
