// Package sketcherr defines the structured error type shared by every sketch
// package in this module. Every failure is reported as one of four kinds —
// Domain, Corruption, State, or Capacity — never as a bare sentinel return
// code. Error follows the same shape as the standard library's net.OpError
// and os.PathError: a single concrete type carrying an operation name, a
// kind, and a wrapped cause, so callers can branch on the Kind field or use
// errors.Is/errors.As against the package-level sentinels below.
package sketcherr

import "fmt"

// Kind classifies why a sketch operation failed.
type Kind uint8

const (
	// Domain marks an argument out of its valid range: negative counts,
	// invPow2 exponents outside [0, 1023], non-power-of-two capacities,
	// odd-sized even/odd selection ranges.
	Domain Kind = iota
	// Corruption marks a serialized input that fails a structural check:
	// too short, wrong family or serialization version, inconsistent flags.
	Corruption
	// State marks an operation invoked on an uninitialized/reset union, or
	// an internal invariant violation such as a purge that failed to bring
	// a hash map back under capacity.
	State
	// Capacity marks an output byte slice too small to hold a required
	// serialization.
	Capacity
)

func (k Kind) String() string {
	switch k {
	case Domain:
		return "domain"
	case Corruption:
		return "corruption"
	case State:
		return "state"
	case Capacity:
		return "capacity"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned by every sketch package.
type Error struct {
	Kind Kind
	Op   string // the operation that failed, e.g. "frequency.ItemsSketch.Update"
	Msg  string
	Err  error // optional wrapped cause
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is one of the Err* sentinels matching e.Kind,
// so callers can write errors.Is(err, sketcherr.ErrCorruption) without a
// type assertion.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrDomain:
		return e.Kind == Domain
	case ErrCorruption:
		return e.Kind == Corruption
	case ErrState:
		return e.Kind == State
	case ErrCapacity:
		return e.Kind == Capacity
	}
	return false
}

// Sentinels usable with errors.Is. They carry no message of their own;
// match against them, don't return them directly.
var (
	ErrDomain     = &Error{Kind: Domain, Msg: "domain"}
	ErrCorruption = &Error{Kind: Corruption, Msg: "corruption"}
	ErrState      = &Error{Kind: State, Msg: "state"}
	ErrCapacity   = &Error{Kind: Capacity, Msg: "capacity"}
)

// New builds an Error of the given kind.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap builds an Error of the given kind, wrapping a lower-level cause.
func Wrap(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}
