// Package failure defines the typed errors returned by the connector. Each
// failure carries a Kind (transient, terminal, configuration, cancelled) and a
// Category that callers inspect instead of matching message text.
package failure

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind is the coarse outcome class of a failure
type Kind int

const (
	// KindTransient failures may succeed if retried (network, 5xx, quota)
	KindTransient Kind = iota
	// KindTerminal failures will not be retried again
	KindTerminal
	// KindConfiguration failures are raised at construction time
	KindConfiguration
	// KindCancelled failures come from a caller-initiated abort
	KindCancelled
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindTerminal:
		return "terminal"
	case KindConfiguration:
		return "configuration"
	case KindCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Category tells callers what went wrong, independent of the message text
type Category string

const (
	CategoryUnknown        Category = "unknown"
	CategoryAuth           Category = "auth"
	CategoryQuota          Category = "quota"
	CategoryRateLimit      Category = "rate_limit"
	CategoryNotFound       Category = "not_found"
	CategoryInvalidRequest Category = "invalid_request"
	CategoryNetwork        Category = "network"
	CategoryServer         Category = "server"
)

// Error is the typed failure returned by the connector
type Error struct {
	Kind     Kind
	Category Category
	Op       string // Operation name, empty until set by the executor
	Attempts int    // Attempts made before giving up (0 if none were made)
	Err      error
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Category != "" && e.Category != CategoryUnknown {
		b.WriteString(" ")
		b.WriteString(string(e.Category))
	}
	b.WriteString(" failure")
	if e.Attempts > 0 {
		fmt.Fprintf(&b, " after %d attempt(s)", e.Attempts)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying reason
func (e *Error) Unwrap() error {
	return e.Err
}

// Transient marks err as retriable
func Transient(cat Category, err error) error {
	return &Error{Kind: KindTransient, Category: cat, Err: err}
}

// Permanent marks err as non-retriable. The retry policy stops at the first
// permanent failure.
func Permanent(cat Category, err error) error {
	return &Error{Kind: KindTerminal, Category: cat, Err: err}
}

// Terminal wraps the last failure reason once the retry budget is spent.
// The category of err is carried over.
func Terminal(err error, attempts int) error {
	var fe *Error
	if errors.As(err, &fe) && fe.Kind == KindTerminal && fe.Attempts == 0 {
		// Permanent failure surfaced on the given attempt; annotate in place.
		return &Error{Kind: KindTerminal, Category: fe.Category, Op: fe.Op, Attempts: attempts, Err: fe.Err}
	}
	return &Error{Kind: KindTerminal, Category: CategoryOf(err), Attempts: attempts, Err: err}
}

// Cancelled wraps a cancellation cause, usually ctx.Err()
func Cancelled(err error) error {
	return &Error{Kind: KindCancelled, Category: CategoryUnknown, Err: err}
}

// Configf builds a configuration failure
func Configf(format string, args ...any) error {
	return &Error{Kind: KindConfiguration, Category: CategoryUnknown, Err: fmt.Errorf(format, args...)}
}

// WithOp returns a copy of err annotated with the operation name.
// Non-failure errors are wrapped as transient.
func WithOp(err error, op string) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if !errors.As(err, &fe) {
		return &Error{Kind: KindTransient, Category: CategoryUnknown, Op: op, Err: err}
	}
	cp := *fe
	cp.Op = op
	return &cp
}

// KindOf returns the kind of err. Errors that are not failures are transient
// unless they come from a context.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	return KindTransient
}

// CategoryOf returns the category of err, or CategoryUnknown
func CategoryOf(err error) Category {
	var fe *Error
	if errors.As(err, &fe) && fe.Category != "" {
		return fe.Category
	}
	return CategoryUnknown
}

// IsRetriable reports whether the retry policy may attempt again after err
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == KindTransient
}

// Is reports whether err is a failure of the given kind
func Is(err error, kind Kind) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == kind
}
