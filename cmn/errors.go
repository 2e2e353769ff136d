// Package cmn holds the ambient, cross-cutting pieces every other
// package depends on: configuration and the error taxonomy of spec §7.
package cmn

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an Error per the four-class taxonomy: configuration
// errors, protocol violations, I/O errors, and internal invariants.
type Kind int

const (
	KindConfig Kind = iota
	KindProtocol
	KindIO
	KindInvariant
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "configuration"
	case KindProtocol:
		return "protocol"
	case KindIO:
		return "io"
	case KindInvariant:
		return "invariant"
	default:
		return "unknown"
	}
}

// Error is the runtime's single error type; Kind determines how a caller
// is expected to react (panic-and-stop vs. log-and-drop).
type Error struct {
	Kind  Kind
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

func newErr(k Kind, msg string, cause error) *Error {
	if cause != nil {
		cause = errors.WithStack(cause)
	}
	return &Error{Kind: k, Msg: msg, Cause: cause}
}

// NewErrConfig reports a fatal misconfiguration (missing reduce op,
// unsupported dims, unknown address).
func NewErrConfig(msg string, cause error) *Error { return newErr(KindConfig, msg, cause) }

// NewErrProtocol reports a protocol violation (unparseable frame,
// unexpected data without credit) — logged and the frame dropped unless
// it corrupts state.
func NewErrProtocol(msg string, cause error) *Error { return newErr(KindProtocol, msg, cause) }

// NewErrIO reports a stream read/write failure; the peer fd is closed
// and marked disconnected by the caller.
func NewErrIO(msg string, cause error) *Error { return newErr(KindIO, msg, cause) }

// NewErrInvariant reports a fatal internal-invariant violation (slice
// size mismatch, pack cursor overrun, fan-in exceeded).
func NewErrInvariant(msg string) *Error { return newErr(KindInvariant, msg, nil) }

// NewErrAborted wraps an abort cause, preserving the original error.
func NewErrAborted(name, reason string, cause error) *Error {
	return newErr(KindInvariant, fmt.Sprintf("%s: %s", name, reason), cause)
}

// NewErrUnsupported marks a feature as intentionally unimplemented (the
// Dynamic transport's key-value sync path, see spec §9 Open Questions)
// rather than letting a caller silently depend on a partial stub.
func NewErrUnsupported(feature string) *Error {
	return newErr(KindConfig, "unsupported: "+feature, nil)
}

// NewErrTimeout reports a quiescence/keepalive timeout.
func NewErrTimeout(msg string) *Error { return newErr(KindIO, "timeout: "+msg, nil) }

// IsKind reports whether err (or any error it wraps) carries the given Kind.
func IsKind(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}
