package prover

import (
	"errors"
	"fmt"
)

// Standard errors returned by backends.
var (
	// ErrNotSupported indicates the operation has no implementation on
	// this transport (for example Interrupt over coq-lsp).
	ErrNotSupported = errors.New("operation not supported by this backend")

	// ErrNoStatements indicates a cancel on an empty document. This is a
	// caller bug, not a recoverable runtime condition.
	ErrNoStatements = errors.New("no statements to cancel")

	// ErrConnClosed indicates the transport to the prover closed while
	// requests were outstanding. The session is dead; only Close remains
	// valid.
	ErrConnClosed = errors.New("prover connection closed")

	// ErrInitFailed indicates the startup handshake did not match the
	// expected message sequence. The session must not be used or retried.
	ErrInitFailed = errors.New("prover initialization failed")

	// ErrClosed indicates an operation on a backend after Close.
	ErrClosed = errors.New("backend closed")
)

// CoqExn is a semantic error the prover reported for a statement: a known
// bad-reference or bad-path failure. The offending statement and everything
// after it has already been discarded locally; the caller may resubmit a
// corrected statement.
type CoqExn struct {
	Message string
}

// Error implements the error interface.
func (e *CoqExn) Error() string {
	return fmt.Sprintf("coq error: %s", e.Message)
}

// UnrecognizedError is an error-severity diagnostic whose message matched no
// known pattern. The same rollback as CoqExn applies, but the caller should
// treat it as possibly unhandled prover behavior.
type UnrecognizedError struct {
	Message string
}

// Error implements the error interface.
func (e *UnrecognizedError) Error() string {
	return fmt.Sprintf("unrecognized coq error: %s", e.Message)
}

// InitError is a fatal handshake failure: an expected startup message did
// not arrive or did not match.
type InitError struct {
	Stage    string
	Expected string
	Got      string
	Err      error
}

// Error implements the error interface.
func (e *InitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("init %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("init %s: expected %q, got %q", e.Stage, e.Expected, e.Got)
}

// Unwrap returns ErrInitFailed so callers can match with errors.Is, plus the
// underlying cause when there is one.
func (e *InitError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInitFailed, e.Err}
	}
	return []error{ErrInitFailed}
}
