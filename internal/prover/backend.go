package prover

import "context"

// Backend is the abstract contract an external controller drives a Coq
// session through. Implementations hide the wire protocol entirely; the
// caller thinks in statements and proof contexts.
//
// Backends are not safe for concurrent use. All methods must be called from
// a single goroutine; the implementation owns any reader goroutines it needs
// behind the scenes.
type Backend interface {
	// AddStatement appends a statement, pushes the updated document to the
	// prover, and refreshes the proof context. If the prover rejects the
	// statement the local document has already been rolled back to just
	// before the offender when the error is returned.
	AddStatement(ctx context.Context, stmt string) error

	// AddStatementNoUpdate appends a statement locally without contacting
	// the prover. Used to batch several statements before one state query.
	AddStatementNoUpdate(stmt string) error

	// CancelLastStatement removes the most recently added statement.
	// Returns ErrNoStatements when the document is empty.
	CancelLastStatement() error

	// GetProofContext returns the proof state at the end of the document,
	// or nil when not inside a proof. Results are cached until the
	// document changes.
	GetProofContext(ctx context.Context) (*ProofContext, error)

	// IsInProof reports whether the session is currently inside a proof.
	IsInProof(ctx context.Context) (bool, error)

	// ResetCommandState discards every statement and marks the state
	// dirty. The underlying document identity is kept.
	ResetCommandState()

	// QueryVernac runs a vernacular query command and returns the
	// prover's feedback lines. Backends without a query channel return
	// ErrNotSupported.
	QueryVernac(ctx context.Context, vernac string) ([]string, error)

	// Interrupt aborts the currently running statement. Backends without
	// interrupt support return ErrNotSupported.
	Interrupt() error

	// Close shuts the session down, terminating the prover process. It is
	// safe to call more than once and must release the subprocess on
	// every path.
	Close() error
}
