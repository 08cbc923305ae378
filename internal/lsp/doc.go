// Package lsp implements the coq-lsp backend: a JSON-RPC client that drives
// a coq-lsp subprocess through the prover.Backend contract.
//
// The package reconciles coq-lsp's asynchronous notification stream with the
// synchronous request/response model the caller expects. It is organized
// around these components:
//
//   - Transport: Content-Length framed JSON-RPC 2.0 over the subprocess
//     pipes. One reader goroutine routes responses to pending calls by id
//     and notifications to per-method FIFO queues.
//   - Queue: unbounded FIFO handoff between the reader goroutine and the
//     caller-facing session logic. The reader only produces; session logic
//     only consumes.
//   - handshake: the fixed startup sequence. coq-lsp announces readiness
//     through an ordered series of log and trace notifications which are
//     verified literally; any mismatch is fatal.
//   - document: the virtual document. Statements accumulate locally and the
//     full joined text is resent on every synchronize with a strictly
//     increasing version.
//   - Diagnostic interpretation: error-severity diagnostics for the current
//     document version roll the local statement sequence back to just
//     before the offender and surface as typed errors.
//
// # Session flow
//
// New spawns coq-lsp, performs the initialize handshake, and opens an empty
// virtual document. Statements are appended with AddStatement; each append
// resynchronizes the document and refreshes the proof context via the
// proof/goals request. The context is cached until the document changes.
//
//	client, err := lsp.New(ctx, cfg)
//	if err != nil { ... }
//	defer client.Close()
//
//	if err := client.AddStatement(ctx, "Theorem t : True."); err != nil { ... }
//	pc, err := client.GetProofContext(ctx)
//
// # Error recovery
//
// When coq-lsp reports an error-severity diagnostic, the statement owning
// the diagnostic's line and everything after it is discarded locally and the
// caller receives a *prover.CoqExn (known recoverable message) or
// *prover.UnrecognizedError. The caller decides whether to resubmit; nothing
// is retried automatically.
//
// Interrupt and QueryVernac are not supported over this transport and
// report prover.ErrNotSupported.
package lsp
