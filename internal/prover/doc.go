// Package prover defines the shared data model and the abstract backend
// contract for driving an interactive Coq session.
//
// A Backend accepts statements one at a time, reports the proof state after
// each, and rolls its local view back when the prover rejects a statement.
// Two transport implementations satisfy the contract: the coq-lsp JSON-RPC
// client in internal/lsp, and the sertop symbolic-expression client whose
// boundary lives in internal/serapi. Callers pick between them with the
// factory in internal/session based on the installed Coq version.
//
// The data types here (Obligation, ProofContext) are plain values produced
// by response parsing. They are never mutated after construction; a state
// change always yields a fresh ProofContext.
package prover
