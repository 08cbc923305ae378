// Package process manages the prover subprocess.
//
// A session owns exactly one child process (coq-lsp or sertop) whose stdin
// and stdout carry protocol traffic and whose stderr is drained separately.
// Launch wraps exec.Cmd with piped stdio, a unique identifier, exit
// tracking, and signal helpers so the protocol layer never touches exec
// directly.
package process
