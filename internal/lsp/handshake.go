package lsp

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/dshills/coqdrive/internal/prover"
)

// handshakeState tracks progress through the fixed startup sequence.
type handshakeState int

const (
	handshakeUninitialized handshakeState = iota
	handshakeCapabilitiesSent
	handshakeAcknowledged
	handshakeReady
)

// String returns the state name.
func (s handshakeState) String() string {
	switch s {
	case handshakeUninitialized:
		return "uninitialized"
	case handshakeCapabilitiesSent:
		return "capabilities-sent"
	case handshakeAcknowledged:
		return "acknowledged"
	case handshakeReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Expected startup messages for coq-lsp v0.1.4. The server announces
// readiness through log and trace notifications in a fixed order; any
// deviation means an incompatible or broken server and aborts the session.
var (
	initLogMessages = []string{
		"Initializing server",
		"Server initialized",
	}

	initLogContains = "Configuration loaded"

	initTraceMessages = []string{
		"[init]: custom client options:",
		"[init]: [init]: {}",
		"[client_version]: any",
		"[workspace]: initialized",
	}

	initializedTraceMessage = "[process_queue]: Serving Request: initialized"

	docCheckedPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\[process_queue\]: Serving Request: textDocument/didOpen`),
		regexp.MustCompile(`\[process_queue\]: resuming document checking`),
		regexp.MustCompile(`\[check\]: resuming(?: \[v: \d+\])?, from: 0 l: \d+`),
		regexp.MustCompile(`\[check\]: done \[\d+\.\d+\]: document fully checked .*`),
		regexp.MustCompile(`\[cache\]: hashing: \d+.\d+ | parsing: \d+.\d+ | exec: \d+.\d+`),
		regexp.MustCompile(`\[cache\]: .*`),
	}
)

// handshake walks the startup sequence against the log and trace queues.
type handshake struct {
	state  handshakeState
	logs   *Queue[LogMessageParams]
	traces *Queue[LogTraceParams]
}

// expectLogExact pops the next logMessage and requires exact text.
func (h *handshake) expectLogExact(ctx context.Context, want string) error {
	msg, err := h.logs.Get(ctx)
	if err != nil {
		return &prover.InitError{Stage: h.state.String(), Expected: want, Err: err}
	}
	if msg.Message != want {
		return &prover.InitError{Stage: h.state.String(), Expected: want, Got: msg.Message}
	}
	return nil
}

// expectLogContains pops the next logMessage and requires a substring.
func (h *handshake) expectLogContains(ctx context.Context, want string) error {
	msg, err := h.logs.Get(ctx)
	if err != nil {
		return &prover.InitError{Stage: h.state.String(), Expected: want, Err: err}
	}
	if !strings.Contains(msg.Message, want) {
		return &prover.InitError{Stage: h.state.String(), Expected: want, Got: msg.Message}
	}
	return nil
}

// expectTraceExact pops the next logTrace and requires exact text.
func (h *handshake) expectTraceExact(ctx context.Context, want string) error {
	msg, err := h.traces.Get(ctx)
	if err != nil {
		return &prover.InitError{Stage: h.state.String(), Expected: want, Err: err}
	}
	if msg.Message != want {
		return &prover.InitError{Stage: h.state.String(), Expected: want, Got: msg.Message}
	}
	return nil
}

// expectTracePattern pops the next logTrace and requires a pattern match at
// the start of the message.
func (h *handshake) expectTracePattern(ctx context.Context, want *regexp.Regexp) error {
	msg, err := h.traces.Get(ctx)
	if err != nil {
		return &prover.InitError{Stage: h.state.String(), Expected: want.String(), Err: err}
	}
	loc := want.FindStringIndex(msg.Message)
	if loc == nil || loc[0] != 0 {
		return &prover.InitError{Stage: h.state.String(), Expected: want.String(), Got: msg.Message}
	}
	return nil
}

// verifyInit consumes the startup messages the server emits after the
// initialize response. Called in state capabilities-sent; moves to
// acknowledged on success.
func (h *handshake) verifyInit(ctx context.Context) error {
	if h.state != handshakeCapabilitiesSent {
		return &prover.InitError{
			Stage: h.state.String(),
			Err:   fmt.Errorf("verify called out of order"),
		}
	}
	for _, want := range initLogMessages {
		if err := h.expectLogExact(ctx, want); err != nil {
			return err
		}
	}
	if err := h.expectLogContains(ctx, initLogContains); err != nil {
		return err
	}
	for _, want := range initTraceMessages {
		if err := h.expectTraceExact(ctx, want); err != nil {
			return err
		}
	}
	h.state = handshakeAcknowledged
	return nil
}

// verifyInitialized consumes the trace acknowledging the initialized
// notification. Moves to ready.
func (h *handshake) verifyInitialized(ctx context.Context) error {
	if h.state != handshakeAcknowledged {
		return &prover.InitError{
			Stage: h.state.String(),
			Err:   fmt.Errorf("verify called out of order"),
		}
	}
	if err := h.expectTraceExact(ctx, initializedTraceMessage); err != nil {
		return err
	}
	h.state = handshakeReady
	return nil
}

// verifyDocChecked consumes the traces the server emits while checking a
// freshly opened document.
func (h *handshake) verifyDocChecked(ctx context.Context) error {
	for _, pat := range docCheckedPatterns {
		if err := h.expectTracePattern(ctx, pat); err != nil {
			return err
		}
	}
	return nil
}
