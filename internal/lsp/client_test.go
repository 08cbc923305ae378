package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dshills/coqdrive/internal/config"
	"github.com/dshills/coqdrive/internal/prover"
)

// goalReply scripts one proof/goals exchange: diagnostics published first,
// then the result, mirroring how the real server orders its output.
type goalReply struct {
	result string
	diags  []PublishDiagnosticsParams
}

var noProof = goalReply{result: `{"goals": null}`}

// fakeCoqServer speaks just enough coq-lsp to drive a client session: the
// v0.1.4 startup sequence, document notifications, and scripted proof/goals
// answers. An exhausted script flags extra queries as test failures.
type fakeCoqServer struct {
	t *testing.T
	r *bufio.Reader
	w io.WriteCloser

	mu     sync.Mutex
	script []goalReply
	done   chan struct{}

	// breakHandshake sends a wrong first startup message.
	breakHandshake bool
}

func (s *fakeCoqServer) popReply() (goalReply, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.script) == 0 {
		return goalReply{}, false
	}
	reply := s.script[0]
	s.script = s.script[1:]
	return reply, true
}

type serverMsg struct {
	ID     *int64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

func (s *fakeCoqServer) read() (*serverMsg, error) {
	var contentLength int
	for {
		line, err := s.r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if v, ok := strings.CutPrefix(line, "Content-Length: "); ok {
			contentLength, _ = strconv.Atoi(v)
		}
	}
	body := make([]byte, contentLength)
	if _, err := io.ReadFull(s.r, body); err != nil {
		return nil, err
	}
	var msg serverMsg
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *fakeCoqServer) write(payload string) {
	fmt.Fprintf(s.w, "Content-Length: %d\r\n\r\n%s", len(payload), payload)
}

func (s *fakeCoqServer) respond(id int64, result string) {
	s.write(fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"result":%s}`, id, result))
}

func (s *fakeCoqServer) notify(method string, params any) {
	data, err := json.Marshal(params)
	if err != nil {
		s.t.Errorf("marshal %s params: %v", method, err)
		return
	}
	s.write(fmt.Sprintf(`{"jsonrpc":"2.0","method":%q,"params":%s}`, method, data))
}

func (s *fakeCoqServer) logMessage(text string) {
	s.notify(methodLogMessage, LogMessageParams{Type: 3, Message: text})
}

func (s *fakeCoqServer) logTrace(text string) {
	s.notify(methodLogTrace, LogTraceParams{Message: text})
}

func (s *fakeCoqServer) sendStartupMessages() {
	first := "Initializing server"
	if s.breakHandshake {
		first = "Totally different server"
	}
	s.logMessage(first)
	s.logMessage("Server initialized")
	s.logMessage("Configuration loaded from default settings")
	for _, m := range initTraceMessages {
		s.logTrace(m)
	}
}

func (s *fakeCoqServer) sendDocCheckedTraces() {
	for _, m := range []string{
		"[process_queue]: Serving Request: textDocument/didOpen",
		"[process_queue]: resuming document checking",
		"[check]: resuming, from: 0 l: 0",
		"[check]: done [0.001]: document fully checked .",
		"[cache]: hashing: 0.000 | parsing: 0.000 | exec: 0.000",
		"[cache]: size: 0",
	} {
		s.logTrace(m)
	}
}

func (s *fakeCoqServer) serve() {
	defer close(s.done)
	defer s.w.Close()
	for {
		msg, err := s.read()
		if err != nil {
			return
		}
		switch msg.Method {
		case methodInitialize:
			s.respond(*msg.ID, `{"capabilities":{},"serverInfo":{"name":"coq-lsp","version":"0.1.4"}}`)
			s.sendStartupMessages()
		case methodInitialized:
			s.logTrace(initializedTraceMessage)
		case methodDidOpen:
			s.sendDocCheckedTraces()
		case methodDidChange:
			// Full text resend; nothing to answer.
		case methodGoals:
			reply, ok := s.popReply()
			if !ok {
				s.t.Errorf("unscripted proof/goals query; cached context not honored?")
				s.respond(*msg.ID, `{"goals": null}`)
				continue
			}
			for _, d := range reply.diags {
				s.notify(methodPublishDiagnostics, d)
			}
			s.respond(*msg.ID, reply.result)
		case methodShutdown:
			s.respond(*msg.ID, `null`)
		case methodExit:
			return
		default:
			s.t.Errorf("unexpected client message: %s", msg.Method)
		}
	}
}

// startTestClient wires a client to a fake server over in-memory pipes and
// runs the startup sequence.
func startTestClient(t *testing.T, script []goalReply, breakHandshake bool) (*Client, *fakeCoqServer, error) {
	t.Helper()

	clientReads, serverWrites := io.Pipe()
	serverReads, clientWrites := io.Pipe()

	server := &fakeCoqServer{
		t:              t,
		r:              bufio.NewReader(serverReads),
		w:              serverWrites,
		script:         script,
		done:           make(chan struct{}),
		breakHandshake: breakHandshake,
	}
	go server.serve()

	cfg := config.Default()
	cfg.TimeoutSeconds = 5
	cfg.DocName = "test.v"

	c := &Client{
		cfg:    cfg,
		logger: discardLogger(),
		stderr: &stderrDrain{},
	}
	c.connect(clientReads, clientWrites, strings.NewReader("coq-lsp booting\n"))

	t.Cleanup(func() {
		c.Close()
		serverWrites.Close()
		clientWrites.Close()
		select {
		case <-server.done:
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := c.start(ctx)
	return c, server, err
}

func TestClient_StartupAndEmptyContext(t *testing.T) {
	c, _, err := startTestClient(t, []goalReply{noProof}, false)
	if err != nil {
		t.Fatalf("start error = %v", err)
	}

	ctx := context.Background()
	pc, err := c.GetProofContext(ctx)
	if err != nil {
		t.Fatalf("GetProofContext() error = %v", err)
	}
	if pc != nil {
		t.Errorf("GetProofContext() = %+v, want nil outside a proof", pc)
	}

	inProof, err := c.IsInProof(ctx)
	if err != nil {
		t.Fatalf("IsInProof() error = %v", err)
	}
	if inProof {
		t.Error("IsInProof() = true for an empty document")
	}
}

func TestClient_CachedContextSkipsServer(t *testing.T) {
	// One scripted reply: the second query must come from cache, or the
	// server flags an unscripted exchange.
	c, _, err := startTestClient(t, []goalReply{noProof}, false)
	if err != nil {
		t.Fatalf("start error = %v", err)
	}

	ctx := context.Background()
	if _, err := c.GetProofContext(ctx); err != nil {
		t.Fatalf("first GetProofContext() error = %v", err)
	}
	if _, err := c.GetProofContext(ctx); err != nil {
		t.Fatalf("second GetProofContext() error = %v", err)
	}
	if _, err := c.IsInProof(ctx); err != nil {
		t.Fatalf("IsInProof() error = %v", err)
	}
}

func TestClient_ProofLifecycle(t *testing.T) {
	inProof := goalReply{result: `{"goals": {
		"goals": [{"hyps": [{"names": ["n"], "ty": "nat"}], "ty": "n = n"}],
		"stack": [], "shelf": [], "given_up": []
	}}`}

	c, _, err := startTestClient(t, []goalReply{inProof, noProof}, false)
	if err != nil {
		t.Fatalf("start error = %v", err)
	}
	ctx := context.Background()

	if err := c.AddStatementNoUpdate("Theorem nat_refl : forall n : nat, n = n."); err != nil {
		t.Fatalf("AddStatementNoUpdate() error = %v", err)
	}
	if err := c.AddStatementNoUpdate("Proof."); err != nil {
		t.Fatalf("AddStatementNoUpdate() error = %v", err)
	}
	if err := c.AddStatement(ctx, "intro."); err != nil {
		t.Fatalf("AddStatement() error = %v", err)
	}

	pc, err := c.GetProofContext(ctx)
	if err != nil {
		t.Fatalf("GetProofContext() error = %v", err)
	}
	if pc == nil {
		t.Fatal("GetProofContext() = nil inside a proof")
	}
	if len(pc.Foreground) != 1 || pc.Foreground[0].Goal != "n = n" {
		t.Errorf("Foreground = %+v", pc.Foreground)
	}

	for i := 0; i < 3; i++ {
		if err := c.CancelLastStatement(); err != nil {
			t.Fatalf("CancelLastStatement() error = %v", err)
		}
	}
	pc, err = c.GetProofContext(ctx)
	if err != nil {
		t.Fatalf("GetProofContext() after cancels error = %v", err)
	}
	if pc != nil {
		t.Errorf("GetProofContext() = %+v after cancelling everything, want nil", pc)
	}
}

func TestClient_CancelOnEmptyDocument(t *testing.T) {
	c, _, err := startTestClient(t, nil, false)
	if err != nil {
		t.Fatalf("start error = %v", err)
	}

	if err := c.CancelLastStatement(); !errors.Is(err, prover.ErrNoStatements) {
		t.Errorf("CancelLastStatement() error = %v, want ErrNoStatements", err)
	}
}

func TestClient_ErrorRollbackAndRecovery(t *testing.T) {
	badStmt := goalReply{
		result: `{"goals": null}`,
		diags: []PublishDiagnosticsParams{{
			URI:     "test.v",
			Version: 2,
			Diagnostics: []Diagnostic{{
				Range:    Range{Start: Position{Line: 0}},
				Severity: DiagnosticSeverityError,
				Message:  "The reference Nope was not found in the current environment.",
			}},
		}},
	}

	c, _, err := startTestClient(t, []goalReply{badStmt, noProof}, false)
	if err != nil {
		t.Fatalf("start error = %v", err)
	}
	ctx := context.Background()

	err = c.AddStatement(ctx, "Check Nope.")
	var coqExn *prover.CoqExn
	if !errors.As(err, &coqExn) {
		t.Fatalf("AddStatement() error = %v, want *prover.CoqExn", err)
	}
	if c.doc.Len() != 0 {
		t.Errorf("Len() = %d, the rejected statement must be rolled back", c.doc.Len())
	}

	// The session keeps working after recovery.
	if err := c.AddStatement(ctx, "Check nat."); err != nil {
		t.Fatalf("AddStatement() after recovery error = %v", err)
	}
}

func TestClient_ResetCommandState(t *testing.T) {
	c, _, err := startTestClient(t, []goalReply{noProof}, false)
	if err != nil {
		t.Fatalf("start error = %v", err)
	}
	ctx := context.Background()

	if err := c.AddStatementNoUpdate("Check nat."); err != nil {
		t.Fatalf("AddStatementNoUpdate() error = %v", err)
	}
	c.ResetCommandState()

	if c.doc.Len() != 0 {
		t.Errorf("Len() = %d after reset, want 0", c.doc.Len())
	}
	pc, err := c.GetProofContext(ctx)
	if err != nil {
		t.Fatalf("GetProofContext() after reset error = %v", err)
	}
	if pc != nil {
		t.Errorf("GetProofContext() = %+v after reset, want nil", pc)
	}
}

func TestClient_UnsupportedOperations(t *testing.T) {
	c, _, err := startTestClient(t, nil, false)
	if err != nil {
		t.Fatalf("start error = %v", err)
	}

	if _, err := c.QueryVernac(context.Background(), "Print nat."); !errors.Is(err, prover.ErrNotSupported) {
		t.Errorf("QueryVernac() error = %v, want ErrNotSupported", err)
	}
	if err := c.Interrupt(); !errors.Is(err, prover.ErrNotSupported) {
		t.Errorf("Interrupt() error = %v, want ErrNotSupported", err)
	}
}

func TestClient_StderrCaptured(t *testing.T) {
	c, _, err := startTestClient(t, nil, false)
	if err != nil {
		t.Fatalf("start error = %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		lines := c.StderrLines()
		if len(lines) == 1 && lines[0] == "coq-lsp booting" {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("StderrLines() = %v, want the drained boot line", c.StderrLines())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestClient_HandshakeMismatchFatal(t *testing.T) {
	_, _, err := startTestClient(t, nil, true)
	if err == nil {
		t.Fatal("start succeeded against a server with a broken handshake")
	}
	if !errors.Is(err, prover.ErrInitFailed) {
		t.Errorf("start error = %v, want ErrInitFailed", err)
	}
	var initErr *prover.InitError
	if !errors.As(err, &initErr) {
		t.Fatalf("start error type = %T, want *prover.InitError", err)
	}
}

func TestClient_OperationsAfterClose(t *testing.T) {
	c, _, err := startTestClient(t, nil, false)
	if err != nil {
		t.Fatalf("start error = %v", err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	if err := c.AddStatementNoUpdate("Check nat."); !errors.Is(err, prover.ErrClosed) {
		t.Errorf("AddStatementNoUpdate() after Close error = %v, want ErrClosed", err)
	}
	if _, err := c.GetProofContext(context.Background()); !errors.Is(err, prover.ErrClosed) {
		t.Errorf("GetProofContext() after Close error = %v, want ErrClosed", err)
	}
	if err := c.CancelLastStatement(); !errors.Is(err, prover.ErrClosed) {
		t.Errorf("CancelLastStatement() after Close error = %v, want ErrClosed", err)
	}
}
