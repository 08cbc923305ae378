package lsp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/coqdrive/internal/config"
	"github.com/dshills/coqdrive/internal/process"
	"github.com/dshills/coqdrive/internal/prover"
)

// Client drives a coq-lsp subprocess through the prover.Backend contract.
//
// The client owns two background goroutines, the transport reader and the
// stderr drain, managed under an errgroup so the first failure tears both
// down. All Backend methods must be called from one goroutine.
type Client struct {
	cfg    config.Config
	logger *slog.Logger

	proc   *process.Process
	trans  *Transport
	stderr *stderrDrain

	group  *errgroup.Group
	cancel context.CancelFunc

	logs   *Queue[LogMessageParams]
	traces *Queue[LogTraceParams]
	diags  *Queue[PublishDiagnosticsParams]

	doc    document
	cached *prover.ProofContext
	closed bool
}

var _ prover.Backend = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New spawns the prover server, performs the startup handshake, and opens an
// empty virtual document. On any failure the subprocess is terminated before
// returning; a handshake mismatch reports a fatal initialization error and
// the session must not be retried.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg:    cfg,
		logger: slog.New(slog.DiscardHandler),
		stderr: &stderrDrain{},
	}
	for _, opt := range opts {
		opt(c)
	}

	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Dir = cfg.RootDir
	proc, err := process.Launch(cfg.Command, cmd)
	if err != nil {
		return nil, fmt.Errorf("launch prover: %w", err)
	}
	c.proc = proc

	c.connect(proc.Stdout, proc.Stdin, proc.Stderr)

	if err := c.start(ctx); err != nil {
		c.teardown()
		return nil, err
	}
	return c, nil
}

// connect wires the transport, notification queues, and reader goroutines
// onto the server's pipes.
func (c *Client) connect(stdout io.Reader, stdin io.Writer, stderr io.Reader) {
	c.trans = NewTransport(stdout, stdin, c.logger)
	c.logs = Subscribe[LogMessageParams](c.trans, methodLogMessage)
	c.traces = Subscribe[LogTraceParams](c.trans, methodLogTrace)
	c.diags = Subscribe[PublishDiagnosticsParams](c.trans, methodPublishDiagnostics)
	c.trans.Ignore(methodFileProgress)

	gctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.group, gctx = errgroup.WithContext(gctx)
	c.group.Go(func() error { return c.trans.Run(gctx) })
	c.group.Go(func() error { return c.stderr.drain(stderr) })
}

// pid reports the server process id, -1 when no process is attached.
func (c *Client) pid() int {
	if c.proc == nil {
		return -1
	}
	return c.proc.PID()
}

// start runs the initialize handshake and opens the virtual document.
func (c *Client) start(ctx context.Context) error {
	hctx, cancel := c.requestContext(ctx)
	defer cancel()

	initParams := &InitializeParams{
		ProcessID:    c.pid(),
		RootPath:     c.cfg.RootDir,
		RootURI:      DocumentURI(c.cfg.RootDir),
		Capabilities: ClientCapabilities{},
		Trace:        c.cfg.Trace,
		WorkspaceFolders: []WorkspaceFolder{
			{URI: DocumentURI(c.cfg.RootDir), Name: "coq-lsp"},
		},
	}

	hs := &handshake{logs: c.logs, traces: c.traces}

	var result InitializeResult
	if err := c.trans.Call(hctx, methodInitialize, initParams, &result); err != nil {
		return &prover.InitError{Stage: hs.state.String(), Err: err}
	}
	hs.state = handshakeCapabilitiesSent
	if result.ServerInfo != nil {
		c.logger.Info("prover server started",
			"name", result.ServerInfo.Name,
			"version", result.ServerInfo.Version)
	}

	if err := hs.verifyInit(hctx); err != nil {
		return err
	}
	if err := c.trans.Notify(hctx, methodInitialized, &InitializedParams{}); err != nil {
		return &prover.InitError{Stage: hs.state.String(), Err: err}
	}
	if err := hs.verifyInitialized(hctx); err != nil {
		return err
	}

	name := c.cfg.DocName
	if name == "" {
		name = fmt.Sprintf("local-%.8s.v", uuid.NewString())
	}
	if err := c.doc.Open(hctx, c.trans, DocumentURI(name)); err != nil {
		return &prover.InitError{Stage: hs.state.String(), Err: err}
	}
	if err := hs.verifyDocChecked(hctx); err != nil {
		return err
	}
	if err := checkErrors(c.diags, &c.doc, c.logger); err != nil {
		return &prover.InitError{Stage: hs.state.String(), Err: err}
	}
	c.logger.Debug("session ready", "doc", name, "pid", c.pid())
	return nil
}

// requestContext bounds a synchronous request by the configured timeout.
func (c *Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.cfg.RequestTimeout())
}

// AddStatement appends a statement and refreshes the proof state. On a
// prover error the offending statement and everything after it has already
// been discarded locally when the error comes back.
func (c *Client) AddStatement(ctx context.Context, stmt string) error {
	if err := c.AddStatementNoUpdate(stmt); err != nil {
		return err
	}
	_, err := c.GetProofContext(ctx)
	return err
}

// AddStatementNoUpdate appends a statement locally without contacting the
// prover.
func (c *Client) AddStatementNoUpdate(stmt string) error {
	if c.closed {
		return prover.ErrClosed
	}
	c.doc.Append(stmt)
	return nil
}

// CancelLastStatement removes the most recently added statement.
func (c *Client) CancelLastStatement() error {
	if c.closed {
		return prover.ErrClosed
	}
	if c.doc.Len() == 0 {
		return prover.ErrNoStatements
	}
	return c.doc.RemoveLast()
}

// GetProofContext returns the proof state at the end of the document, nil
// when not in a proof. While the document is unchanged the cached context is
// returned without touching the server.
func (c *Client) GetProofContext(ctx context.Context) (*prover.ProofContext, error) {
	if c.closed {
		return nil, prover.ErrClosed
	}
	if !c.doc.dirty {
		return c.cached, nil
	}

	rctx, cancel := c.requestContext(ctx)
	defer cancel()

	if err := c.doc.Synchronize(rctx, c.trans); err != nil {
		return nil, fmt.Errorf("synchronize document: %w", err)
	}
	pc, err := queryGoals(rctx, c.trans, c.doc.uri, c.doc.EndPosition())
	if err != nil {
		return nil, err
	}
	if err := checkErrors(c.diags, &c.doc, c.logger); err != nil {
		return nil, err
	}

	c.cached = pc
	c.doc.dirty = false
	return c.cached, nil
}

// IsInProof reports whether the session is currently inside a proof.
func (c *Client) IsInProof(ctx context.Context) (bool, error) {
	pc, err := c.GetProofContext(ctx)
	if err != nil {
		return false, err
	}
	return pc != nil, nil
}

// ResetCommandState discards every statement. The document stays open and
// its version keeps advancing.
func (c *Client) ResetCommandState() {
	if c.closed {
		return
	}
	c.doc.Reset()
	c.cached = nil
}

// QueryVernac is not available over this transport.
func (c *Client) QueryVernac(ctx context.Context, vernac string) ([]string, error) {
	return nil, prover.ErrNotSupported
}

// Interrupt is not available over this transport.
func (c *Client) Interrupt() error {
	return prover.ErrNotSupported
}

// StderrLines returns everything the server wrote to stderr so far.
func (c *Client) StderrLines() []string {
	return c.stderr.Lines()
}

// Close shuts the session down: shutdown request, exit notification, then
// process termination. Each step proceeds regardless of earlier failures so
// the subprocess is always released. Safe to call more than once.
func (c *Client) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.trans.Call(ctx, methodShutdown, nil, nil); err != nil {
		c.logger.Debug("shutdown request failed", "err", err)
	}
	if err := c.trans.Notify(ctx, methodExit, nil); err != nil {
		c.logger.Debug("exit notification failed", "err", err)
	}

	c.teardown()
	return nil
}

// teardown stops the transport and goroutines and reaps the subprocess.
func (c *Client) teardown() {
	_ = c.trans.Close()
	c.cancel()
	if c.proc != nil {
		c.proc.Shutdown(2 * time.Second)
		_ = c.proc.Close()
	}
	if err := c.group.Wait(); err != nil {
		c.logger.Debug("reader shutdown", "err", err)
	}
}
