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
	"testing"
	"time"

	"github.com/dshills/coqdrive/internal/prover"
)

// testConn wires a transport to an in-memory peer over io.Pipe.
type testConn struct {
	trans *Transport

	// peer side
	in  *bufio.Reader  // reads what the transport sends
	out *io.PipeWriter // writes what the transport receives

	runDone chan error
}

func newTestConn(t *testing.T) *testConn {
	t.Helper()
	clientReads, serverWrites := io.Pipe()
	serverReads, clientWrites := io.Pipe()

	conn := &testConn{
		trans:   NewTransport(clientReads, clientWrites, nil),
		in:      bufio.NewReader(serverReads),
		out:     serverWrites,
		runDone: make(chan error, 1),
	}
	t.Cleanup(func() {
		conn.trans.Close()
		serverWrites.Close()
		clientWrites.Close()
	})
	return conn
}

// run starts the transport read loop and records its result.
func (c *testConn) run(ctx context.Context) {
	go func() {
		c.runDone <- c.trans.Run(ctx)
	}()
}

// readFrame reads one framed message the transport sent.
func (c *testConn) readFrame(t *testing.T) map[string]any {
	t.Helper()
	var contentLength int
	for {
		line, err := c.in.ReadString('\n')
		if err != nil {
			t.Fatalf("read header: %v", err)
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
	if _, err := io.ReadFull(c.in, body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	var msg map[string]any
	if err := json.Unmarshal(body, &msg); err != nil {
		t.Fatalf("decode body %q: %v", body, err)
	}
	return msg
}

// writeFrame sends a framed message to the transport.
func (c *testConn) writeFrame(t *testing.T, msg any) {
	t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(data))
	if _, err := io.WriteString(c.out, header+string(data)); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func TestTransport_NotifyFraming(t *testing.T) {
	conn := newTestConn(t)

	go func() {
		conn.trans.Notify(context.Background(), "test/notification", map[string]string{"message": "hello"})
	}()

	msg := conn.readFrame(t)
	if msg["jsonrpc"] != "2.0" {
		t.Errorf("jsonrpc = %v, want 2.0", msg["jsonrpc"])
	}
	if msg["method"] != "test/notification" {
		t.Errorf("method = %v, want test/notification", msg["method"])
	}
	if _, hasID := msg["id"]; hasID {
		t.Error("notification carries an id")
	}
}

func TestTransport_CallRoundTrip(t *testing.T) {
	conn := newTestConn(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn.run(ctx)

	go func() {
		req := conn.readFrame(t)
		conn.writeFrame(t, map[string]any{
			"jsonrpc": "2.0",
			"id":      req["id"],
			"result":  map[string]string{"status": "ok"},
		})
	}()

	var result map[string]string
	if err := conn.trans.Call(ctx, "test/method", nil, &result); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if result["status"] != "ok" {
		t.Errorf("result = %v, want status=ok", result)
	}
}

func TestTransport_CallServerError(t *testing.T) {
	conn := newTestConn(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn.run(ctx)

	go func() {
		req := conn.readFrame(t)
		conn.writeFrame(t, map[string]any{
			"jsonrpc": "2.0",
			"id":      req["id"],
			"error":   map[string]any{"code": CodeMethodNotFound, "message": "method not found"},
		})
	}()

	err := conn.trans.Call(ctx, "unknown/method", nil, nil)
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("Call() error = %v, want *RPCError", err)
	}
	if rpcErr.Code != CodeMethodNotFound {
		t.Errorf("Code = %d, want %d", rpcErr.Code, CodeMethodNotFound)
	}
}

func TestTransport_NotificationRouting(t *testing.T) {
	conn := newTestConn(t)
	logs := Subscribe[LogMessageParams](conn.trans, methodLogMessage)
	traces := Subscribe[LogTraceParams](conn.trans, methodLogTrace)
	conn.trans.Ignore(methodFileProgress)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn.run(ctx)

	conn.writeFrame(t, map[string]any{
		"jsonrpc": "2.0",
		"method":  methodLogMessage,
		"params":  map[string]any{"type": 3, "message": "first"},
	})
	conn.writeFrame(t, map[string]any{
		"jsonrpc": "2.0",
		"method":  methodFileProgress,
		"params":  map[string]any{"whatever": true},
	})
	conn.writeFrame(t, map[string]any{
		"jsonrpc": "2.0",
		"method":  methodLogMessage,
		"params":  map[string]any{"type": 3, "message": "second"},
	})
	conn.writeFrame(t, map[string]any{
		"jsonrpc": "2.0",
		"method":  methodLogTrace,
		"params":  map[string]any{"message": "a trace"},
	})

	// Per-method FIFO order must hold.
	for _, want := range []string{"first", "second"} {
		msg, err := logs.Get(ctx)
		if err != nil {
			t.Fatalf("logs.Get() error = %v", err)
		}
		if msg.Message != want {
			t.Errorf("logs.Get() = %q, want %q", msg.Message, want)
		}
	}
	tr, err := traces.Get(ctx)
	if err != nil {
		t.Fatalf("traces.Get() error = %v", err)
	}
	if tr.Message != "a trace" {
		t.Errorf("traces.Get() = %q, want %q", tr.Message, "a trace")
	}
}

func TestTransport_StreamCloseFailsPendingCalls(t *testing.T) {
	conn := newTestConn(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn.run(ctx)

	callErr := make(chan error, 1)
	go func() {
		callErr <- conn.trans.Call(ctx, "test/hang", nil, nil)
	}()

	// Let the request hit the wire, then drop the connection.
	conn.readFrame(t)
	conn.out.Close()

	select {
	case err := <-callErr:
		if !errors.Is(err, prover.ErrConnClosed) {
			t.Errorf("Call() error = %v, want ErrConnClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Call() still blocked after stream close")
	}

	select {
	case err := <-conn.runDone:
		if !errors.Is(err, prover.ErrConnClosed) {
			t.Errorf("Run() = %v, want ErrConnClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after stream close")
	}
}

func TestTransport_StreamCloseClosesQueues(t *testing.T) {
	conn := newTestConn(t)
	logs := Subscribe[LogMessageParams](conn.trans, methodLogMessage)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn.run(ctx)

	conn.writeFrame(t, map[string]any{
		"jsonrpc": "2.0",
		"method":  methodLogMessage,
		"params":  map[string]any{"type": 3, "message": "buffered"},
	})
	conn.out.Close()
	<-conn.runDone

	// Messages delivered before the close are still readable.
	msg, err := logs.Get(ctx)
	if err != nil {
		t.Fatalf("logs.Get() error = %v", err)
	}
	if msg.Message != "buffered" {
		t.Errorf("logs.Get() = %q, want buffered", msg.Message)
	}

	if _, err := logs.Get(ctx); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("logs.Get() after shutdown error = %v, want ErrQueueClosed", err)
	}
}

func TestTransport_CallAfterClose(t *testing.T) {
	conn := newTestConn(t)
	conn.trans.Close()

	err := conn.trans.Call(context.Background(), "test/method", nil, nil)
	if !errors.Is(err, prover.ErrConnClosed) {
		t.Errorf("Call() after Close error = %v, want ErrConnClosed", err)
	}
	if err := conn.trans.Notify(context.Background(), "test/n", nil); !errors.Is(err, prover.ErrConnClosed) {
		t.Errorf("Notify() after Close error = %v, want ErrConnClosed", err)
	}
}

func TestTransport_GracefulCloseReturnsNil(t *testing.T) {
	conn := newTestConn(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn.run(ctx)

	conn.trans.Close()
	conn.out.Close()

	select {
	case err := <-conn.runDone:
		if err != nil {
			t.Errorf("Run() = %v after Close, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after Close")
	}
}

func TestTransport_MalformedNotificationDropped(t *testing.T) {
	conn := newTestConn(t)
	logs := Subscribe[LogMessageParams](conn.trans, methodLogMessage)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn.run(ctx)

	conn.writeFrame(t, map[string]any{
		"jsonrpc": "2.0",
		"method":  methodLogMessage,
		"params":  "not an object",
	})
	conn.writeFrame(t, map[string]any{
		"jsonrpc": "2.0",
		"method":  methodLogMessage,
		"params":  map[string]any{"type": 3, "message": "good"},
	})

	msg, err := logs.Get(ctx)
	if err != nil {
		t.Fatalf("logs.Get() error = %v", err)
	}
	if msg.Message != "good" {
		t.Errorf("logs.Get() = %q, the malformed notification must be skipped", msg.Message)
	}
}
