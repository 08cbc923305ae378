package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dshills/coqdrive/internal/prover"
)

// Transport handles JSON-RPC 2.0 communication over stdio with the LSP base
// protocol's Content-Length framing.
//
// Incoming traffic is demultiplexed by a single reader (Run): responses
// complete pending Calls by id, notifications land on the queue subscribed
// for their method, ignored methods are dropped. Within one method, queue
// order matches arrival order; ordering across methods is not guaranteed.
//
// When the stream closes, every pending Call fails with
// prover.ErrConnClosed and all queues are closed rather than blocking
// forever.
type Transport struct {
	reader *bufio.Reader
	writer io.Writer
	logger *slog.Logger

	mu      sync.Mutex
	nextID  atomic.Int64
	pending map[int64]chan *response
	routes  map[string]route
	ignored map[string]bool

	closed atomic.Bool
	done   chan struct{}
}

// route delivers one notification method into its typed queue.
type route struct {
	put   func(params json.RawMessage)
	close func()
}

// request represents an outgoing JSON-RPC request or notification.
type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// response represents an incoming JSON-RPC response.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// NewTransport creates a transport over the given pipes. Subscribe and
// Ignore must be called before Run starts reading.
func NewTransport(r io.Reader, w io.Writer, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Transport{
		reader:  bufio.NewReaderSize(r, 64*1024),
		writer:  w,
		logger:  logger,
		pending: make(map[int64]chan *response),
		routes:  make(map[string]route),
		ignored: make(map[string]bool),
		done:    make(chan struct{}),
	}
}

// Subscribe registers a typed FIFO queue for a notification method. The
// reader decodes each matching notification's params and enqueues the
// value; malformed params are logged and dropped.
func Subscribe[T any](t *Transport, method string) *Queue[T] {
	q := NewQueue[T]()
	t.mu.Lock()
	t.routes[method] = route{
		put: func(params json.RawMessage) {
			var v T
			if err := json.Unmarshal(params, &v); err != nil {
				t.logger.Warn("dropping malformed notification",
					"method", method, "err", err)
				return
			}
			q.Put(v)
		},
		close: q.Close,
	}
	t.mu.Unlock()
	return q
}

// Ignore registers a notification method to be discarded silently.
func (t *Transport) Ignore(method string) {
	t.mu.Lock()
	t.ignored[method] = true
	t.mu.Unlock()
}

// Run reads framed messages until the stream closes or ctx ends. It always
// fails pending calls and closes subscribed queues on the way out. An
// unexpected stream close returns prover.ErrConnClosed; shutdown via Close
// or ctx returns nil.
func (t *Transport) Run(ctx context.Context) error {
	defer t.shutdown()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.done:
			return nil
		default:
		}

		msg, err := t.readMessage()
		if err != nil {
			if t.closed.Load() {
				return nil
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) ||
				errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, os.ErrClosed) {
				return prover.ErrConnClosed
			}
			t.logger.Warn("unreadable message", "err", err)
			continue
		}

		t.dispatch(msg)
	}
}

// Close stops the transport. Pending calls fail and queues close.
func (t *Transport) Close() error {
	t.shutdown()
	return nil
}

// shutdown releases everything blocked on the transport. Idempotent.
func (t *Transport) shutdown() {
	if t.closed.Swap(true) {
		return
	}
	close(t.done)

	t.mu.Lock()
	t.pending = make(map[int64]chan *response)
	routes := t.routes
	t.mu.Unlock()

	for _, r := range routes {
		r.close()
	}
}

// Call sends a request and waits for its response, decoding the result into
// result when non-nil. The context must carry a deadline; a request never
// waits longer than the caller allows.
func (t *Transport) Call(ctx context.Context, method string, params, result any) error {
	if t.closed.Load() {
		return prover.ErrConnClosed
	}

	id := t.nextID.Add(1)
	ch := make(chan *response, 1)

	t.mu.Lock()
	t.pending[id] = ch
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
	}()

	req := &request{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	if err := t.send(req); err != nil {
		return fmt.Errorf("send %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("call %s: %w", method, ctx.Err())
	case <-t.done:
		return prover.ErrConnClosed
	case resp := <-ch:
		if resp.Error != nil {
			return fmt.Errorf("call %s: %w", method, resp.Error)
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("unmarshal %s result: %w", method, err)
			}
		}
		return nil
	}
}

// Notify sends a notification (no response expected).
func (t *Transport) Notify(ctx context.Context, method string, params any) error {
	if t.closed.Load() {
		return prover.ErrConnClosed
	}
	return t.send(&request{JSONRPC: "2.0", Method: method, Params: params})
}

// send writes a message with the LSP content-length header.
func (t *Transport) send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(data))

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := io.WriteString(t.writer, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := t.writer.Write(data); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}

// readMessage reads a single framed message body.
func (t *Transport) readMessage() (json.RawMessage, error) {
	var contentLength int
	for {
		line, err := t.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if strings.HasPrefix(strings.ToLower(line), "content-length:") {
			parts := strings.SplitN(line, ":", 2)
			if len(parts) == 2 {
				if length, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil {
					contentLength = length
				}
			}
		}
		// Other headers (Content-Type) are irrelevant.
	}

	if contentLength == 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(t.reader, body); err != nil {
		return nil, err
	}
	return body, nil
}

// dispatch routes a message to a pending call or a notification queue.
func (t *Transport) dispatch(data json.RawMessage) {
	var probe struct {
		ID     *int64          `json:"id"`
		Method string          `json:"method"`
		Error  *RPCError       `json:"error"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		t.logger.Warn("undecodable message", "err", err)
		return
	}

	// A message with an id and a result or error is a response.
	if probe.ID != nil && probe.Method == "" {
		var resp response
		if err := json.Unmarshal(data, &resp); err != nil {
			return
		}
		t.handleResponse(&resp)
		return
	}

	if probe.Method != "" {
		var notif struct {
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		if err := json.Unmarshal(data, &notif); err != nil {
			return
		}
		t.handleNotification(notif.Method, notif.Params)
	}
}

// handleResponse completes the pending call waiting on this id.
func (t *Transport) handleResponse(resp *response) {
	t.mu.Lock()
	ch, ok := t.pending[resp.ID]
	if ok {
		delete(t.pending, resp.ID)
	}
	t.mu.Unlock()

	if !ok {
		t.logger.Debug("response for unknown request", "id", resp.ID)
		return
	}

	select {
	case ch <- resp:
	default:
	}
}

// handleNotification enqueues a notification onto its method's queue.
func (t *Transport) handleNotification(method string, params json.RawMessage) {
	t.mu.Lock()
	r, subscribed := t.routes[method]
	ignored := t.ignored[method]
	t.mu.Unlock()

	switch {
	case subscribed:
		r.put(params)
	case ignored:
	default:
		t.logger.Debug("discarding unhandled notification", "method", method)
	}
}

// IsClosed returns true once the transport has shut down.
func (t *Transport) IsClosed() bool {
	return t.closed.Load()
}
