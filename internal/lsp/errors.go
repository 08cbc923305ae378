package lsp

import (
	"errors"
	"fmt"
)

// Standard errors returned by the transport and document layers.
var (
	// ErrDocumentNotOpen indicates a document operation before Open.
	ErrDocumentNotOpen = errors.New("virtual document not open")

	// ErrDocumentAlreadyOpen indicates a second Open on the session.
	ErrDocumentAlreadyOpen = errors.New("virtual document already open")

	// ErrQueueClosed indicates a read from a notification queue after the
	// transport shut down and the queue drained.
	ErrQueueClosed = errors.New("notification queue closed")

	// ErrLineOutOfRange indicates a diagnostic line number past every
	// known statement. The server and the local document disagree; this
	// is a contract violation, not a recoverable condition.
	ErrLineOutOfRange = errors.New("diagnostic line beyond known statements")
)

// RPCError represents a JSON-RPC error object from the server.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("rpc error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Standard JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)
