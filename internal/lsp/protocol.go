package lsp

import "encoding/json"

// Method names used over the coq-lsp wire.
const (
	methodInitialize         = "initialize"
	methodInitialized        = "initialized"
	methodShutdown           = "shutdown"
	methodExit               = "exit"
	methodDidOpen            = "textDocument/didOpen"
	methodDidChange          = "textDocument/didChange"
	methodGoals              = "proof/goals"
	methodLogMessage         = "window/logMessage"
	methodLogTrace           = "$/logTrace"
	methodPublishDiagnostics = "textDocument/publishDiagnostics"
	methodFileProgress       = "$/coq/fileProgress"
)

// DocumentURI identifies a document on the server. coq-lsp accepts bare
// names here; the client never maps them onto the filesystem.
type DocumentURI string

// Position in a text document, zero-based line and character offset.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range in a text document expressed as start and end positions.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// TextDocumentIdentifier identifies a text document.
type TextDocumentIdentifier struct {
	URI DocumentURI `json:"uri"`
}

// VersionedTextDocumentIdentifier identifies a specific version of a text
// document.
type VersionedTextDocumentIdentifier struct {
	TextDocumentIdentifier
	Version int `json:"version"`
}

// TextDocumentItem transfers a text document from client to server.
type TextDocumentItem struct {
	URI        DocumentURI `json:"uri"`
	LanguageID string      `json:"languageId"`
	Version    int         `json:"version"`
	Text       string      `json:"text"`
}

// TextDocumentContentChangeEvent carries a full-text replacement. The
// client never sends incremental ranges.
type TextDocumentContentChangeEvent struct {
	Text string `json:"text"`
}

// DidOpenTextDocumentParams are parameters for textDocument/didOpen.
type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

// DidChangeTextDocumentParams are parameters for textDocument/didChange.
type DidChangeTextDocumentParams struct {
	TextDocument   VersionedTextDocumentIdentifier  `json:"textDocument"`
	ContentChanges []TextDocumentContentChangeEvent `json:"contentChanges"`
}

// WorkspaceFolder represents a workspace folder.
type WorkspaceFolder struct {
	URI  DocumentURI `json:"uri"`
	Name string      `json:"name"`
}

// ClientCapabilities is sent empty; coq-lsp needs no capability hints from
// this client.
type ClientCapabilities struct{}

// InitializeParams are the parameters sent in an initialize request.
type InitializeParams struct {
	ProcessID        int                `json:"processId"`
	RootPath         string             `json:"rootPath,omitempty"`
	RootURI          DocumentURI        `json:"rootUri,omitempty"`
	Capabilities     ClientCapabilities `json:"capabilities"`
	Trace            string             `json:"trace,omitempty"`
	WorkspaceFolders []WorkspaceFolder  `json:"workspaceFolders,omitempty"`
}

// InitializeResult is the result of the initialize request. The server's
// capability set is kept raw; nothing in this client branches on it.
type InitializeResult struct {
	Capabilities json.RawMessage `json:"capabilities"`
	ServerInfo   *ServerInfo     `json:"serverInfo,omitempty"`
}

// ServerInfo describes the server from initialization.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// InitializedParams are the parameters of the initialized notification.
type InitializedParams struct{}

// LogMessageParams are parameters for window/logMessage.
type LogMessageParams struct {
	Type    int    `json:"type"`
	Message string `json:"message"`
}

// LogTraceParams are parameters for $/logTrace.
type LogTraceParams struct {
	Message string `json:"message"`
	Verbose string `json:"verbose,omitempty"`
}

// --- Diagnostics ---

// PublishDiagnosticsParams are parameters for
// textDocument/publishDiagnostics. coq-lsp tags every batch with the
// document version it was computed against.
type PublishDiagnosticsParams struct {
	URI         DocumentURI  `json:"uri"`
	Version     int          `json:"version"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// Diagnostic is one server-reported problem. Kept to the fields this client
// reads so values stay comparable for de-duplication.
type Diagnostic struct {
	Range    Range              `json:"range"`
	Severity DiagnosticSeverity `json:"severity,omitempty"`
	Message  string             `json:"message"`
}

// DiagnosticSeverity represents the severity of a diagnostic.
type DiagnosticSeverity int

const (
	DiagnosticSeverityError       DiagnosticSeverity = 1
	DiagnosticSeverityWarning     DiagnosticSeverity = 2
	DiagnosticSeverityInformation DiagnosticSeverity = 3
	DiagnosticSeverityHint        DiagnosticSeverity = 4
)

// IsSevere reports whether the severity counts as an error: numerically
// below the warning threshold.
func (s DiagnosticSeverity) IsSevere() bool {
	return s < DiagnosticSeverityWarning
}

// --- proof/goals ---

// GoalsParams are parameters for the proof/goals request.
type GoalsParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
}

// GoalAnswer is the proof/goals response. Goals is null outside a proof.
type GoalAnswer struct {
	Goals *GoalConfig `json:"goals"`
}

// GoalConfig is the full goal state at a position. Stack holds focus
// frames; each frame is a list of goal groups which flatten, in order, into
// the background sequence.
type GoalConfig struct {
	Goals   []Goal     `json:"goals"`
	Stack   [][][]Goal `json:"stack"`
	Shelf   []Goal     `json:"shelf"`
	GivenUp []Goal     `json:"given_up"`
}

// Goal is one proof obligation on the wire.
type Goal struct {
	Hyps []Hyp  `json:"hyps"`
	Ty   string `json:"ty"`
}

// Hyp is a hypothesis group: names sharing one type.
type Hyp struct {
	Names []string `json:"names"`
	Ty    string   `json:"ty"`
}
