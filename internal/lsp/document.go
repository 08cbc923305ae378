package lsp

import (
	"context"
	"strings"
)

// document is the client's virtual prover document. Statements accumulate
// locally and the full joined text is resent on every synchronize with a
// strictly increasing version. The server never sees partial edits.
//
// Not safe for concurrent use; the owning client serializes access.
type document struct {
	uri        DocumentURI
	version    int
	statements []string
	open       bool
	dirty      bool
}

// Open announces an empty document to the server at version 1.
func (d *document) Open(ctx context.Context, t *Transport, uri DocumentURI) error {
	if d.open {
		return ErrDocumentAlreadyOpen
	}
	d.uri = uri
	d.version = 1
	d.statements = nil
	d.dirty = true

	params := &DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{
			URI:        uri,
			LanguageID: "Coq",
			Version:    d.version,
			Text:       "",
		},
	}
	if err := t.Notify(ctx, methodDidOpen, params); err != nil {
		return err
	}
	d.open = true
	return nil
}

// Append adds a statement locally. Trailing newlines are stripped; interior
// newlines stay, so one statement may own several document lines. The server
// is not told until the next synchronize.
func (d *document) Append(stmt string) {
	d.statements = append(d.statements, strings.TrimRight(stmt, "\n"))
	d.dirty = true
}

// RemoveLast drops the most recent statement.
func (d *document) RemoveLast() error {
	if len(d.statements) == 0 {
		return nil
	}
	d.statements = d.statements[:len(d.statements)-1]
	d.dirty = true
	return nil
}

// Truncate discards statements from index n onward.
func (d *document) Truncate(n int) {
	if n < len(d.statements) {
		d.statements = d.statements[:n]
		d.dirty = true
	}
}

// Reset clears all statements without closing the document. The version
// still advances so stale diagnostics stay distinguishable.
func (d *document) Reset() {
	d.version++
	d.statements = nil
	d.dirty = true
}

// Len returns the statement count.
func (d *document) Len() int {
	return len(d.statements)
}

// Text returns the full document text: statements joined by newlines.
func (d *document) Text() string {
	return strings.Join(d.statements, "\n")
}

// Synchronize pushes the full current text at the next version.
func (d *document) Synchronize(ctx context.Context, t *Transport) error {
	if !d.open {
		return ErrDocumentNotOpen
	}
	d.version++
	params := &DidChangeTextDocumentParams{
		TextDocument: VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: TextDocumentIdentifier{URI: d.uri},
			Version:                d.version,
		},
		ContentChanges: []TextDocumentContentChangeEvent{{Text: d.Text()}},
	}
	return t.Notify(ctx, methodDidChange, params)
}

// EndPosition computes the position just past the last character of the
// document. Character offsets count runes, matching how the server counts
// columns.
func (d *document) EndPosition() Position {
	text := d.Text()
	if text == "" {
		return Position{Line: 0, Character: 0}
	}
	lines := strings.Split(text, "\n")
	last := lines[len(lines)-1]
	return Position{
		Line:      len(lines) - 1,
		Character: len([]rune(last)),
	}
}

// StatementAtLine finds the statement owning a zero-based document line by
// walking cumulative line counts. Lines past the last statement violate the
// document contract.
func (d *document) StatementAtLine(line int) (int, string, error) {
	cur := 0
	for i, stmt := range d.statements {
		cur += strings.Count(stmt, "\n") + 1
		if line < cur {
			return i, stmt, nil
		}
	}
	return 0, "", ErrLineOutOfRange
}
