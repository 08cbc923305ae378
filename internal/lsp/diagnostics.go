package lsp

import (
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"github.com/dshills/coqdrive/internal/prover"
)

// errorRule classifies a severe diagnostic message. Rules are tried in
// order; the first match decides.
type errorRule struct {
	match    func(msg string) bool
	classify func(msg string) error
}

var errorRules = []errorRule{
	{
		match: func(msg string) bool {
			return strings.Contains(msg, "Cannot find a physical path bound to logical path")
		},
		classify: func(msg string) error { return &prover.CoqExn{Message: msg} },
	},
	{
		match: regexp.MustCompile(
			`^The reference \S* was not found in the current environment\.`).MatchString,
		classify: func(msg string) error { return &prover.CoqExn{Message: msg} },
	},
}

// classifyDiagnostic maps a severe diagnostic message to its typed error.
// Unknown messages become UnrecognizedError rather than being dropped.
func classifyDiagnostic(msg string) error {
	for _, rule := range errorRules {
		if rule.match(msg) {
			return rule.classify(msg)
		}
	}
	return &prover.UnrecognizedError{Message: msg}
}

// checkErrors drains pending diagnostic batches without blocking and
// decides whether the document is in trouble.
//
// Batches computed against an older document version are discarded; they
// describe text that no longer exists. Within current batches, only
// error-severity diagnostics count, duplicates collapse, and the first
// severe entry wins: the statement owning its line and every later
// statement is rolled back locally, and its classification is returned.
// Nothing is resubmitted.
func checkErrors(q *Queue[PublishDiagnosticsParams], doc *document, logger *slog.Logger) error {
	var severe []Diagnostic

	for {
		batch, ok := q.TryGet()
		if !ok {
			break
		}
		if batch.Version < doc.version {
			logger.Debug("discarding stale diagnostics",
				"batchVersion", batch.Version, "docVersion", doc.version)
			continue
		}
		if batch.Version > doc.version {
			return fmt.Errorf("diagnostics for future document version %d (at %d)",
				batch.Version, doc.version)
		}
		for _, diag := range batch.Diagnostics {
			if diag.Severity.IsSevere() && !slices.Contains(severe, diag) {
				severe = append(severe, diag)
			}
		}
	}

	if len(severe) == 0 {
		return nil
	}

	first := severe[0]
	idx, stmt, err := doc.StatementAtLine(first.Range.Start.Line)
	if err != nil {
		return fmt.Errorf("diagnostic at line %d: %w", first.Range.Start.Line, err)
	}
	logger.Debug("rolling back after error",
		"statement", stmt,
		"discarded", doc.Len()-idx,
		"message", first.Message)
	doc.Truncate(idx)

	return classifyDiagnostic(first.Message)
}
