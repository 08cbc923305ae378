package lsp

import (
	"context"
	"fmt"
	"strings"

	"github.com/dshills/coqdrive/internal/prover"
)

// queryGoals asks the server for the proof state at the end of the document
// and parses the answer into the shared model.
func queryGoals(ctx context.Context, t *Transport, uri DocumentURI, pos Position) (*prover.ProofContext, error) {
	params := &GoalsParams{
		TextDocument: TextDocumentIdentifier{URI: uri},
		Position:     pos,
	}
	var answer GoalAnswer
	if err := t.Call(ctx, methodGoals, params, &answer); err != nil {
		return nil, fmt.Errorf("query goals: %w", err)
	}
	return parseGoalAnswer(&answer), nil
}

// parseGoalAnswer converts a wire goal answer into a ProofContext. A null
// goal config means no proof is in progress and yields nil.
//
// The server reports unfocused goals as a stack of focus frames, each frame
// holding goal groups. Callers see a single flat background sequence;
// flattening preserves frame order and group order within frames.
func parseGoalAnswer(answer *GoalAnswer) *prover.ProofContext {
	if answer == nil || answer.Goals == nil {
		return nil
	}
	cfg := answer.Goals

	var background []prover.Obligation
	for _, frame := range cfg.Stack {
		for _, group := range frame {
			for _, g := range group {
				background = append(background, parseObligation(g))
			}
		}
	}

	return &prover.ProofContext{
		Foreground: parseObligations(cfg.Goals),
		Background: background,
		Shelved:    parseObligations(cfg.Shelf),
		GivenUp:    parseObligations(cfg.GivenUp),
	}
}

func parseObligations(goals []Goal) []prover.Obligation {
	out := make([]prover.Obligation, 0, len(goals))
	for _, g := range goals {
		out = append(out, parseObligation(g))
	}
	return out
}

// parseObligation renders hypothesis groups the way callers expect: comma
// separated names, then the shared type.
func parseObligation(g Goal) prover.Obligation {
	hyps := make([]string, 0, len(g.Hyps))
	for _, h := range g.Hyps {
		hyps = append(hyps, strings.Join(h.Names, ", ")+" : "+h.Ty)
	}
	return prover.Obligation{
		Hypotheses: hyps,
		Goal:       g.Ty,
	}
}
