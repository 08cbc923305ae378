package prover

import "strings"

// Obligation is a single proof goal: the hypotheses in scope and the goal
// type, both as rendered strings. Hypotheses sharing a type are grouped into
// one "names : type" line.
type Obligation struct {
	// Hypotheses are rendered "n1, n2 : type" lines, in display order.
	Hypotheses []string

	// Goal is the rendered type of the goal.
	Goal string
}

// String renders the obligation the way Coq displays a goal: hypotheses,
// a separator line, then the goal.
func (o Obligation) String() string {
	var b strings.Builder
	for _, h := range o.Hypotheses {
		b.WriteString(h)
		b.WriteByte('\n')
	}
	b.WriteString("============================\n")
	b.WriteString(o.Goal)
	return b.String()
}

// ProofContext is the complete state of an in-progress proof at a point in
// the document. A nil *ProofContext means "not inside a proof".
//
// ProofContext values are immutable once constructed.
type ProofContext struct {
	// Foreground holds the goals currently in focus; goal 0 is current.
	Foreground []Obligation

	// Background holds goals deferred by focusing (brackets, bullets),
	// flattened in order from the prover's focus-frame stack.
	Background []Obligation

	// Shelved holds goals put aside with the shelve tactic.
	Shelved []Obligation

	// GivenUp holds goals admitted with give_up.
	GivenUp []Obligation
}

// CurrentGoal returns the focused goal, or false when no foreground goal
// remains (the proof is complete or everything is deferred).
func (pc *ProofContext) CurrentGoal() (Obligation, bool) {
	if pc == nil || len(pc.Foreground) == 0 {
		return Obligation{}, false
	}
	return pc.Foreground[0], true
}

// AllGoals returns every goal in the context: foreground, background,
// shelved, and given-up, in that order.
func (pc *ProofContext) AllGoals() []Obligation {
	if pc == nil {
		return nil
	}
	all := make([]Obligation, 0,
		len(pc.Foreground)+len(pc.Background)+len(pc.Shelved)+len(pc.GivenUp))
	all = append(all, pc.Foreground...)
	all = append(all, pc.Background...)
	all = append(all, pc.Shelved...)
	all = append(all, pc.GivenUp...)
	return all
}

// IsComplete reports whether no goals remain anywhere in the context.
func (pc *ProofContext) IsComplete() bool {
	return pc != nil && len(pc.AllGoals()) == 0
}
