package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/dshills/coqdrive/internal/prover"
)

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	goalColor    = color.New(color.FgGreen)
	hypColor     = color.New(color.FgCyan)
	headingColor = color.New(color.FgYellow, color.Bold)
	dimColor     = color.New(color.Faint)
)

// renderContext prints a proof context the way Coq's toplevel shows goals.
func renderContext(w io.Writer, pc *prover.ProofContext) {
	if pc == nil {
		dimColor.Fprintln(w, "not in a proof")
		return
	}
	if pc.IsComplete() {
		goalColor.Fprintln(w, "no more goals")
		return
	}

	headingColor.Fprintf(w, "%d goal(s)", len(pc.Foreground))
	if n := len(pc.Background); n > 0 {
		dimColor.Fprintf(w, " (%d in background)", n)
	}
	if n := len(pc.Shelved); n > 0 {
		dimColor.Fprintf(w, " (%d shelved)", n)
	}
	if n := len(pc.GivenUp); n > 0 {
		dimColor.Fprintf(w, " (%d given up)", n)
	}
	fmt.Fprintln(w)

	for i, obl := range pc.Foreground {
		if i > 0 {
			fmt.Fprintln(w)
			headingColor.Fprintf(w, "goal %d\n", i+1)
		}
		for _, h := range obl.Hypotheses {
			hypColor.Fprintf(w, "  %s\n", h)
		}
		fmt.Fprintln(w, "  ============================")
		goalColor.Fprintf(w, "  %s\n", obl.Goal)
	}
}
