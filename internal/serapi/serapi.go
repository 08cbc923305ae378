// Package serapi declares the sertop backend boundary.
//
// Older Coq releases (before 8.16) are driven through sertop, a
// symbolic-expression REPL, instead of a language server. sertop keeps
// per-statement state IDs, supports Interrupt via signals, and answers
// vernacular queries, so its Backend surface is wider than the LSP one.
// This module does not bundle the sertop wire protocol; the package exists
// so the session factory has a concrete seam to route older versions
// through, and so callers get a precise error instead of a silent fallback.
package serapi

import (
	"context"
	"errors"

	"github.com/dshills/coqdrive/internal/config"
	"github.com/dshills/coqdrive/internal/prover"
)

// ErrNotBundled indicates the sertop backend is not included in this build.
var ErrNotBundled = errors.New("serapi: sertop backend not bundled")

// New reports the sertop backend as unavailable. The signature matches the
// LSP constructor so the factory treats both arms uniformly.
func New(ctx context.Context, cfg config.Config) (prover.Backend, error) {
	return nil, ErrNotBundled
}
