// Package session selects and builds the backend for a Coq version.
//
// Backend selection is an explicit decision made from a parsed version, not
// ambient process state: callers hand in the version they detected and get
// the matching transport, or a clear error for versions this module cannot
// drive.
package session

import (
	"context"
	"fmt"

	"github.com/dshills/coqdrive/internal/config"
	"github.com/dshills/coqdrive/internal/lsp"
	"github.com/dshills/coqdrive/internal/prover"
	"github.com/dshills/coqdrive/internal/serapi"
)

// New returns the backend matching the Coq version: sertop for versions
// before 8.16, coq-lsp from 8.16 on. Versions before 8.10 predate both
// transports and are rejected.
func New(ctx context.Context, version prover.Version, cfg config.Config, opts ...lsp.Option) (prover.Backend, error) {
	if !version.Supported() {
		return nil, fmt.Errorf("coq %s is not supported (8.10 or newer required)", version)
	}
	if !version.SupportsLSP() {
		backend, err := serapi.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("coq %s requires the sertop backend: %w", version, err)
		}
		return backend, nil
	}
	backend, err := lsp.New(ctx, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("start coq-lsp backend for coq %s: %w", version, err)
	}
	return backend, nil
}
