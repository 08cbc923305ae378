package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/coqdrive/internal/config"
	"github.com/dshills/coqdrive/internal/lsp"
	"github.com/dshills/coqdrive/internal/prover"
	"github.com/dshills/coqdrive/internal/session"
)

var (
	runCoqVersion string
	runCommand    string
	runRootDir    string
)

func init() {
	runCmd.Flags().StringVar(&runCoqVersion, "coq-version", "8.16", "Coq version to drive")
	runCmd.Flags().StringVar(&runCommand, "server", "", "prover server command (overrides config)")
	runCmd.Flags().StringVar(&runRootDir, "root", "", "workspace root (overrides config)")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start an interactive prover session",
	Long: `run starts a prover session and reads statements from stdin, one
per line. After each statement the proof state is printed. Session
commands: :cancel undoes the last statement, :reset clears the whole
document, :context reprints the proof state, :quit exits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if runCommand != "" {
			cfg.Command = runCommand
		}
		if runRootDir != "" {
			cfg.RootDir = runRootDir
		}

		version, err := prover.ParseVersion(runCoqVersion)
		if err != nil {
			return fmt.Errorf("bad --coq-version: %w", err)
		}

		logger := newLogger(cfg.LogLevel)
		ctx := cmd.Context()

		backend, err := session.New(ctx, version, cfg, lsp.WithLogger(logger))
		if err != nil {
			return err
		}
		defer backend.Close()

		return repl(ctx, backend, os.Stdin, os.Stdout)
	},
}

// loadConfig reads the configured TOML file and applies global flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	return cfg, nil
}

// newLogger builds the session logger at the configured level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// repl feeds statements from r to the backend and prints proof state to w.
func repl(ctx context.Context, backend prover.Backend, r *os.File, w *os.File) error {
	scanner := bufio.NewScanner(r)
	fmt.Fprintln(w, "coqdrive session ready. Statements end with a period; :quit exits.")

	for {
		fmt.Fprint(w, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case ":quit", ":q":
			return nil
		case ":cancel":
			if err := backend.CancelLastStatement(); err != nil {
				printError(w, err)
				continue
			}
			printContext(ctx, backend, w)
		case ":reset":
			backend.ResetCommandState()
			fmt.Fprintln(w, "document cleared")
		case ":context":
			printContext(ctx, backend, w)
		default:
			if err := backend.AddStatement(ctx, line); err != nil {
				printError(w, err)
				continue
			}
			printContext(ctx, backend, w)
		}
	}
}

// printContext fetches and renders the current proof state.
func printContext(ctx context.Context, backend prover.Backend, w *os.File) {
	pc, err := backend.GetProofContext(ctx)
	if err != nil {
		printError(w, err)
		return
	}
	renderContext(w, pc)
}

// printError renders an error, distinguishing recoverable prover errors
// from session-fatal ones.
func printError(w *os.File, err error) {
	var coqExn *prover.CoqExn
	var unrec *prover.UnrecognizedError
	switch {
	case errors.As(err, &coqExn):
		errorColor.Fprintf(w, "coq error: %s\n", coqExn.Message)
		fmt.Fprintln(w, "(statement rolled back)")
	case errors.As(err, &unrec):
		errorColor.Fprintf(w, "error: %s\n", unrec.Message)
		fmt.Fprintln(w, "(statement rolled back)")
	case errors.Is(err, prover.ErrNoStatements):
		fmt.Fprintln(w, "nothing to cancel")
	default:
		errorColor.Fprintf(w, "session error: %v\n", err)
	}
}
