// Package config loads client configuration for a prover session.
//
// Configuration is TOML. A missing file is not an error; defaults cover
// every field so the zero-config path works against a coq-lsp on $PATH.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds everything needed to start and drive a prover session.
type Config struct {
	// Command is the prover language-server executable.
	Command string `toml:"command"`

	// Args are extra command-line arguments for the server.
	Args []string `toml:"args"`

	// RootDir is the workspace root handed to the server during
	// initialization. Defaults to the current directory.
	RootDir string `toml:"root_dir"`

	// TimeoutSeconds bounds every synchronous request, including the
	// startup handshake.
	TimeoutSeconds int `toml:"timeout_seconds"`

	// Trace is the trace verbosity sent in the initialize request
	// ("off", "messages", or "verbose").
	Trace string `toml:"trace"`

	// DocName overrides the virtual document name. When empty a unique
	// per-session name is generated.
	DocName string `toml:"doc_name"`

	// LogLevel selects the slog level ("debug", "info", "warn", "error").
	LogLevel string `toml:"log_level"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Command:        "coq-lsp",
		RootDir:        ".",
		TimeoutSeconds: 30,
		Trace:          "off",
		LogLevel:       "warn",
	}
}

// RequestTimeout returns TimeoutSeconds as a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Load reads configuration from path, layered over Default. A missing file
// yields the defaults; a malformed file is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ParseError{Path: path, Message: err.Error(), Err: err}
	}

	return cfg, cfg.Validate()
}

// Validate rejects values the rest of the client cannot work with.
func (c Config) Validate() error {
	if c.Command == "" {
		return fmt.Errorf("config: command must not be empty")
	}
	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("config: timeout_seconds must be positive, got %d", c.TimeoutSeconds)
	}
	switch c.Trace {
	case "off", "messages", "verbose":
	default:
		return fmt.Errorf("config: trace must be off, messages, or verbose, got %q", c.Trace)
	}
	return nil
}

// ParseError represents an error while parsing a configuration file.
type ParseError struct {
	Path    string
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
