package process

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
)

// State represents the state of a prover process.
type State int

const (
	// StateRunning indicates the process is currently running.
	StateRunning State = iota
	// StateExited indicates the process has exited normally or with an error.
	StateExited
	// StateKilled indicates the process was killed by a signal.
	StateKilled
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateKilled:
		return "killed"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Process is a running prover subprocess with piped standard I/O.
//
// Process is safe for concurrent use.
type Process struct {
	// ID uniquely identifies this process instance.
	ID string

	// Name is a human-readable name (typically the command).
	Name string

	// Cmd is the underlying exec.Cmd.
	Cmd *exec.Cmd

	// Stdin is the process's standard input.
	Stdin io.WriteCloser

	// Stdout is the process's standard output.
	Stdout io.ReadCloser

	// Stderr is the process's standard error.
	Stderr io.ReadCloser

	// Started is the time the process was started.
	Started time.Time

	done     chan struct{}
	state    atomic.Int32
	exitCode atomic.Int32

	mu      sync.RWMutex
	exitErr error
}

// Launch starts cmd with stdin, stdout, and stderr piped and begins
// tracking its lifetime. The command must not have been started.
func Launch(name string, cmd *exec.Cmd) (*Process, error) {
	p := &Process{
		ID:   uuid.New().String(),
		Name: name,
		Cmd:  cmd,
		done: make(chan struct{}),
	}
	p.exitCode.Store(-1)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("create stderr pipe: %w", err)
	}
	p.Stdin = stdin
	p.Stdout = stdout
	p.Stderr = stderr

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		stderr.Close()
		return nil, fmt.Errorf("start %s: %w", name, err)
	}

	p.Started = time.Now()
	p.state.Store(int32(StateRunning))
	go p.waitLoop()

	return p, nil
}

// waitLoop waits for the process to exit and records the outcome.
func (p *Process) waitLoop() {
	err := p.Cmd.Wait()

	p.mu.Lock()
	p.exitErr = err
	p.mu.Unlock()

	exitCode := 0
	state := StateExited
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
				state = StateKilled
			}
		} else {
			exitCode = -1
		}
	}

	p.exitCode.Store(int32(exitCode))
	p.state.Store(int32(state))
	close(p.done)
}

// State returns the current process state.
func (p *Process) State() State {
	return State(p.state.Load())
}

// IsRunning returns true if the process has not exited yet.
func (p *Process) IsRunning() bool {
	return p.State() == StateRunning
}

// Done returns a channel that is closed when the process exits.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// ExitCode returns the process exit code, or -1 before exit.
func (p *Process) ExitCode() int {
	return int(p.exitCode.Load())
}

// ExitError returns the error from waiting on the process, if any.
func (p *Process) ExitError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exitErr
}

// PID returns the operating system process ID, or -1 if unavailable.
func (p *Process) PID() int {
	if p.Cmd.Process == nil {
		return -1
	}
	return p.Cmd.Process.Pid
}

// Signal sends a signal to the process. Signaling an exited process is a
// no-op rather than an error; shutdown paths call this unconditionally.
func (p *Process) Signal(sig os.Signal) error {
	if !p.IsRunning() || p.Cmd.Process == nil {
		return nil
	}
	return p.Cmd.Process.Signal(sig)
}

// Terminate sends SIGTERM to the process.
func (p *Process) Terminate() error {
	return p.Signal(syscall.SIGTERM)
}

// Kill sends SIGKILL to the process.
func (p *Process) Kill() error {
	return p.Signal(syscall.SIGKILL)
}

// Shutdown terminates the process gracefully, escalating to SIGKILL after
// the timeout. It blocks until the process has exited.
func (p *Process) Shutdown(timeout time.Duration) {
	if !p.IsRunning() {
		return
	}

	_ = p.Terminate()

	select {
	case <-p.done:
	case <-time.After(timeout):
		_ = p.Kill()
		<-p.done
	}
}

// Close closes the process's I/O handles. It does not kill the process.
func (p *Process) Close() error {
	var errs []error
	if p.Stdin != nil {
		if err := p.Stdin.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close stdin: %w", err))
		}
	}
	if p.Stdout != nil {
		if err := p.Stdout.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close stdout: %w", err))
		}
	}
	if p.Stderr != nil {
		if err := p.Stderr.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close stderr: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close process I/O: %v", errs)
	}
	return nil
}

// Runtime returns how long the process has been (or was) running.
func (p *Process) Runtime() time.Duration {
	if p.Started.IsZero() {
		return 0
	}
	return time.Since(p.Started)
}
