package lsp

import (
	"bufio"
	"io"
	"strings"
	"sync"
)

// stderrDrain continuously reads lines from the subprocess stderr so the
// pipe never fills and blocks the server. Lines are kept for post-mortem
// inspection.
type stderrDrain struct {
	mu    sync.Mutex
	lines []string
}

// drain reads until EOF. Run on its own goroutine; returns nil on EOF so a
// normal process exit does not count as a failure.
func (d *stderrDrain) drain(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		d.mu.Lock()
		d.lines = append(d.lines, line)
		d.mu.Unlock()
	}
	if err := scanner.Err(); err != nil {
		if errorIsClosedPipe(err) {
			return nil
		}
		return err
	}
	return nil
}

// Lines returns a copy of everything drained so far.
func (d *stderrDrain) Lines() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.lines))
	copy(out, d.lines)
	return out
}

func errorIsClosedPipe(err error) bool {
	return strings.Contains(err.Error(), "file already closed") ||
		strings.Contains(err.Error(), "closed pipe")
}
