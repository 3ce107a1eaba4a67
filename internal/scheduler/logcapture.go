package scheduler

import (
	"bufio"
	"bytes"
	"sync"
)

// logCapture is an io.Writer that retains only the last maxLines written to
// it, splitting on newlines the way a thread-local log handler would buffer
// one job's console output before folding it into a JobExecution row.
type logCapture struct {
	mu       sync.Mutex
	maxLines int
	lines    []string
}

func newLogCapture(maxLines int) *logCapture {
	return &logCapture{maxLines: maxLines}
}

func (c *logCapture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	scanner := bufio.NewScanner(bytes.NewReader(p))
	for scanner.Scan() {
		if len(c.lines) >= c.maxLines {
			c.lines = c.lines[1:]
		}
		c.lines = append(c.lines, scanner.Text())
	}
	return len(p), nil
}

// Lines returns a copy of the captured lines, oldest first.
func (c *logCapture) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.lines))
	copy(out, c.lines)
	return out
}
