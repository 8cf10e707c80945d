package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

const (
	posixMoveCursorHome = "\r"
	posixClearLine      = "\x1b[2K"
)

// Terminal is a Printer writing to stdout and stderr. On a terminal the
// status line is rewritten in place, otherwise every update is printed on a
// line of its own.
type Terminal struct {
	mu        sync.Mutex
	stdout    io.Writer
	stderr    io.Writer
	verbosity uint
	// canUpdateStatus is true if the status line can be rewritten in place.
	canUpdateStatus bool
	statusShown     bool
	lastStatus      string
}

var _ Printer = &Terminal{}

type fder interface {
	Fd() uintptr
}

// NewTerminal returns a Terminal. Verbosity 0 prints only errors, 1 is the
// normal output, 2 and 3 add the V and VV messages.
func NewTerminal(stdout, stderr io.Writer, verbosity uint) *Terminal {
	t := &Terminal{
		stdout:    stdout,
		stderr:    stderr,
		verbosity: verbosity,
	}
	if f, ok := stdout.(fder); ok {
		t.canUpdateStatus = CanUpdateStatus(f.Fd())
	}
	return t
}

// CanUpdateStatus returns true if status lines can be printed, the process
// output is not redirected to a file or pipe.
func CanUpdateStatus(fd uintptr) bool {
	if !term.IsTerminal(int(fd)) {
		return false
	}
	term := os.Getenv("TERM")
	if term == "" {
		return false
	}
	return term != "dumb"
}

// clearStatus removes a status line shown in place. The caller holds t.mu.
func (t *Terminal) clearStatus() {
	if t.canUpdateStatus && t.statusShown {
		_, _ = io.WriteString(t.stdout, posixMoveCursorHome+posixClearLine)
		t.statusShown = false
	}
}

func (t *Terminal) print(wr io.Writer, minVerbosity uint, msg string, args ...interface{}) {
	if t.verbosity < minVerbosity {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.clearStatus()
	s := fmt.Sprintf(msg, args...)
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	_, _ = io.WriteString(wr, s)

	// keep the status visible below the message
	if t.canUpdateStatus && t.lastStatus != "" && wr == t.stdout {
		_, _ = io.WriteString(t.stdout, t.lastStatus)
		t.statusShown = true
	}
}

// E prints an error message to stderr, regardless of the verbosity.
func (t *Terminal) E(msg string, args ...interface{}) {
	t.print(t.stderr, 0, msg, args...)
}

// P prints a message if verbosity >= 1.
func (t *Terminal) P(msg string, args ...interface{}) {
	t.print(t.stdout, 1, msg, args...)
}

// V prints a message if verbosity >= 2.
func (t *Terminal) V(msg string, args ...interface{}) {
	t.print(t.stdout, 2, msg, args...)
}

// VV prints a message if verbosity >= 3.
func (t *Terminal) VV(msg string, args ...interface{}) {
	t.print(t.stdout, 3, msg, args...)
}

// Status replaces the status line.
func (t *Terminal) Status(line string) {
	if t.verbosity < 1 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	line = strings.TrimRight(line, "\n")
	if !t.canUpdateStatus {
		_, _ = io.WriteString(t.stdout, line+"\n")
		return
	}

	_, _ = io.WriteString(t.stdout, posixMoveCursorHome+posixClearLine+line)
	t.lastStatus = line
	t.statusShown = true
}

// ClearStatus ends the status line, the last status stays visible.
func (t *Terminal) ClearStatus() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.canUpdateStatus && t.statusShown {
		_, _ = io.WriteString(t.stdout, "\n")
	}
	t.statusShown = false
	t.lastStatus = ""
}
