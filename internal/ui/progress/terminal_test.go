package progress

import (
	"bytes"
	"testing"

	rtest "github.com/asmfreak/arensync/internal/test"
)

func TestTerminalVerbosity(t *testing.T) {
	for _, test := range []struct {
		verbosity uint
		out, err  string
	}{
		{0, "", "error\n"},
		{1, "normal\n", "error\n"},
		{2, "normal\nverbose\n", "error\n"},
		{3, "normal\nverbose\nvery verbose\n", "error\n"},
	} {
		var stdout, stderr bytes.Buffer
		term := NewTerminal(&stdout, &stderr, test.verbosity)

		term.E("error")
		term.P("normal")
		term.V("verbose\n")
		term.VV("very %v", "verbose")

		rtest.Equals(t, test.out, stdout.String())
		rtest.Equals(t, test.err, stderr.String())
	}
}

func TestTerminalStatusNoTerminal(t *testing.T) {
	var stdout bytes.Buffer
	term := NewTerminal(&stdout, &stdout, 1)

	term.Status("Files to unpack [000002]")
	term.Status("Files to unpack [000001]")
	term.ClearStatus()
	term.P("done")

	rtest.Equals(t, "Files to unpack [000002]\nFiles to unpack [000001]\ndone\n", stdout.String())
}

func TestTerminalStatusInPlace(t *testing.T) {
	var stdout bytes.Buffer
	term := NewTerminal(&stdout, &stdout, 1)
	term.canUpdateStatus = true

	term.Status("one")
	term.Status("two")
	term.ClearStatus()

	rtest.Equals(t, "\r\x1b[2Kone\r\x1b[2Ktwo\n", stdout.String())
}

func TestTerminalQuietStatus(t *testing.T) {
	var stdout bytes.Buffer
	term := NewTerminal(&stdout, &stdout, 0)

	term.Status("hidden")
	term.ClearStatus()
	rtest.Equals(t, "", stdout.String())
}
