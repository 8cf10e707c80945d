package tools

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"strings"

	"github.com/asmfreak/arensync/internal/backend"
	"github.com/asmfreak/arensync/internal/debug"
	"github.com/asmfreak/arensync/internal/errors"
)

// Command is a program with fixed leading arguments, e.g. "tar -v".
type Command struct {
	Program string
	Args    []string
}

// ParseCommand splits a configured command line like "gpg --homedir x".
func ParseCommand(s string) (Command, error) {
	program, args, err := backend.SplitShellArgs(s)
	if err != nil {
		return Command{}, errors.Wrapf(err, "invalid command %q", s)
	}
	return Command{Program: program, Args: args}, nil
}

func (c Command) String() string {
	return backend.ShellQuote(append([]string{c.Program}, c.Args...)...)
}

func (c Command) command(ctx context.Context, args ...string) *exec.Cmd {
	all := append(append([]string{}, c.Args...), args...)
	debug.Log("run %v %v", c.Program, all)
	return exec.CommandContext(ctx, c.Program, all...)
}

// toolError turns a failed program into a ToolFailure-kind error carrying
// the program's stderr output.
func toolError(program string, err error, stderr []byte) error {
	if err == nil {
		return nil
	}
	msg := strings.TrimSpace(string(stderr))
	if msg != "" {
		err = errors.Wrapf(err, "%v: %v", program, msg)
	} else {
		err = errors.Wrap(err, program)
	}
	return errors.WithKind(errors.ToolFailure, err)
}

// Run executes the command with args. stdin and stdout may be nil.
func (c Command) Run(ctx context.Context, stdin io.Reader, stdout io.Writer, args ...string) error {
	cmd := c.command(ctx, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	return toolError(c.Program, cmd.Run(), stderr.Bytes())
}

// pipeReader is the stdout of a running program. Close waits for the
// program and reports its failure.
type pipeReader struct {
	io.ReadCloser
	program string
	cmd     *exec.Cmd
	stderr  *bytes.Buffer
	done    bool
}

func (p *pipeReader) Close() error {
	if p.done {
		return nil
	}
	p.done = true

	// drain the rest so that the program is not killed by SIGPIPE
	_, _ = io.Copy(io.Discard, p.ReadCloser)
	return toolError(p.program, p.cmd.Wait(), p.stderr.Bytes())
}

// Pipe starts the command with args reading from stdin and returns its
// standard output.
func (c Command) Pipe(ctx context.Context, stdin io.Reader, args ...string) (io.ReadCloser, error) {
	cmd := c.command(ctx, args...)
	cmd.Stdin = stdin

	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "StdoutPipe")
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.WithKind(errors.ToolFailure, errors.Wrap(err, c.Program))
	}

	return &pipeReader{ReadCloser: stdout, program: c.Program, cmd: cmd, stderr: stderr}, nil
}
