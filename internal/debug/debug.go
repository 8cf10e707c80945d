// Package debug writes an optional trace of what arensync does. It is
// configured by environment variables only:
//
//	DEBUG_LOG    file to append all messages to
//	DEBUG_FUNCS  comma separated function patterns to print on stderr
//	DEBUG_FILES  comma separated file:line patterns to print on stderr
//
// Patterns may be prefixed with '-' to disable a match. The special pattern
// "all" enables every message.
package debug

import (
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
)

// filter maps glob patterns to whether matching messages are printed.
type filter map[string]bool

// parseFilter parses a comma separated pattern list. normalize is applied to
// every pattern before the optional '+' or '-' prefix is removed.
func parseFilter(list string, normalize func(string) string) (filter, error) {
	f := make(filter)
	for _, item := range strings.Split(list, ",") {
		pattern := normalize(strings.TrimSpace(item))
		if pattern == "" {
			continue
		}

		enable := true
		switch pattern[0] {
		case '-':
			enable = false
			pattern = pattern[1:]
		case '+':
			pattern = pattern[1:]
		}

		if _, err := path.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		f[pattern] = enable
	}
	return f, nil
}

// match reports whether a message for key is printed. An exact entry wins
// over a glob, a glob over "all".
func (f filter) match(key string) bool {
	if enable, ok := f[key]; ok {
		return enable
	}
	for pattern, enable := range f {
		if ok, _ := path.Match(pattern, key); ok {
			return enable
		}
	}
	return f["all"]
}

// filePattern turns "diff.go" into "*/diff.go:*" so that it matches the
// "dir/file:line" positions of log messages.
func filePattern(s string) string {
	if s == "" || s == "all" {
		return s
	}
	if !strings.Contains(s, "/") {
		s = "*/" + s
	}
	if !strings.Contains(s, ":") {
		s += ":*"
	}
	return s
}

type tracer struct {
	file   *log.Logger
	stderr io.Writer
	funcs  filter
	files  filter
}

func (t *tracer) enabled() bool {
	return t != nil && (t.file != nil || len(t.funcs) > 0 || len(t.files) > 0)
}

var trace = setup()

func setup() *tracer {
	t, err := newTracer(os.Getenv, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "debug: %v\n", err)
		os.Exit(2)
	}
	if t.enabled() {
		fmt.Fprintf(os.Stderr, "debug enabled\n")
	}
	return t
}

func newTracer(getenv func(string) string, stderr io.Writer) (*tracer, error) {
	t := &tracer{stderr: stderr}

	if name := getenv("DEBUG_LOG"); name != "" {
		f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, fmt.Errorf("unable to open log file: %w", err)
		}
		fmt.Fprintf(stderr, "debug log file %v\n", name)
		t.file = log.New(f, "", log.LstdFlags)
	}

	var err error
	if t.funcs, err = parseFilter(getenv("DEBUG_FUNCS"), func(s string) string { return s }); err != nil {
		return nil, err
	}
	if t.files, err = parseFilter(getenv("DEBUG_FILES"), filePattern); err != nil {
		return nil, err
	}
	return t, nil
}

func goroutineNum() int {
	buf := make([]byte, 20)
	runtime.Stack(buf, false)
	var num int
	_, _ = fmt.Sscanf(string(buf), "goroutine %d ", &num)
	return num
}

// caller returns the function name and the "dir/file:line" position skip
// frames up.
func caller(skip int) (fn, pos string) {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return "", ""
	}
	pos = fmt.Sprintf("%s/%s:%d", filepath.Base(filepath.Dir(file)), filepath.Base(file), line)
	return path.Base(runtime.FuncForPC(pc).Name()), pos
}

func (t *tracer) log(fn, pos, format string, args []interface{}) {
	if !strings.HasSuffix(format, "\n") {
		format += "\n"
	}

	// digests and similar values print their short form
	type shortener interface {
		Str() string
	}
	for i, arg := range args {
		if s, ok := arg.(shortener); ok {
			args[i] = s.Str()
		}
	}

	line := fmt.Sprintf("%s\t%s\t%d\t%s", pos, fn, goroutineNum(), fmt.Sprintf(format, args...))
	if t.file != nil {
		t.file.Print(line)
	}
	if t.files.match(pos) || t.funcs.match(fn) {
		_, _ = io.WriteString(t.stderr, line)
	}
}

// Log prints a message to the debug log (if debug is enabled).
func Log(format string, args ...interface{}) {
	if !trace.enabled() {
		return
	}
	fn, pos := caller(1)
	trace.log(fn, pos, format, args)
}
