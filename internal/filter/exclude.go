package filter

import (
	"os"
	"strings"

	"github.com/asmfreak/arensync/internal/debug"
	"github.com/asmfreak/arensync/internal/errors"
	"github.com/asmfreak/arensync/internal/textfile"
	"github.com/spf13/pflag"
)

// RejectFunc returns true if the file at the logical path item must be left
// out of the inventory.
type RejectFunc func(item string) bool

// RejectByPattern returns a RejectFunc which rejects files that match one of
// the patterns. Match errors are reported through warnf, the file is kept.
func RejectByPattern(patterns []string, warnf func(msg string, args ...interface{})) RejectFunc {
	parsed := ParsePatterns(patterns)
	return func(item string) bool {
		matched, err := List(parsed, item)
		if err != nil && warnf != nil {
			warnf("error for ignore pattern: %v", err)
		}

		if matched {
			debug.Log("path %q excluded by an ignore pattern", item)
			return true
		}

		return false
	}
}

// ReadPatternFile reads an ignore file. For each line, leading and trailing
// white space is removed, empty lines and lines starting with '#' are
// skipped. Environment variables are expanded, "$$" yields a literal '$'.
func ReadPatternFile(filename string) ([]string, error) {
	getenvOrDollar := func(s string) string {
		if s == "$" {
			return "$"
		}
		return os.Getenv(s)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.WithKind(errors.IO, errors.Wrap(err, "ReadFile"))
	}

	lines, err := textfile.Lines(data)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %v", filename)
	}

	var patterns []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, os.Expand(line, getenvOrDollar))
	}

	if err := ValidatePatterns(patterns); err != nil {
		return nil, errors.Fatalf("ignore file %v: %s", filename, err)
	}
	return patterns, nil
}

// ExcludePatternOptions collects ignore patterns given on the command line.
type ExcludePatternOptions struct {
	Excludes     []string
	ExcludeFiles []string
}

func (opts *ExcludePatternOptions) Add(f *pflag.FlagSet) {
	f.StringArrayVarP(&opts.Excludes, "exclude", "e", nil, "exclude a `pattern` (can be specified multiple times)")
	f.StringArrayVar(&opts.ExcludeFiles, "exclude-file", nil, "read exclude patterns from a `file` (can be specified multiple times)")
}

// CollectPatterns returns all patterns given directly and read from files.
func (opts ExcludePatternOptions) CollectPatterns() ([]string, error) {
	patterns := append([]string(nil), opts.Excludes...)
	for _, filename := range opts.ExcludeFiles {
		p, err := ReadPatternFile(filename)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, p...)
	}

	if err := ValidatePatterns(patterns); err != nil {
		return nil, errors.Fatalf("--exclude: %s", err)
	}
	return patterns, nil
}
