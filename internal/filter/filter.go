// Package filter matches logical paths against ignore patterns.
//
// A pattern is a list of path.Match patterns joined by '/'. Within a
// segment '*' matches any run of characters and '?' matches a single
// character, neither crosses a '/'. The segment '**' matches any number of
// intermediate directories. Patterns that do not start with '/' match at any
// depth, so "*.tmp" rejects "a.tmp" as well as "dir/sub/a.tmp".
package filter

import (
	"path"
	"strings"

	"github.com/asmfreak/arensync/internal/errors"
)

// ErrBadString is returned when Match is called with the empty string as the
// second argument.
var ErrBadString = errors.New("filter.Match: string is empty")

// Pattern represents a preparsed filter pattern.
type Pattern struct {
	original string
	parts    []string
}

func (p Pattern) String() string { return p.original }

func prepareStr(str string) ([]string, error) {
	if str == "" {
		return nil, ErrBadString
	}
	str = strings.TrimPrefix(strings.ReplaceAll(str, "\\", "/"), "/")
	return strings.Split(str, "/"), nil
}

func preparePattern(pattern string) Pattern {
	cleaned := path.Clean(strings.ReplaceAll(pattern, "\\", "/"))
	return Pattern{original: pattern, parts: strings.Split(cleaned, "/")}
}

// Match returns true if str matches the pattern. When the pattern is
// malformed, path.ErrBadPattern is returned. The empty pattern matches
// everything, when str is the empty string ErrBadString is returned.
func Match(pattern, str string) (matched bool, err error) {
	if pattern == "" {
		return true, nil
	}

	strs, err := prepareStr(str)
	if err != nil {
		return false, err
	}

	return match(preparePattern(pattern).parts, strs)
}

func hasDoubleWildcard(list []string) (ok bool, pos int) {
	for i, item := range list {
		if item == "**" {
			return true, i
		}
	}

	return false, 0
}

func match(patterns, strs []string) (matched bool, err error) {
	if ok, pos := hasDoubleWildcard(patterns); ok {
		// the empty root element of an absolute pattern matches no segment
		root := 0
		if patterns[0] == "" {
			root = 1
		}

		// gradually expand '**' into separate wildcards
		newPat := make([]string, len(strs)+root)
		copy(newPat, patterns[:pos])
		for i := 0; i <= len(strs)-(len(patterns)-root)+1; i++ {
			newPat := newPat[:pos+i]
			// in the first iteration the wildcard expands to nothing
			if i > 0 {
				newPat[pos+i-1] = "*"
			}
			newPat = append(newPat, patterns[pos+1:]...)

			matched, err := match(newPat, strs)
			if err != nil {
				return false, err
			}

			if matched {
				return true, nil
			}
		}

		return false, nil
	}

	// absolute patterns are anchored at the root of the logical path
	anchored := len(patterns) > 0 && patterns[0] == ""
	if anchored {
		patterns = patterns[1:]
	}

	if len(patterns) == 0 && len(strs) == 0 {
		return true, nil
	}

	if len(patterns) == 0 || len(patterns) > len(strs) {
		return false, nil
	}

	maxOffset := len(strs) - len(patterns)
	if anchored {
		maxOffset = 0
	}

outer:
	for offset := maxOffset; offset >= 0; offset-- {
		for i := len(patterns) - 1; i >= 0; i-- {
			ok, err := path.Match(patterns[i], strs[offset+i])
			if err != nil {
				return false, errors.Wrap(err, "Match")
			}

			if !ok {
				continue outer
			}
		}

		return true, nil
	}

	return false, nil
}

// ParsePatterns prepares a list of patterns for use with List. Empty
// patterns are dropped.
func ParsePatterns(patterns []string) []Pattern {
	parsed := make([]Pattern, 0, len(patterns))
	for _, pat := range patterns {
		if pat == "" {
			continue
		}
		parsed = append(parsed, preparePattern(pat))
	}
	return parsed
}

// List returns true if str matches one of the patterns. An empty list never
// matches.
func List(patterns []Pattern, str string) (matched bool, err error) {
	if len(patterns) == 0 {
		return false, nil
	}

	strs, err := prepareStr(str)
	if err != nil {
		return false, err
	}

	for _, pat := range patterns {
		m, err := match(pat.parts, strs)
		if err != nil {
			return false, err
		}
		if m {
			return true, nil
		}
	}

	return false, nil
}

// InvalidPatternError is returned by ValidatePatterns for malformed patterns.
type InvalidPatternError struct {
	InvalidPatterns []string
}

func (e *InvalidPatternError) Error() string {
	return "invalid pattern(s) provided:\n" + strings.Join(e.InvalidPatterns, "\n")
}

// ValidatePatterns checks all patterns for syntax errors.
func ValidatePatterns(patterns []string) error {
	var invalid []string
	for _, p := range ParsePatterns(patterns) {
		for _, part := range p.parts {
			if _, err := path.Match(part, ""); err != nil {
				invalid = append(invalid, p.original)
				break
			}
		}
	}

	if len(invalid) > 0 {
		return &InvalidPatternError{InvalidPatterns: invalid}
	}
	return nil
}
