package manifest

import (
	"path"
	"strings"

	"github.com/asmfreak/arensync/internal/errors"
)

// Entry is one file of an inventory or manifest.
type Entry struct {
	Digest Digest
	// Path is the logical path of the file, see CleanPath.
	Path string
}

// String returns e formatted as a manifest line without the trailing newline.
func (e Entry) String() string {
	return e.Digest.String() + " " + e.Path
}

// CleanPath normalizes p to a logical path: relative to the root, separated
// by forward slashes, without a leading "./". Paths that are empty, absolute,
// contain a ".." element, a newline or a NUL byte are rejected.
func CleanPath(p string) (string, error) {
	if strings.ContainsAny(p, "\n\x00") {
		return "", errors.Errorf("invalid path %q: contains a newline or NUL byte", p)
	}

	if strings.HasPrefix(p, "/") {
		return "", errors.Errorf("invalid path %q: path is absolute", p)
	}

	for _, elem := range strings.Split(p, "/") {
		if elem == ".." {
			return "", errors.Errorf("invalid path %q: path leaves the root", p)
		}
	}

	cleaned := path.Clean(p)
	if cleaned == "." {
		return "", errors.Errorf("invalid path %q: path is empty", p)
	}

	return cleaned, nil
}

// ParseLine parses a manifest line "<digest> <path>". The digest ends at
// the first space, the rest of the line is the path, including any leading
// or trailing spaces.
func ParseLine(line string) (Entry, error) {
	digest, rest, ok := strings.Cut(line, " ")
	if !ok {
		return Entry{}, errors.Errorf("invalid manifest line %q: no separator", line)
	}

	d, err := ParseDigest(digest)
	if err != nil {
		return Entry{}, err
	}

	p, err := CleanPath(rest)
	if err != nil {
		return Entry{}, err
	}

	return Entry{Digest: d, Path: p}, nil
}
