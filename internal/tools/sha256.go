package tools

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/asmfreak/arensync/internal/errors"
	"github.com/asmfreak/arensync/internal/hashing"
	"github.com/asmfreak/arensync/internal/manifest"
	"github.com/asmfreak/arensync/internal/textfile"
)

// SHA256 writes and verifies checksum files in the format of sha256sum:
// "<hex digest>  <file name>\n".
type SHA256 struct{}

var _ Checksummer = SHA256{}

// Compute writes path+".sum" with the digest of path.
func (SHA256) Compute(_ context.Context, path string) (string, error) {
	d, err := hashing.File(path)
	if err != nil {
		return "", err
	}

	output := path + manifest.ChecksumExt
	line := fmt.Sprintf("%v  %v\n", d, filepath.Base(path))
	if err := os.WriteFile(output, []byte(line), 0600); err != nil {
		return "", errors.WithKind(errors.IO, errors.WithStack(err))
	}
	return output, nil
}

// ParseSum returns the digest for name from a sha256sum file. A file with a
// single entry is accepted for any name.
func ParseSum(data []byte, name string) (manifest.Digest, error) {
	lines, err := textfile.Lines(data)
	if err != nil {
		return manifest.Digest{}, err
	}

	var entries []manifest.Entry
	for _, line := range lines {
		if line == "" {
			continue
		}
		digest, rest, ok := strings.Cut(line, " ")
		if !ok {
			return manifest.Digest{}, errors.Errorf("invalid checksum line %q", line)
		}
		d, err := manifest.ParseDigest(digest)
		if err != nil {
			return manifest.Digest{}, err
		}
		// binary mode is marked with a '*' in front of the name
		fn := strings.TrimPrefix(strings.TrimLeft(rest, " "), "*")
		entries = append(entries, manifest.Entry{Digest: d, Path: fn})
	}

	for _, e := range entries {
		if e.Path == name {
			return e.Digest, nil
		}
	}
	if len(entries) == 1 {
		return entries[0].Digest, nil
	}
	return manifest.Digest{}, errors.Errorf("no checksum for %v found", name)
}

// Verify hashes payload and compares the digest with the entry for name in
// sum. A mismatch is an IntegrityFailure.
func (SHA256) Verify(_ context.Context, payload io.Reader, sum io.Reader, name string) error {
	data, err := io.ReadAll(sum)
	if err != nil {
		return errors.WithKind(errors.RemoteUnavailable, errors.Wrap(err, "read checksum"))
	}

	want, err := ParseSum(data, name)
	if err != nil {
		return errors.WithKind(errors.IntegrityFailure, err)
	}

	got, err := hashing.Stream(payload)
	if err != nil {
		return errors.WithKind(errors.RemoteUnavailable, errors.Wrap(err, "read payload"))
	}

	if got != want {
		return errors.WithKind(errors.IntegrityFailure,
			errors.Errorf("checksum mismatch for %v: want %v, got %v", name, want.Str(), got.Str()))
	}
	return nil
}
