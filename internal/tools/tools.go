// Package tools implements the external collaborators of the engine: the
// archiver that bundles and extracts files, the crypter that encrypts the
// bundle and the checksummer that protects the upload. Every collaborator
// has an implementation that runs a program (tar, gpg) and an in-process
// one (native tar.gz, age).
package tools

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"

	"github.com/asmfreak/arensync/internal/errors"
	"github.com/asmfreak/arensync/internal/manifest"
)

// Archiver bundles files into a compressed archive and extracts them again.
type Archiver interface {
	// Create writes the compressed bundle output containing the files
	// named in listFile, relative to baseDir.
	Create(ctx context.Context, output, baseDir, listFile string) error
	// Extract reads a bundle from rd and extracts the files named in
	// listFile into baseDir. extracted is called for every file written.
	Extract(ctx context.Context, rd io.Reader, baseDir, listFile string, extracted func(line string)) error
}

// Crypter encrypts bundles before upload and decrypts them on restore.
type Crypter interface {
	// Extension is appended to the bundle name, e.g. ".gpg".
	Extension() string
	// Encrypt writes the encrypted form of path to path+Extension() and
	// returns that name.
	Encrypt(ctx context.Context, path string) (string, error)
	// Decrypt returns a reader for the plaintext of rd. Errors of the
	// decryption are reported by Read or Close.
	Decrypt(ctx context.Context, rd io.Reader) (io.ReadCloser, error)
}

// Checksummer protects the encrypted payload against corruption in transit.
type Checksummer interface {
	// Compute writes the checksum of path to path+".sum" and returns that name.
	Compute(ctx context.Context, path string) (string, error)
	// Verify checks the payload against the checksum file sum, which holds
	// the entry for name.
	Verify(ctx context.Context, payload io.Reader, sum io.Reader, name string) error
}

// listPrefix keeps names starting with "-" from being read as options by tar.
const listPrefix = "./"

// WriteList writes the selection list: one path per line.
func WriteList(filename string, paths []string) (err error) {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return errors.WithKind(errors.IO, errors.WithStack(err))
	}
	defer func() {
		cerr := f.Close()
		if err == nil {
			err = errors.WithKind(errors.IO, errors.WithStack(cerr))
		}
	}()

	wr := bufio.NewWriter(f)
	for _, p := range paths {
		if _, err := wr.WriteString(listPrefix + p + "\n"); err != nil {
			return errors.WithKind(errors.IO, errors.WithStack(err))
		}
	}
	return errors.WithKind(errors.IO, errors.WithStack(wr.Flush()))
}

// ReadList returns the logical paths of a selection list.
func ReadList(filename string) ([]string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.WithKind(errors.IO, errors.WithStack(err))
	}
	defer func() { _ = f.Close() }()

	var paths []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		if line == "" {
			continue
		}
		p, err := manifest.CleanPath(line)
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, errors.WithKind(errors.IO, errors.WithStack(sc.Err()))
}
