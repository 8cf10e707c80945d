// Package hashing computes content digests of files and streams.
package hashing

import (
	"crypto/sha256"
	"hash"
	"io"
	"os"

	"github.com/asmfreak/arensync/internal/errors"
	"github.com/asmfreak/arensync/internal/manifest"
)

// BlockSize is the size of the reads used by File.
const BlockSize = 4096

// Reader hashes all data read from the underlying reader.
type Reader struct {
	r io.Reader
	h hash.Hash
}

// NewReader wraps rd.
func NewReader(rd io.Reader) *Reader {
	return &Reader{r: rd, h: sha256.New()}
}

func (h *Reader) Read(p []byte) (int, error) {
	n, err := h.r.Read(p)
	_, _ = h.h.Write(p[:n])
	return n, err
}

// WriteTo uses the WriteTo method of the underlying reader if it has one.
func (h *Reader) WriteTo(w io.Writer) (int64, error) {
	if wt, ok := h.r.(io.WriterTo); ok {
		return wt.WriteTo(io.MultiWriter(h.h, w))
	}
	return io.Copy(w, struct{ io.Reader }{h})
}

// Digest returns the digest of all data read so far.
func (h *Reader) Digest() manifest.Digest {
	var d manifest.Digest
	h.h.Sum(d[:0])
	return d
}

// Stream reads rd in blocks of BlockSize bytes until EOF and returns the
// digest of the data.
func Stream(rd io.Reader) (manifest.Digest, error) {
	h := NewReader(rd)
	buf := make([]byte, BlockSize)
	// hide io.Discard's ReadFrom, it would use a buffer of its own
	if _, err := io.CopyBuffer(struct{ io.Writer }{io.Discard}, struct{ io.Reader }{h}, buf); err != nil {
		return manifest.Digest{}, err
	}
	return h.Digest(), nil
}

// File returns the digest of the content of the file at filename. The file
// is read in blocks of BlockSize bytes, so its size is not limited by
// memory. All errors are of kind errors.IO.
func File(filename string) (manifest.Digest, error) {
	f, err := os.Open(filename)
	if err != nil {
		return manifest.Digest{}, errors.WithKind(errors.IO, errors.WithStack(err))
	}

	d, err := Stream(f)
	cerr := f.Close()
	if err == nil {
		err = cerr
	}
	if err != nil {
		return manifest.Digest{}, errors.WithKind(errors.IO, errors.Wrapf(err, "read %v", filename))
	}

	return d, nil
}
