package hashing

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/asmfreak/arensync/internal/errors"
	"github.com/asmfreak/arensync/internal/manifest"
	rtest "github.com/asmfreak/arensync/internal/test"
)

// only expose Read method
type onlyReader struct {
	io.Reader
}

type traceWriterTo struct {
	io.Reader
	writerTo io.WriterTo
	Traced   bool
}

func (r *traceWriterTo) WriteTo(w io.Writer) (n int64, err error) {
	r.Traced = true
	return r.writerTo.WriteTo(w)
}

func TestReader(t *testing.T) {
	tests := []int{5, 23, 2<<18 + 23, 1 << 20}

	for _, size := range tests {
		data := make([]byte, size)
		_, err := io.ReadFull(rand.Reader, data)
		rtest.OK(t, err)

		expected := manifest.Digest(sha256.Sum256(data))

		for _, test := range []struct {
			innerWriteTo, outerWriteTo bool
		}{{false, false}, {false, true}, {true, false}, {true, true}} {
			src := bytes.NewReader(data)
			rawSrc := &traceWriterTo{Reader: src, writerTo: src}
			innerSrc := io.Reader(rawSrc)
			if !test.innerWriteTo {
				innerSrc = &onlyReader{Reader: rawSrc}
			}

			rd := NewReader(innerSrc)
			outerSrc := io.Reader(rd)
			if !test.outerWriteTo {
				outerSrc = &onlyReader{Reader: outerSrc}
			}

			n, err := io.Copy(io.Discard, outerSrc)
			rtest.OK(t, err)
			rtest.Equals(t, int64(size), n)
			rtest.Equals(t, expected, rd.Digest())

			rtest.Assert(t, rawSrc.Traced == (test.innerWriteTo && test.outerWriteTo),
				"unexpected/missing writeTo call innerWriteTo %v outerWriteTo %v",
				test.innerWriteTo, test.outerWriteTo)
		}
	}
}

func TestFile(t *testing.T) {
	dir := rtest.TempDir(t)

	for _, size := range []int{0, 1, BlockSize - 1, BlockSize, BlockSize + 1, 5*BlockSize + 17} {
		data := rtest.Random(size, size)
		filename := filepath.Join(dir, "file")
		rtest.OK(t, os.WriteFile(filename, data, 0600))

		d, err := File(filename)
		rtest.OK(t, err)
		rtest.Equals(t, manifest.Hash(data), d)
	}
}

// readSizes records the size of every Read call.
type readSizes struct {
	rd    io.Reader
	sizes []int
}

func (r *readSizes) Read(p []byte) (int, error) {
	r.sizes = append(r.sizes, len(p))
	return r.rd.Read(p)
}

func TestStreamBlockSize(t *testing.T) {
	data := rtest.Random(42, 20000)
	rd := &readSizes{rd: bytes.NewReader(data)}

	d, err := Stream(rd)
	rtest.OK(t, err)
	rtest.Equals(t, manifest.Hash(data), d)

	rtest.Assert(t, len(rd.sizes) >= 5, "expected at least 5 reads, got %v", rd.sizes)
	for _, size := range rd.sizes {
		rtest.Equals(t, BlockSize, size)
	}
}

func TestFileMissing(t *testing.T) {
	_, err := File(filepath.Join(rtest.TempDir(t), "missing"))
	rtest.Assert(t, err != nil, "expected error")
	rtest.Assert(t, errors.IsKind(err, errors.IO), "wrong kind %v", errors.KindOf(err))
	rtest.Assert(t, errors.Is(err, os.ErrNotExist), "expected not-exist error, got %v", err)
}

func BenchmarkFile(b *testing.B) {
	filename := filepath.Join(b.TempDir(), "file")
	buf := rtest.Random(5, 1<<22)
	if err := os.WriteFile(filename, buf, 0600); err != nil {
		b.Fatal(err)
	}

	b.SetBytes(int64(len(buf)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := File(filename); err != nil {
			b.Fatal(err)
		}
	}
}
