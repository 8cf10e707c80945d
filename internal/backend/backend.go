// Package backend defines the interface to the remote store that holds the
// published archives. The store is a flat directory of named objects.
package backend

import (
	"bytes"
	"context"
	"io"

	"github.com/asmfreak/arensync/internal/errors"
)

// ErrRunUnsupported is returned by Runner.Run if the backend cannot execute
// programs in its current configuration.
var ErrRunUnsupported = errors.New("running remote programs is not supported")

// Backend is used to store and access the objects of the remote store.
//
// List and Load will be retried when a Backend is wrapped in a retry.Backend.
// To prevent that from happening, the operations should return a
// github.com/cenkalti/backoff/v4.PermanentError. Errors from the context
// package need not be wrapped, as context cancellation is checked separately
// by the retrying logic.
type Backend interface {
	// Location returns a string that describes the remote store.
	Location() string

	// List runs fn for each object in the store. When an error occurs (or fn
	// returns an error), List stops and returns it.
	//
	// The function fn is called exactly once for each object during
	// successful execution and at most once in case of an error.
	//
	// The function fn is called in the same Goroutine that List() is called
	// from.
	List(ctx context.Context, fn func(FileInfo) error) error

	// Load runs fn with a reader that yields the contents of the object name.
	//
	// The function fn may be called multiple times during the same Load
	// invocation and therefore must be idempotent.
	Load(ctx context.Context, name string, fn func(rd io.Reader) error) error

	// Save stores the data from rd under the given name.
	Save(ctx context.Context, name string, rd io.Reader) error

	// Remove removes the object name.
	Remove(ctx context.Context, name string) error

	// IsNotExist returns true if the error was caused by a non-existing
	// object. The argument may be a wrapped error.
	IsNotExist(err error) bool

	// IsPermanentError returns true if the error can very likely not be
	// resolved by retrying the operation.
	IsPermanentError(err error) bool

	// Close the backend.
	Close() error
}

// Runner is implemented by backends that can run a program inside the
// directory of the remote store, e.g. to verify a checksum where the data
// lives.
type Runner interface {
	// Run executes program with args in the store directory and returns its
	// combined output.
	Run(ctx context.Context, program string, args ...string) ([]byte, error)
}

// Unwrapper is implemented by backends that wrap another backend.
type Unwrapper interface {
	// Unwrap returns the underlying backend or nil if there is none.
	Unwrap() Backend
}

// AsRunner returns the first Runner in the chain of wrapped backends.
func AsRunner(b Backend) (Runner, bool) {
	for b != nil {
		if r, ok := b.(Runner); ok {
			return r, true
		}

		be, ok := b.(Unwrapper)
		if !ok {
			break
		}
		b = be.Unwrap()
	}
	return nil, false
}

// FileInfo contains information about an object in the backend.
type FileInfo struct {
	Size int64
	Name string
}

// DefaultLoad implements Backend.Load using a lower-level openReader func.
func DefaultLoad(ctx context.Context, name string,
	openReader func(ctx context.Context, name string) (io.ReadCloser, error),
	fn func(rd io.Reader) error) error {
	rd, err := openReader(ctx, name)
	if err != nil {
		return err
	}
	err = fn(rd)
	if err != nil {
		_ = rd.Close() // ignore secondary errors closing the reader
		return err
	}
	return rd.Close()
}

// LoadAll reads the object name into the given buffer, which is truncated.
// If the buffer is not large enough or nil, a new one is allocated.
func LoadAll(ctx context.Context, buf []byte, be Backend, name string) ([]byte, error) {
	err := be.Load(ctx, name, func(rd io.Reader) error {
		// make sure this is idempotent, in case an error occurs this function may be called multiple times!
		wr := bytes.NewBuffer(buf[:0])
		_, cerr := io.Copy(wr, rd)
		if cerr != nil {
			return cerr
		}
		buf = wr.Bytes()
		return nil
	})

	if err != nil {
		return nil, err
	}

	return buf, nil
}

// Names returns the names of all objects, in the order List reports them.
func Names(ctx context.Context, be Backend) ([]string, error) {
	var names []string
	err := be.List(ctx, func(fi FileInfo) error {
		names = append(names, fi.Name)
		return nil
	})
	return names, err
}
