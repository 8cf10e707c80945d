package mock

import (
	"context"
	"io"

	"github.com/asmfreak/arensync/internal/backend"
	"github.com/asmfreak/arensync/internal/errors"
)

// Backend implements a mock backend.
type Backend struct {
	CloseFn            func() error
	IsNotExistFn       func(err error) bool
	IsPermanentErrorFn func(err error) bool
	SaveFn             func(ctx context.Context, name string, rd io.Reader) error
	OpenReaderFn       func(ctx context.Context, name string) (io.ReadCloser, error)
	ListFn             func(ctx context.Context, fn func(backend.FileInfo) error) error
	RemoveFn           func(ctx context.Context, name string) error
}

// NewBackend returns new mock Backend instance
func NewBackend() *Backend {
	be := &Backend{}
	return be
}

// Location returns a fixed description.
func (m *Backend) Location() string {
	return "mock:"
}

// Close the backend.
func (m *Backend) Close() error {
	if m.CloseFn == nil {
		return nil
	}

	return m.CloseFn()
}

// IsNotExist returns true if the error is caused by a missing file.
func (m *Backend) IsNotExist(err error) bool {
	if m.IsNotExistFn == nil {
		return false
	}

	return m.IsNotExistFn(err)
}

func (m *Backend) IsPermanentError(err error) bool {
	if m.IsPermanentErrorFn == nil {
		return false
	}

	return m.IsPermanentErrorFn(err)
}

// Save data in the backend.
func (m *Backend) Save(ctx context.Context, name string, rd io.Reader) error {
	if m.SaveFn == nil {
		return errors.New("not implemented")
	}

	return m.SaveFn(ctx, name, rd)
}

// Load runs fn with a reader that yields the contents of the object name.
func (m *Backend) Load(ctx context.Context, name string, fn func(rd io.Reader) error) error {
	return backend.DefaultLoad(ctx, name, m.openReader, fn)
}

func (m *Backend) openReader(ctx context.Context, name string) (io.ReadCloser, error) {
	if m.OpenReaderFn == nil {
		return nil, errors.New("not implemented")
	}

	return m.OpenReaderFn(ctx, name)
}

// List objects.
func (m *Backend) List(ctx context.Context, fn func(backend.FileInfo) error) error {
	if m.ListFn == nil {
		return nil
	}

	return m.ListFn(ctx, fn)
}

// Remove data from the backend.
func (m *Backend) Remove(ctx context.Context, name string) error {
	if m.RemoveFn == nil {
		return errors.New("not implemented")
	}

	return m.RemoveFn(ctx, name)
}

// Make sure that Backend implements the backend interface.
var _ backend.Backend = &Backend{}
