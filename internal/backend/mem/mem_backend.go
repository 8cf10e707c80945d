package mem

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"

	"github.com/asmfreak/arensync/internal/backend"
	"github.com/asmfreak/arensync/internal/debug"
	"github.com/asmfreak/arensync/internal/errors"
)

type memMap map[string][]byte

// make sure that MemoryBackend implements backend.Backend
var _ backend.Backend = &MemoryBackend{}

var errNotFound = errors.New("not found")

// MemoryBackend is a mock backend that uses a map for storing all data in
// memory. This should only be used for tests.
type MemoryBackend struct {
	data memMap
	m    sync.Mutex
}

// New returns a new backend that saves all data in a map in memory.
func New() *MemoryBackend {
	be := &MemoryBackend{
		data: make(memMap),
	}

	debug.Log("created new memory backend")

	return be
}

// Location returns a fixed description of the backend.
func (be *MemoryBackend) Location() string {
	return "mem:"
}

// IsNotExist returns true if the file does not exist.
func (be *MemoryBackend) IsNotExist(err error) bool {
	return errors.Is(err, errNotFound)
}

// IsPermanentError returns true for missing objects.
func (be *MemoryBackend) IsPermanentError(err error) bool {
	return be.IsNotExist(err)
}

// Save adds new data to the backend. Existing objects are replaced.
func (be *MemoryBackend) Save(ctx context.Context, name string, rd io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	buf, err := io.ReadAll(rd)
	if err != nil {
		return err
	}

	be.m.Lock()
	defer be.m.Unlock()

	be.data[name] = buf
	return nil
}

// Load runs fn with a reader that yields the contents of the object.
func (be *MemoryBackend) Load(ctx context.Context, name string, fn func(rd io.Reader) error) error {
	return backend.DefaultLoad(ctx, name, be.openReader, fn)
}

func (be *MemoryBackend) openReader(ctx context.Context, name string) (io.ReadCloser, error) {
	be.m.Lock()
	defer be.m.Unlock()

	buf, ok := be.data[name]
	if !ok {
		return nil, errors.Wrap(errNotFound, name)
	}

	return io.NopCloser(bytes.NewReader(buf)), ctx.Err()
}

// Remove deletes an object from the backend.
func (be *MemoryBackend) Remove(ctx context.Context, name string) error {
	be.m.Lock()
	defer be.m.Unlock()

	if _, ok := be.data[name]; !ok {
		return errors.Wrap(errNotFound, name)
	}

	delete(be.data, name)

	return ctx.Err()
}

// List runs fn for all objects, sorted by name.
func (be *MemoryBackend) List(ctx context.Context, fn func(backend.FileInfo) error) error {
	be.m.Lock()
	entries := make([]backend.FileInfo, 0, len(be.data))
	for name, buf := range be.data {
		entries = append(entries, backend.FileInfo{Name: name, Size: int64(len(buf))})
	}
	be.m.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})

	for _, fi := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := fn(fi)
		if err != nil {
			return err
		}
	}

	return ctx.Err()
}

// Close closes the backend.
func (be *MemoryBackend) Close() error {
	return nil
}
