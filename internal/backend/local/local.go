package local

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/asmfreak/arensync/internal/backend"
	"github.com/asmfreak/arensync/internal/debug"
	"github.com/asmfreak/arensync/internal/errors"

	"github.com/cenkalti/backoff/v4"
)

// Local is a backend in a local directory.
type Local struct {
	Config
}

// ensure statically that *Local implements backend.Backend and backend.Runner.
var _ backend.Backend = &Local{}
var _ backend.Runner = &Local{}

const (
	fileMode = 0600
	dirMode  = 0700
)

// Open opens the local backend as specified by config. The directory is
// created if it does not exist yet.
func Open(_ context.Context, cfg Config) (*Local, error) {
	debug.Log("open local backend at %v", cfg.Path)

	fi, err := os.Stat(cfg.Path)
	if errors.Is(err, os.ErrNotExist) {
		err = os.MkdirAll(cfg.Path, dirMode)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		return &Local{Config: cfg}, nil
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if !fi.IsDir() {
		return nil, errors.Errorf("%v is not a directory", cfg.Path)
	}

	return &Local{Config: cfg}, nil
}

// Location returns this backend's location (the directory name).
func (b *Local) Location() string {
	return "local:" + b.Path
}

// IsNotExist returns true if the error is caused by a non existing file.
func (b *Local) IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

// IsPermanentError returns true for missing files and permission problems.
func (b *Local) IsPermanentError(err error) bool {
	return b.IsNotExist(err) || errors.Is(err, os.ErrPermission)
}

func (b *Local) filename(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", backoff.Permanent(errors.Errorf("invalid object name %q", name))
	}
	return filepath.Join(b.Path, name), nil
}

// Save stores data in the backend under name. An existing object is
// replaced atomically.
func (b *Local) Save(_ context.Context, name string, rd io.Reader) (err error) {
	debug.Log("Save %v", name)
	finalname, err := b.filename(name)
	if err != nil {
		return err
	}

	defer func() {
		// Mark non-retriable errors as such
		if errors.Is(err, syscall.ENOSPC) || os.IsPermission(err) {
			err = backoff.Permanent(err)
		}
	}()

	// Create new file with a temporary name.
	f, err := tempFile(b.Path, name+"-tmp-")
	if err != nil {
		return errors.WithStack(err)
	}

	defer func(f *os.File) {
		if err != nil {
			_ = f.Close() // Double Close is harmless.
			_ = os.Remove(f.Name())
		}
	}(f)

	if _, err = io.Copy(f, rd); err != nil {
		return errors.WithStack(err)
	}

	// Ignore error if filesystem does not support fsync.
	err = f.Sync()
	syncNotSup := err != nil && errors.Is(err, syscall.ENOTSUP)
	if err != nil && !syncNotSup {
		return errors.WithStack(err)
	}

	// Close, then rename. Windows doesn't like the reverse order.
	if err = f.Close(); err != nil {
		return errors.WithStack(err)
	}
	if err = os.Chmod(f.Name(), fileMode); err != nil {
		return errors.WithStack(err)
	}
	if err = os.Rename(f.Name(), finalname); err != nil {
		return errors.WithStack(err)
	}

	// Now sync the directory to commit the Rename.
	if !syncNotSup {
		if err = fsyncDir(b.Path); err != nil {
			return errors.WithStack(err)
		}
	}

	return nil
}

var tempFile = os.CreateTemp // Overridden by test.

// Load runs fn with a reader that yields the contents of the object.
func (b *Local) Load(ctx context.Context, name string, fn func(rd io.Reader) error) error {
	return backend.DefaultLoad(ctx, name, b.openReader, fn)
}

func (b *Local) openReader(_ context.Context, name string) (io.ReadCloser, error) {
	debug.Log("Load %v", name)
	filename, err := b.filename(name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return f, nil
}

// Remove removes the object name.
func (b *Local) Remove(_ context.Context, name string) error {
	debug.Log("Remove %v", name)
	filename, err := b.filename(name)
	if err != nil {
		return err
	}

	return errors.WithStack(os.Remove(filename))
}

// List runs fn for each regular file in the directory. Temporary files of
// unfinished uploads are skipped.
func (b *Local) List(ctx context.Context, fn func(backend.FileInfo) error) error {
	debug.Log("List %v", b.Path)

	entries, err := os.ReadDir(b.Path)
	if b.IsNotExist(err) {
		debug.Log("ignoring non-existing directory")
		return nil
	}
	if err != nil {
		return errors.WithStack(err)
	}

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !entry.Type().IsRegular() || strings.Contains(entry.Name(), "-tmp-") {
			continue
		}

		fi, err := entry.Info()
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return errors.WithStack(err)
		}

		err = fn(backend.FileInfo{Name: fi.Name(), Size: fi.Size()})
		if err != nil {
			return err
		}
	}
	return ctx.Err()
}

// Run executes program in the directory of the backend.
func (b *Local) Run(ctx context.Context, program string, args ...string) ([]byte, error) {
	debug.Log("Run %v %v in %v", program, args, b.Path)
	cmd := exec.CommandContext(ctx, program, args...)
	cmd.Dir = b.Path

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if err != nil {
		return out.Bytes(), errors.Wrapf(err, "%v", program)
	}
	return out.Bytes(), nil
}

// Close closes all open files.
func (b *Local) Close() error {
	debug.Log("Close()")
	// this does not need to do anything, all open files are closed within the
	// same function.
	return nil
}
