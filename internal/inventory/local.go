// Package inventory builds the inventories the upload run compares: the
// hashed state of the local tree and the union of all remote manifests.
package inventory

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/asmfreak/arensync/internal/debug"
	"github.com/asmfreak/arensync/internal/errors"
	"github.com/asmfreak/arensync/internal/filter"
	"github.com/asmfreak/arensync/internal/hashing"
	"github.com/asmfreak/arensync/internal/manifest"
	"github.com/asmfreak/arensync/internal/parallel"

	"github.com/charlievieth/fastwalk"
)

// Options configure BuildLocal.
type Options struct {
	// Root is the directory the logical paths are relative to.
	Root string
	// Ignore holds the ignore patterns, see package filter.
	Ignore []string
	// Workers is the number of files hashed concurrently. Zero means
	// runtime.GOMAXPROCS(0).
	Workers int
	// Progress is called for every file that has been hashed. It may be
	// called concurrently.
	Progress func(e manifest.Entry)
	// Warnf reports invalid ignore patterns and names that cannot be
	// written to a manifest. It may be called concurrently.
	Warnf func(msg string, args ...interface{})
}

func (opts Options) warnf(msg string, args ...interface{}) {
	if opts.Warnf != nil {
		opts.Warnf(msg, args...)
	}
}

func (opts Options) workers() int {
	if opts.Workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return opts.Workers
}

// BuildLocal hashes all regular files below opts.Root that are not ignored.
// Symlinks are not followed. Any file that cannot be read fails the whole
// inventory with an IO error.
func BuildLocal(ctx context.Context, opts Options) (manifest.Inventory, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, errors.WithKind(errors.IO, errors.WithStack(err))
	}

	fi, err := os.Stat(root)
	if err != nil {
		return nil, errors.WithKind(errors.IO, errors.WithStack(err))
	}
	if !fi.IsDir() {
		return nil, errors.WithKind(errors.IO, errors.Errorf("%v is not a directory", root))
	}

	paths, err := walk(ctx, root, filter.RejectByPattern(opts.Ignore, opts.Warnf), opts.warnf)
	if err != nil {
		return nil, err
	}
	debug.Log("found %d files below %v", len(paths), root)

	entries, err := parallel.Map(ctx, opts.workers(), paths, func(_ context.Context, p string) (manifest.Entry, error) {
		d, err := hashing.File(filepath.Join(root, filepath.FromSlash(p)))
		if err != nil {
			return manifest.Entry{}, err
		}

		e := manifest.Entry{Digest: d, Path: p}
		if opts.Progress != nil {
			opts.Progress(e)
		}
		return e, nil
	})
	if err != nil {
		return nil, err
	}

	return manifest.NewInventory(entries...), nil
}

// walk returns the sorted logical paths of all regular files below root.
func walk(ctx context.Context, root string, reject filter.RejectFunc, warnf func(msg string, args ...interface{})) ([]string, error) {
	var (
		mu    sync.Mutex
		paths []string
	)

	conf := fastwalk.Config{
		Follow: false,
	}

	err := fastwalk.Walk(&conf, root, func(filename string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			return walkErr
		}
		if filename == root {
			return nil
		}

		rel, err := filepath.Rel(root, filename)
		if err != nil {
			return err
		}
		p, err := manifest.CleanPath(filepath.ToSlash(rel))
		if err != nil {
			warnf("skipping %q: %v\n", filename, err)
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		if reject(p) {
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		mu.Lock()
		paths = append(paths, p)
		mu.Unlock()
		return nil
	})

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.WithKind(errors.IO, errors.Wrap(err, "walk"))
	}

	sort.Strings(paths)
	return paths, nil
}
