package tools_test

import (
	"archive/tar"
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/gzip"

	"github.com/asmfreak/arensync/internal/errors"
	"github.com/asmfreak/arensync/internal/manifest"
	rtest "github.com/asmfreak/arensync/internal/test"
	"github.com/asmfreak/arensync/internal/tools"
)

var testFiles = map[string]string{
	"a.txt":           "foo\n",
	"sub/b.txt":       "bar\n",
	"sub/deep/c.txt":  "baz\n",
	"-leading-dash":   "dash\n",
	"name with space": "space\n",
	" notes.txt":      "notes\n",
	"sub/trailing ":   "trailing\n",
}

func testPaths() []string {
	var paths []string
	for p := range testFiles {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func testArchiver(t *testing.T, arch tools.Archiver) {
	src := rtest.TempDir(t)
	work := rtest.TempDir(t)
	rtest.WriteFiles(t, src, testFiles)

	list := filepath.Join(work, "list")
	rtest.OK(t, tools.WriteList(list, testPaths()))

	bundle := filepath.Join(work, "bundle.tar.gz")
	rtest.OK(t, arch.Create(context.TODO(), bundle, src, list))

	// extract a subset only
	subset := filepath.Join(work, "subset")
	selected := []string{" notes.txt", "a.txt", "sub/deep/c.txt", "sub/trailing "}
	rtest.OK(t, tools.WriteList(subset, selected))

	dst := rtest.TempDir(t)
	f, err := os.Open(bundle)
	rtest.OK(t, err)
	defer func() { _ = f.Close() }()

	var extracted []string
	err = arch.Extract(context.TODO(), f, dst, subset, func(line string) {
		extracted = append(extracted, line)
	})
	rtest.OK(t, err)

	want := map[string]string{
		" notes.txt":     "notes\n",
		"a.txt":          "foo\n",
		"sub/deep/c.txt": "baz\n",
		"sub/trailing ":  "trailing\n",
	}
	got := rtest.ReadFiles(t, dst)
	if !cmp.Equal(want, got) {
		t.Error(cmp.Diff(want, got))
	}

	// the reported names must match the selection exactly, spaces included
	var reported []string
	for _, line := range extracted {
		p, err := manifest.CleanPath(line)
		rtest.OK(t, err)
		reported = append(reported, p)
	}
	sort.Strings(reported)
	rtest.Equals(t, selected, reported)
}

func TestTarGz(t *testing.T) {
	testArchiver(t, tools.TarGz{})
}

func TestTarCommand(t *testing.T) {
	rtest.RequireBinary(t, "tar")
	testArchiver(t, tools.TarCommand{Command: tools.Command{Program: "tar"}})
}

func TestTarGzMissingFile(t *testing.T) {
	src := rtest.TempDir(t)
	work := rtest.TempDir(t)

	list := filepath.Join(work, "list")
	rtest.OK(t, tools.WriteList(list, []string{"missing"}))

	err := tools.TarGz{}.Create(context.TODO(), filepath.Join(work, "out.tar.gz"), src, list)
	rtest.Assert(t, errors.IsKind(err, errors.IO), "wrong kind for %v", err)
}

func writeBundle(t *testing.T, filename string, names ...string) {
	f, err := os.Create(filename)
	rtest.OK(t, err)

	zw := gzip.NewWriter(f)
	tw := tar.NewWriter(zw)
	for _, name := range names {
		data := []byte("evil\n")
		rtest.OK(t, tw.WriteHeader(&tar.Header{
			Typeflag: tar.TypeReg,
			Name:     name,
			Size:     int64(len(data)),
			Mode:     0644,
		}))
		_, err := tw.Write(data)
		rtest.OK(t, err)
	}
	rtest.OK(t, tw.Close())
	rtest.OK(t, zw.Close())
	rtest.OK(t, f.Close())
}

func TestTarGzRefusesUnsafeEntries(t *testing.T) {
	for _, name := range []string{"../escape", "/etc/absolute", "a/../../escape"} {
		t.Run(name, func(t *testing.T) {
			work := rtest.TempDir(t)
			dst := filepath.Join(work, "dst")
			rtest.OK(t, os.Mkdir(dst, 0700))

			bundle := filepath.Join(work, "bundle.tar.gz")
			writeBundle(t, bundle, name)

			list := filepath.Join(work, "list")
			rtest.OK(t, tools.WriteList(list, []string{"escape"}))

			f, err := os.Open(bundle)
			rtest.OK(t, err)
			defer func() { _ = f.Close() }()

			err = tools.TarGz{}.Extract(context.TODO(), f, dst, list, nil)
			rtest.Assert(t, errors.IsKind(err, errors.ToolFailure), "wrong kind for %v", err)

			_, err = os.Stat(filepath.Join(work, "escape"))
			rtest.Assert(t, os.IsNotExist(err), "file outside target written")
		})
	}
}

func TestTarGzCorrupt(t *testing.T) {
	work := rtest.TempDir(t)
	rtest.WriteFiles(t, work, map[string]string{"bundle": "not gzip at all"})

	list := filepath.Join(work, "list")
	rtest.OK(t, tools.WriteList(list, []string{"a"}))

	f, err := os.Open(filepath.Join(work, "bundle"))
	rtest.OK(t, err)
	defer func() { _ = f.Close() }()

	err = tools.TarGz{}.Extract(context.TODO(), f, work, list, nil)
	rtest.Assert(t, errors.IsKind(err, errors.ToolFailure), "wrong kind for %v", err)
}
