package local_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/asmfreak/arensync/internal/backend"
	"github.com/asmfreak/arensync/internal/backend/local"
	"github.com/asmfreak/arensync/internal/backend/test"
	rtest "github.com/asmfreak/arensync/internal/test"
)

func newTestSuite() *test.Suite {
	return &test.Suite{
		Open: func(t testing.TB) (backend.Backend, error) {
			dir := rtest.TempDir(t)
			return local.Open(context.TODO(), local.Config{Path: dir})
		},
	}
}

func TestBackend(t *testing.T) {
	newTestSuite().RunTests(t)
}

func TestOpenCreatesDirectory(t *testing.T) {
	dir := filepath.Join(rtest.TempDir(t), "store", "sub")

	be, err := local.Open(context.TODO(), local.Config{Path: dir})
	rtest.OK(t, err)
	defer func() {
		rtest.OK(t, be.Close())
	}()

	fi, err := os.Stat(dir)
	rtest.OK(t, err)
	rtest.Assert(t, fi.IsDir(), "%v is not a directory", dir)
	rtest.Equals(t, "local:"+dir, be.Location())
}

func TestOpenFile(t *testing.T) {
	filename := filepath.Join(rtest.TempDir(t), "file")
	rtest.OK(t, os.WriteFile(filename, []byte("x"), 0600))

	_, err := local.Open(context.TODO(), local.Config{Path: filename})
	rtest.Assert(t, err != nil, "expected error for a regular file")
}

func TestInvalidName(t *testing.T) {
	be, err := local.Open(context.TODO(), local.Config{Path: rtest.TempDir(t)})
	rtest.OK(t, err)

	for _, name := range []string{"", "..", "../escape", "sub/file"} {
		err := be.Save(context.TODO(), name, bytes.NewReader(nil))
		rtest.Assert(t, err != nil, "expected error for name %q", name)
	}
}

func TestRun(t *testing.T) {
	rtest.RequireBinary(t, "ls")

	dir := rtest.TempDir(t)
	be, err := local.Open(context.TODO(), local.Config{Path: dir})
	rtest.OK(t, err)
	rtest.OK(t, be.Save(context.TODO(), "archive.lst", bytes.NewReader([]byte("x"))))

	out, err := be.Run(context.TODO(), "ls")
	rtest.OK(t, err)
	rtest.Equals(t, "archive.lst", strings.TrimSpace(string(out)))

	_, err = be.Run(context.TODO(), "ls", "missing-file")
	rtest.Assert(t, err != nil, "expected error for a failing program")
}

func TestParseConfig(t *testing.T) {
	cfg, err := local.ParseConfig("local:/srv/backup")
	rtest.OK(t, err)
	rtest.Equals(t, "/srv/backup", cfg.Path)

	for _, s := range []string{"local:", "sftp:host:/dir", "/srv/backup"} {
		_, err := local.ParseConfig(s)
		rtest.Assert(t, err != nil, "expected error for %q", s)
	}
}
