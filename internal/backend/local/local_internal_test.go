package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"testing"

	"github.com/asmfreak/arensync/internal/backend"
	rtest "github.com/asmfreak/arensync/internal/test"

	"github.com/cenkalti/backoff/v4"
)

func TestNoSpacePermanent(t *testing.T) {
	oldTempFile := tempFile
	defer func() {
		tempFile = oldTempFile
	}()

	tempFile = func(_, _ string) (*os.File, error) {
		return nil, fmt.Errorf("not creating tempfile, %w", syscall.ENOSPC)
	}

	dir := rtest.TempDir(t)

	be, err := Open(context.Background(), Config{Path: dir})
	rtest.OK(t, err)
	defer func() {
		rtest.OK(t, be.Close())
	}()

	err = be.Save(context.Background(), "archive.lst", bytes.NewReader(nil))
	var permanent *backoff.PermanentError
	rtest.Assert(t, errors.As(err, &permanent),
		"error type should be backoff.PermanentError, got %T", err)
	rtest.Assert(t, errors.Is(err, syscall.ENOSPC),
		"could not recover original ENOSPC error")
}

func TestListSkipsTemporaryFiles(t *testing.T) {
	dir := rtest.TempDir(t)
	rtest.WriteFiles(t, dir, map[string]string{
		"archive.lst":            "a",
		"archive.lst-tmp-123456": "partial",
		"sub/nested":             "n",
	})

	be, err := Open(context.Background(), Config{Path: dir})
	rtest.OK(t, err)

	var names []string
	rtest.OK(t, be.List(context.Background(), func(fi backend.FileInfo) error {
		names = append(names, fi.Name)
		return nil
	}))
	rtest.Equals(t, []string{"archive.lst"}, names)
}
