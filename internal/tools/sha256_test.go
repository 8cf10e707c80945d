package tools_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/asmfreak/arensync/internal/errors"
	"github.com/asmfreak/arensync/internal/manifest"
	rtest "github.com/asmfreak/arensync/internal/test"
	"github.com/asmfreak/arensync/internal/tools"
)

func TestSHA256Compute(t *testing.T) {
	dir := rtest.TempDir(t)
	rtest.WriteFiles(t, dir, map[string]string{"payload.age": "hello\n"})

	sum, err := tools.SHA256{}.Compute(context.TODO(), filepath.Join(dir, "payload.age"))
	rtest.OK(t, err)
	rtest.Equals(t, filepath.Join(dir, "payload.age.sum"), sum)

	files := rtest.ReadFiles(t, dir)
	rtest.Equals(t, "5891b5b522d5df086d0ff0b110fbd9d21bb4fc7163af34d08286a2e846f6be03  payload.age\n", files["payload.age.sum"])
}

func TestSHA256Verify(t *testing.T) {
	sum := "5891b5b522d5df086d0ff0b110fbd9d21bb4fc7163af34d08286a2e846f6be03  payload.age\n"

	err := tools.SHA256{}.Verify(context.TODO(), strings.NewReader("hello\n"), strings.NewReader(sum), "payload.age")
	rtest.OK(t, err)

	err = tools.SHA256{}.Verify(context.TODO(), strings.NewReader("hello!\n"), strings.NewReader(sum), "payload.age")
	rtest.Assert(t, errors.IsKind(err, errors.IntegrityFailure), "wrong kind for %v", err)

	err = tools.SHA256{}.Verify(context.TODO(), strings.NewReader("hello\n"), strings.NewReader("garbage"), "payload.age")
	rtest.Assert(t, errors.IsKind(err, errors.IntegrityFailure), "wrong kind for %v", err)
}

func TestSHA256RoundTrip(t *testing.T) {
	dir := rtest.TempDir(t)
	data := rtest.Random(5, 3*4096+17)
	filename := filepath.Join(dir, "archive.tar.gz.gpg")
	rtest.OK(t, os.WriteFile(filename, data, 0600))

	sumFile, err := tools.SHA256{}.Compute(context.TODO(), filename)
	rtest.OK(t, err)
	sum, err := os.ReadFile(sumFile)
	rtest.OK(t, err)

	err = tools.SHA256{}.Verify(context.TODO(), bytes.NewReader(data), bytes.NewReader(sum), "archive.tar.gz.gpg")
	rtest.OK(t, err)
}

func TestParseSum(t *testing.T) {
	d1 := manifest.Hash([]byte("one"))
	d2 := manifest.Hash([]byte("two"))
	data := []byte(d1.String() + "  one.age\n" + d2.String() + " *two.age\n")

	d, err := tools.ParseSum(data, "two.age")
	rtest.OK(t, err)
	rtest.Equals(t, d2, d)

	_, err = tools.ParseSum(data, "three.age")
	rtest.Assert(t, err != nil, "expected error for missing name")

	// a single entry matches any name
	d, err = tools.ParseSum([]byte(d1.String()+"  -\n"), "one.age")
	rtest.OK(t, err)
	rtest.Equals(t, d1, d)
}
