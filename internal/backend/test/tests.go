package test

import (
	"bytes"
	"context"
	"io"
	"sort"
	"testing"

	"github.com/asmfreak/arensync/internal/backend"
	"github.com/asmfreak/arensync/internal/errors"
	"github.com/asmfreak/arensync/internal/test"
)

func store(t testing.TB, be backend.Backend, name string, data []byte) {
	t.Helper()
	err := be.Save(context.TODO(), name, bytes.NewReader(data))
	test.OK(t, err)
}

func list(t testing.TB, be backend.Backend) map[string]int64 {
	t.Helper()
	found := make(map[string]int64)
	err := be.List(context.TODO(), func(fi backend.FileInfo) error {
		found[fi.Name] = fi.Size
		return nil
	})
	test.OK(t, err)
	return found
}

// TestLocation tests that a location string is returned.
func (s *Suite) TestLocation(t *testing.T) {
	be := s.open(t)
	test.Assert(t, be.Location() != "", "empty location")
}

// TestSaveLoad stores objects and reads them back.
func (s *Suite) TestSaveLoad(t *testing.T) {
	be := s.open(t)

	for i, size := range []int{0, 1, 4096, 300 * 1024} {
		data := test.Random(i, size)
		name := "archive20200101_00000" + string(rune('0'+i)) + ".tar.gz.lst"
		store(t, be, name, data)

		buf, err := backend.LoadAll(context.TODO(), nil, be, name)
		test.OK(t, err)
		test.Assert(t, bytes.Equal(data, buf), "wrong data returned for %v", name)
	}
}

// TestLoadNotExist tests that loading a missing object is reported.
func (s *Suite) TestLoadNotExist(t *testing.T) {
	be := s.open(t)

	called := false
	err := be.Load(context.TODO(), "missing.lst", func(rd io.Reader) error {
		called = true
		return nil
	})
	test.Assert(t, err != nil, "expected error for missing object")
	test.Assert(t, be.IsNotExist(err), "IsNotExist() did not recognize %v", err)
	test.Assert(t, !called, "fn was called for a missing object")
}

// TestLoadError tests that an error of fn is returned by Load.
func (s *Suite) TestLoadError(t *testing.T) {
	be := s.open(t)
	store(t, be, "object", []byte("data"))

	testErr := errors.New("consumer failed")
	err := be.Load(context.TODO(), "object", func(rd io.Reader) error {
		return testErr
	})
	test.Assert(t, errors.Is(err, testErr), "wrong error returned: %v", err)
}

// TestList tests that all stored objects are listed with their size.
func (s *Suite) TestList(t *testing.T) {
	be := s.open(t)

	want := map[string]int64{}
	for i := 0; i < 12; i++ {
		data := test.Random(100+i, 10*i+1)
		name := "object-" + string(rune('a'+i))
		store(t, be, name, data)
		want[name] = int64(len(data))
	}

	test.Equals(t, want, list(t, be))
}

// TestListEmpty tests listing an empty store.
func (s *Suite) TestListEmpty(t *testing.T) {
	be := s.open(t)
	test.Equals(t, 0, len(list(t, be)))
}

// TestListCancel tests that List stops when fn returns an error or the
// context is cancelled.
func (s *Suite) TestListCancel(t *testing.T) {
	be := s.open(t)
	for i := 0; i < 5; i++ {
		store(t, be, "object-"+string(rune('a'+i)), []byte{byte(i)})
	}

	t.Run("Error", func(t *testing.T) {
		testErr := errors.New("stop listing")
		calls := 0
		err := be.List(context.TODO(), func(backend.FileInfo) error {
			calls++
			return testErr
		})
		test.Assert(t, errors.Is(err, testErr), "wrong error returned: %v", err)
		test.Equals(t, 1, calls)
	})

	t.Run("Cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := be.List(ctx, func(backend.FileInfo) error {
			return nil
		})
		test.Assert(t, errors.Is(err, context.Canceled), "expected context.Canceled, got %v", err)
	})
}

// TestRemove tests that removed objects are no longer listed.
func (s *Suite) TestRemove(t *testing.T) {
	be := s.open(t)
	store(t, be, "keep", []byte("keep"))
	store(t, be, "remove", []byte("remove"))

	test.OK(t, be.Remove(context.TODO(), "remove"))

	var names []string
	for name := range list(t, be) {
		names = append(names, name)
	}
	sort.Strings(names)
	test.Equals(t, []string{"keep"}, names)

	err := be.Remove(context.TODO(), "remove")
	test.Assert(t, be.IsNotExist(err), "removing a missing object returned %v", err)
}
