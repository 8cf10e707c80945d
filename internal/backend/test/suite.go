package test

import (
	"reflect"
	"strings"
	"testing"

	"github.com/asmfreak/arensync/internal/backend"
	"github.com/asmfreak/arensync/internal/test"
)

// Suite implements a test suite for backends.
type Suite struct {
	// Open returns a new empty backend. It is called once for every test.
	Open func(t testing.TB) (backend.Backend, error)

	// Cleanup removes data created during the tests.
	Cleanup func() error
}

// RunTests executes all defined tests as subtests of t.
func (s *Suite) RunTests(t *testing.T) {
	for _, test := range s.testFuncs(t) {
		t.Run(test.Name, test.Fn)
	}

	if !test.TestCleanupTempDirs {
		t.Logf("not cleaning up backend")
		return
	}

	if s.Cleanup != nil {
		if err := s.Cleanup(); err != nil {
			t.Fatal(err)
		}
	}
}

type testFunction struct {
	Name string
	Fn   func(*testing.T)
}

func (s *Suite) testFuncs(t testing.TB) (funcs []testFunction) {
	tpe := reflect.TypeOf(s)
	v := reflect.ValueOf(s)

	for i := 0; i < tpe.NumMethod(); i++ {
		methodType := tpe.Method(i)
		name := methodType.Name

		// discard functions which do not have the right name
		if !strings.HasPrefix(name, "Test") {
			continue
		}

		iface := v.Method(i).Interface()
		f, ok := iface.(func(*testing.T))
		if !ok {
			t.Logf("warning: function %v of *Suite has the wrong signature for a test function\nwant: func(*testing.T),\nhave: %T",
				name, iface)
			continue
		}

		funcs = append(funcs, testFunction{
			Name: name,
			Fn:   f,
		})
	}

	return funcs
}

func (s *Suite) open(t testing.TB) backend.Backend {
	be, err := s.Open(t)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := be.Close(); err != nil {
			t.Error(err)
		}
	})
	return be
}
