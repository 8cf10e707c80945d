package errors_test

import (
	"testing"

	"github.com/asmfreak/arensync/internal/errors"
)

func TestFatal(t *testing.T) {
	for _, v := range []struct {
		err      error
		expected bool
	}{
		{errors.Fatal("workdir does not exist"), true},
		{errors.Fatalf("profile %q is invalid", "home.conf"), true},
		{errors.New("error"), false},
	} {
		if errors.IsFatal(v.err) != v.expected {
			t.Fatalf("IsFatal for %q, expected: %v, got: %v", v.err, v.expected, errors.IsFatal(v.err))
		}
	}
}

func TestFatalKeepsKind(t *testing.T) {
	underlying := errors.WithKind(errors.RemoteUnavailable, errors.New("connection refused"))
	fatal := errors.Fatalf("remote check failed: %v", underlying)

	if fatal.Error() != "Fatal: remote check failed: connection refused" {
		t.Errorf("unexpected error message: %v", fatal.Error())
	}
	if !errors.Is(fatal, underlying) {
		t.Error("fatal error should wrap the underlying error")
	}
	if !errors.IsKind(fatal, errors.RemoteUnavailable) {
		t.Error("kind of the underlying error is lost")
	}
}
