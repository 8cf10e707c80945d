package retry

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/asmfreak/arensync/internal/backend"
	"github.com/asmfreak/arensync/internal/backend/mock"
	"github.com/asmfreak/arensync/internal/errors"
	rtest "github.com/asmfreak/arensync/internal/test"
)

type recorder struct {
	reports   []time.Duration
	successes []int
}

func (r *recorder) backend(be backend.Backend) *Backend {
	return New(be, 10, func(_ string, _ error, d time.Duration) {
		r.reports = append(r.reports, d)
	}, func(_ string, retries int) {
		r.successes = append(r.successes, retries)
	})
}

func listNames(t *testing.T, be backend.Backend) ([]string, error) {
	t.Helper()
	var names []string
	err := be.List(context.TODO(), func(fi backend.FileInfo) error {
		names = append(names, fi.Name)
		return nil
	})
	return names, err
}

func TestListRetry(t *testing.T) {
	TestFastRetries(t)

	attempts := 0
	be := mock.NewBackend()
	be.ListFn = func(_ context.Context, fn func(backend.FileInfo) error) error {
		attempts++
		_ = fn(backend.FileInfo{Name: "archive20200101_000000.tar.gz.lst"})
		if attempts == 1 {
			return errors.New("connection reset")
		}
		return fn(backend.FileInfo{Name: "archive20200102_000000.tar.gz.lst"})
	}

	var rec recorder
	names, err := listNames(t, rec.backend(be))
	rtest.OK(t, err)
	rtest.Equals(t, 2, attempts)
	rtest.Equals(t, []string{
		"archive20200101_000000.tar.gz.lst",
		"archive20200102_000000.tar.gz.lst",
	}, names)
	rtest.Equals(t, 1, len(rec.reports))
	rtest.Equals(t, []int{1}, rec.successes)
}

func TestListCallbackError(t *testing.T) {
	TestFastRetries(t)

	attempts := 0
	be := mock.NewBackend()
	be.ListFn = func(ctx context.Context, fn func(backend.FileInfo) error) error {
		attempts++
		for _, name := range []string{"a", "b", "c"} {
			if err := fn(backend.FileInfo{Name: name}); err != nil {
				return err
			}
		}
		return nil
	}

	stop := errors.New("stop listing")
	var seen []string
	var rec recorder
	err := rec.backend(be).List(context.TODO(), func(fi backend.FileInfo) error {
		seen = append(seen, fi.Name)
		if fi.Name == "b" {
			return stop
		}
		return nil
	})

	rtest.Assert(t, errors.Is(err, stop), "wrong error %v", err)
	rtest.Equals(t, []string{"a", "b"}, seen)
	rtest.Equals(t, 1, attempts)
	rtest.Equals(t, 0, len(rec.reports))
}

func TestListGivesUp(t *testing.T) {
	TestFastRetries(t)

	attempts := 0
	unreachable := errors.New("host unreachable")
	be := mock.NewBackend()
	be.ListFn = func(context.Context, func(backend.FileInfo) error) error {
		attempts++
		return unreachable
	}

	var rec recorder
	_, err := listNames(t, rec.backend(be))
	rtest.Assert(t, errors.Is(err, unreachable), "wrong error %v", err)
	rtest.Equals(t, 2, attempts)
	rtest.Equals(t, 2, len(rec.reports))
	rtest.Equals(t, time.Duration(-1), rec.reports[1])
	rtest.Equals(t, 0, len(rec.successes))
}

// truncatedReader fails after returning limit bytes.
type truncatedReader struct {
	data  []byte
	limit int
}

func (r *truncatedReader) Read(p []byte) (int, error) {
	if r.limit == 0 {
		return 0, errors.New("connection lost")
	}
	n := copy(p, r.data[:r.limit])
	r.data = r.data[n:]
	r.limit -= n
	return n, nil
}

func TestLoadRetry(t *testing.T) {
	TestFastRetries(t)

	data := rtest.Random(23, 1024)
	attempts := 0
	be := mock.NewBackend()
	be.OpenReaderFn = func(context.Context, string) (io.ReadCloser, error) {
		attempts++
		if attempts == 1 {
			return io.NopCloser(&truncatedReader{data: data, limit: 100}), nil
		}
		return io.NopCloser(bytes.NewReader(data)), nil
	}

	var rec recorder
	buf, err := backend.LoadAll(context.TODO(), nil, rec.backend(be), "archive20200101_000000.tar.gz.age")
	rtest.OK(t, err)
	rtest.Equals(t, data, buf)
	rtest.Equals(t, 2, attempts)
	rtest.Equals(t, []int{1}, rec.successes)
}

func TestLoadNoRetry(t *testing.T) {
	notFound := errors.New("not found")
	consumerErr := errors.New("gpg: decryption failed")

	for _, test := range []struct {
		name     string
		open     error
		consumer error
		want     error
	}{
		{"permanent", notFound, nil, notFound},
		{"consumer", nil, backoff.Permanent(consumerErr), consumerErr},
	} {
		t.Run(test.name, func(t *testing.T) {
			TestFastRetries(t)

			attempts := 0
			be := mock.NewBackend()
			be.OpenReaderFn = func(context.Context, string) (io.ReadCloser, error) {
				attempts++
				if test.open != nil {
					return nil, test.open
				}
				return io.NopCloser(bytes.NewReader([]byte("data"))), nil
			}
			be.IsPermanentErrorFn = func(err error) bool {
				return errors.Is(err, notFound)
			}

			var rec recorder
			err := rec.backend(be).Load(context.TODO(), "archive", func(io.Reader) error {
				return test.consumer
			})
			rtest.Assert(t, errors.Is(err, test.want), "wrong error %v", err)
			rtest.Equals(t, 1, attempts)
		})
	}
}

func TestSaveRemovePassThrough(t *testing.T) {
	TestFastRetries(t)

	saves, removes := 0, 0
	be := mock.NewBackend()
	be.SaveFn = func(context.Context, string, io.Reader) error {
		saves++
		return errors.New("upload failed")
	}
	be.RemoveFn = func(context.Context, string) error {
		removes++
		return errors.New("remove failed")
	}

	var rec recorder
	rb := rec.backend(be)
	rtest.Assert(t, rb.Save(context.TODO(), "x", bytes.NewReader(nil)) != nil, "expected save error")
	rtest.Assert(t, rb.Remove(context.TODO(), "x") != nil, "expected remove error")
	rtest.Equals(t, 1, saves)
	rtest.Equals(t, 1, removes)
	rtest.Equals(t, 0, len(rec.reports))
}

func TestCanceledContext(t *testing.T) {
	calls := 0
	be := mock.NewBackend()
	be.ListFn = func(context.Context, func(backend.FileInfo) error) error {
		calls++
		return nil
	}
	be.OpenReaderFn = func(context.Context, string) (io.ReadCloser, error) {
		calls++
		return nil, errors.New("not reached")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rb := New(be, time.Hour, nil, nil)
	err := rb.List(ctx, func(backend.FileInfo) error { return nil })
	rtest.Assert(t, errors.Is(err, context.Canceled), "wrong error %v", err)
	err = rb.Load(ctx, "x", func(io.Reader) error { return nil })
	rtest.Assert(t, errors.Is(err, context.Canceled), "wrong error %v", err)
	rtest.Equals(t, 0, calls)
}

func TestUnwrap(t *testing.T) {
	be := mock.NewBackend()
	rtest.Assert(t, New(be, 0, nil, nil).Unwrap() == backend.Backend(be), "wrong backend")
}

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

func TestAtLeastOnce(t *testing.T) {
	clock := &fixedClock{now: time.Now()}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 5 * time.Second
	bo.Clock = clock
	bo.Reset()

	b := &atLeastOnce{ExponentialBackOff: bo}
	clock.now = clock.now.Add(10 * time.Second)

	rtest.Equals(t, bo.InitialInterval, b.NextBackOff())
	rtest.Equals(t, bo.Stop, b.NextBackOff())

	b.Reset()
	rtest.Equals(t, 0, b.tries)
}
