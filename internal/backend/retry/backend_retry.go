package retry

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/asmfreak/arensync/internal/backend"
	"github.com/asmfreak/arensync/internal/debug"
	"github.com/asmfreak/arensync/internal/errors"
)

// Backend retries the read operations List and Load of the wrapped backend
// with an exponential backoff. Save and Remove are passed through, an upload
// is never repeated behind the caller's back.
type Backend struct {
	backend.Backend
	MaxElapsedTime time.Duration

	// Report is called for every failed attempt with the delay until the
	// next one. A negative delay means the operation is given up.
	Report func(op string, err error, d time.Duration)
	// Success is called when an operation succeeds after retries.
	Success func(op string, retries int)
}

var _ backend.Backend = &Backend{}

// New wraps be. report and success may be nil.
func New(be backend.Backend, maxElapsedTime time.Duration, report func(string, error, time.Duration), success func(string, int)) *Backend {
	return &Backend{
		Backend:        be,
		MaxElapsedTime: maxElapsedTime,
		Report:         report,
		Success:        success,
	}
}

// initialInterval is the delay before the first retry.
var initialInterval = time.Second

// atLeastOnce makes sure a failed operation is retried once even if the
// maximum elapsed time has passed before the first attempt returned.
type atLeastOnce struct {
	*backoff.ExponentialBackOff
	tries int
}

func (b *atLeastOnce) NextBackOff() time.Duration {
	b.tries++
	d := b.ExponentialBackOff.NextBackOff()
	if d == b.Stop && b.tries == 1 {
		return b.InitialInterval
	}
	return d
}

func (b *atLeastOnce) Reset() {
	b.tries = 0
	b.ExponentialBackOff.Reset()
}

func (be *Backend) newBackOff() *atLeastOnce {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initialInterval
	bo.Multiplier = 2
	bo.MaxElapsedTime = be.MaxElapsedTime
	if initialInterval < time.Second && bo.MaxElapsedTime > 200*initialInterval {
		bo.MaxElapsedTime = 200 * initialInterval
	}
	bo.Reset()
	return &atLeastOnce{ExponentialBackOff: bo}
}

func (be *Backend) report(op string, err error, d time.Duration) {
	debug.Log("%v failed (next attempt in %v): %v", op, d, err)
	if be.Report != nil {
		be.Report(op, err, d)
	}
}

// retry runs f until it succeeds, returns a permanent error or the backoff
// gives up. A cancelled context is never retried.
func (be *Backend) retry(ctx context.Context, op string, f func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	failures := 0
	err := backoff.RetryNotify(func() error {
		err := f()
		if err == nil {
			if failures > 0 && be.Success != nil {
				be.Success(op, failures)
			}
			return nil
		}

		failures++
		var permanent *backoff.PermanentError
		if !errors.As(err, &permanent) && be.Backend.IsPermanentError(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(be.newBackOff(), ctx), func(err error, d time.Duration) {
		be.report(op, err, d)
	})

	if err != nil && ctx.Err() == nil {
		be.report(op, err, -1)
	}
	return err
}

// Load runs consumer with the contents of the object name. The consumer runs
// again for every attempt; it can stop the retries by returning a
// backoff.PermanentError.
func (be *Backend) Load(ctx context.Context, name string, consumer func(rd io.Reader) error) error {
	return be.retry(ctx, fmt.Sprintf("Load(%v)", name), func() error {
		return be.Backend.Load(ctx, name, consumer)
	})
}

// List runs fn once for each object, also across retries. An error returned
// by fn aborts the listing without a retry.
func (be *Backend) List(ctx context.Context, fn func(backend.FileInfo) error) error {
	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	seen := make(map[string]struct{})
	var fnErr error

	err := be.retry(listCtx, "List()", func() error {
		return be.Backend.List(listCtx, func(fi backend.FileInfo) error {
			if _, ok := seen[fi.Name]; ok {
				return nil
			}
			seen[fi.Name] = struct{}{}

			fnErr = fn(fi)
			if fnErr != nil {
				cancel()
			}
			return fnErr
		})
	})

	if fnErr != nil {
		return fnErr
	}
	return err
}

// Unwrap returns the wrapped backend.
func (be *Backend) Unwrap() backend.Backend {
	return be.Backend
}
