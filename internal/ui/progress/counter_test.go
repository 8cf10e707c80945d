package progress_test

import (
	"sync"
	"testing"

	rtest "github.com/asmfreak/arensync/internal/test"
	"github.com/asmfreak/arensync/internal/ui/progress"
)

func TestCounter(t *testing.T) {
	const N = 100

	var (
		mu     sync.Mutex
		ncalls int
		last   uint64
	)
	report := func(value uint64, total uint64) {
		mu.Lock()
		defer mu.Unlock()
		ncalls++
		if value > last {
			last = value
		}
		rtest.Equals(t, uint64(N), total)
	}
	c := progress.NewCounter(N, report)

	var wg sync.WaitGroup
	for i := 0; i < N; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Add(1)
		}()
	}
	wg.Wait()

	rtest.Equals(t, N, ncalls)
	rtest.Equals(t, uint64(N), last)
	rtest.Equals(t, uint64(0), c.Remaining())

	v, max := c.Get()
	rtest.Equals(t, uint64(N), v)
	rtest.Equals(t, uint64(N), max)
}

func TestCounterRemaining(t *testing.T) {
	c := progress.NewCounter(10, nil)
	c.Add(3)
	rtest.Equals(t, uint64(7), c.Remaining())

	c.SetMax(2)
	rtest.Equals(t, uint64(0), c.Remaining())
}

func TestCounterNil(_ *testing.T) {
	var c *progress.Counter
	c.Add(1)
	c.SetMax(42)
	_, _ = c.Get()
}
