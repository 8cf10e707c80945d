package retry

import (
	"testing"
	"time"
)

// TestFastRetries lowers the retry delays for the duration of the test.
func TestFastRetries(t testing.TB) {
	initialInterval = time.Millisecond
	t.Cleanup(func() {
		initialInterval = time.Second
	})
}
