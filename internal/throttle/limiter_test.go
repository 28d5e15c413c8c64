// ABOUTME: Tests for the login failure limiter
// ABOUTME: Covers blocking, window expiry, reset, eviction, and concurrent use

package throttle

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/2389/shelf-gateway/internal/clock"
)

func newTestLimiter(maxFailures, keys int) (*Limiter, *clock.Fake) {
	fake := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	return New(Config{MaxFailures: maxFailures, Window: time.Minute, MaxKeys: keys, Clock: fake}), fake
}

func TestLimiter_BlocksAfterMaxFailures(t *testing.T) {
	l, _ := newTestLimiter(3, 100)

	for i := 1; i <= 2; i++ {
		assert.Equal(t, i, l.Fail("alice|10.0.0.1"))
		blocked, _ := l.Blocked("alice|10.0.0.1")
		assert.False(t, blocked)
	}

	l.Fail("alice|10.0.0.1")
	blocked, wait := l.Blocked("alice|10.0.0.1")
	assert.True(t, blocked)
	assert.Equal(t, time.Minute, wait)

	// Other keys are unaffected.
	blocked, _ = l.Blocked("alice|10.0.0.2")
	assert.False(t, blocked)
}

func TestLimiter_WindowExpires(t *testing.T) {
	l, fake := newTestLimiter(2, 100)

	l.Fail("k")
	fake.Advance(40 * time.Second)
	l.Fail("k")

	blocked, wait := l.Blocked("k")
	assert.True(t, blocked)
	assert.Equal(t, 20*time.Second, wait, "window runs from the first failure")

	fake.Advance(20 * time.Second)
	blocked, _ = l.Blocked("k")
	assert.False(t, blocked)
	assert.Equal(t, 1, l.Fail("k"), "a new window starts from scratch")
}

func TestLimiter_Reset(t *testing.T) {
	l, _ := newTestLimiter(1, 100)

	l.Fail("k")
	blocked, _ := l.Blocked("k")
	assert.True(t, blocked)

	l.Reset("k")
	blocked, _ = l.Blocked("k")
	assert.False(t, blocked)
	assert.Equal(t, 0, l.Len())

	l.Reset("never-seen")
}

func TestLimiter_EvictsOldestAtCapacity(t *testing.T) {
	l, _ := newTestLimiter(1, 3)

	l.Fail("a")
	l.Fail("b")
	l.Fail("c")
	l.Fail("d")

	assert.Equal(t, 3, l.Len())
	blocked, _ := l.Blocked("a")
	assert.False(t, blocked, "oldest key evicted")
	for _, k := range []string{"b", "c", "d"} {
		blocked, _ := l.Blocked(k)
		assert.True(t, blocked, k)
	}
}

func TestLimiter_Defaults(t *testing.T) {
	l := New(Config{})
	assert.Equal(t, DefaultMaxFailures, l.max)
	assert.Equal(t, DefaultWindow, l.window)
	assert.Equal(t, DefaultMaxKeys, l.maxKeys)
}

func TestLimiter_ConcurrentAccess(t *testing.T) {
	l, _ := newTestLimiter(1000, 1000)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k-%d", j%10)
				l.Fail(key)
				l.Blocked(key)
				if j%25 == 0 {
					l.Reset(key)
				}
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, l.Len(), 10)
}
