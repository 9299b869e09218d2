// ABOUTME: Tests for the inbound message id cache
// ABOUTME: Validates TTL expiry, topic scoping, size eviction, sweeping and concurrency safety

package dedupe

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestCache(ttl time.Duration, maxSize int) (*Cache, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	return newCache(ttl, maxSize, clock.Now), clock
}

func TestCache_FirstDeliveryIsNotDuplicate(t *testing.T) {
	c, _ := newTestCache(time.Minute, 10)

	assert.False(t, c.Duplicate("robot/notify", "m1"))
	assert.True(t, c.Duplicate("robot/notify", "m1"))
	assert.Equal(t, 1, c.Len())
}

func TestCache_EmptyIDNeverDuplicate(t *testing.T) {
	c, _ := newTestCache(time.Minute, 10)

	assert.False(t, c.Duplicate("robot/notify", ""))
	assert.False(t, c.Duplicate("robot/notify", ""))
	assert.Equal(t, 0, c.Len())
}

func TestCache_ScopedByTopic(t *testing.T) {
	c, _ := newTestCache(time.Minute, 10)

	assert.False(t, c.Duplicate("robot/notify", "m1"))
	assert.False(t, c.Duplicate("robot/other", "m1"))
}

func TestCache_Expiry(t *testing.T) {
	c, clock := newTestCache(time.Minute, 10)

	assert.False(t, c.Duplicate("t", "m1"))
	clock.Advance(59 * time.Second)
	assert.True(t, c.Duplicate("t", "m1"))

	clock.Advance(2 * time.Second)
	assert.False(t, c.Duplicate("t", "m1"), "expired id counts as new")
	assert.True(t, c.Duplicate("t", "m1"), "and is recorded again")
}

func TestCache_EvictsOldest(t *testing.T) {
	c, _ := newTestCache(time.Hour, 3)

	for _, id := range []string{"a", "b", "c", "d"} {
		assert.False(t, c.Duplicate("t", id))
	}

	assert.Equal(t, 3, c.Len())
	assert.False(t, c.Duplicate("t", "a"), "oldest id was evicted")
	assert.True(t, c.Duplicate("t", "d"))
}

func TestCache_Sweep(t *testing.T) {
	c, clock := newTestCache(time.Minute, 10)

	c.Duplicate("t", "old-1")
	c.Duplicate("t", "old-2")
	clock.Advance(50 * time.Second)
	c.Duplicate("t", "fresh")
	clock.Advance(20 * time.Second)

	c.sweep()

	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Duplicate("t", "fresh"))
}

func TestCache_Concurrent(t *testing.T) {
	c := New(time.Minute, 1000)
	defer c.Close()

	var firsts atomic.Int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 50 {
				if !c.Duplicate("t", fmt.Sprintf("m-%d", i)) {
					firsts.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(50), firsts.Load(), "each id is new exactly once")
}

func TestCache_CloseTwice(t *testing.T) {
	c := New(time.Minute, 10)
	c.Close()
	c.Close()
}
