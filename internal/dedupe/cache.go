// ABOUTME: TTL- and size-bounded cache of inbound transport message ids
// ABOUTME: Lets the gateway drop broker redeliveries of messages it already handled

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// cleanupInterval is how often expired ids are swept.
const cleanupInterval = time.Minute

type entry struct {
	seenAt  time.Time
	element *list.Element
}

// Cache remembers recently handled message ids. Ids are scoped by topic so
// two publishers reusing the same id on different topics do not collide.
type Cache struct {
	mu      sync.Mutex
	seen    map[string]*entry
	order   *list.List // keys, oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	done    chan struct{}
	closed  bool
}

// New creates a cache that forgets ids after ttl and holds at most maxSize.
// A background goroutine sweeps expired ids until Close is called.
func New(ttl time.Duration, maxSize int) *Cache {
	c := newCache(ttl, maxSize, time.Now)
	go c.sweepLoop()
	return c
}

func newCache(ttl time.Duration, maxSize int, now func() time.Time) *Cache {
	if maxSize < 1 {
		maxSize = 1
	}
	return &Cache{
		seen:    make(map[string]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     now,
		done:    make(chan struct{}),
	}
}

func key(topic, id string) string {
	return topic + "\x00" + id
}

// Duplicate reports whether (topic, id) was handled within the TTL. A new id
// is recorded in the same step. Messages without an id are never duplicates.
func (c *Cache) Duplicate(topic, id string) bool {
	if id == "" {
		return false
	}
	k := key(topic, id)
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.seen[k]; ok {
		if now.Sub(e.seenAt) < c.ttl {
			return true
		}
		// Expired: treat as new and refresh its position
		e.seenAt = now
		c.order.MoveToBack(e.element)
		return false
	}

	if len(c.seen) >= c.maxSize {
		c.evictOldest()
	}
	c.seen[k] = &entry{seenAt: now, element: c.order.PushBack(k)}
	return false
}

// Len returns the number of remembered ids, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// evictOldest drops the least recently recorded id. Must be called with mu held.
func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	k, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.seen, k)
}

func (c *Cache) sweepLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.done:
			return
		}
	}
}

// sweep removes expired ids. The order list is oldest first, so it stops at
// the first live id.
func (c *Cache) sweep() {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for front := c.order.Front(); front != nil; front = c.order.Front() {
		k, _ := front.Value.(string)
		e := c.seen[k]
		if e != nil && now.Sub(e.seenAt) < c.ttl {
			return
		}
		c.order.Remove(front)
		delete(c.seen, k)
	}
}

// Close stops the sweeper. It is safe to call multiple times.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
