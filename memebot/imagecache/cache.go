// Package imagecache remembers the most recent image references seen by the bot.
// The cache is shared by every user and is advisory only.
package imagecache

import "sync"

// DefaultCapacity is the number of references kept before the oldest is evicted.
const DefaultCapacity = 10

// Cache is a bounded FIFO ring of image references. Duplicates are allowed.
type Cache struct {
	mu    sync.Mutex
	buf   []string
	start int
	n     int
}

// New returns a cache holding at most capacity references.
// A non-positive capacity falls back to DefaultCapacity.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{buf: make([]string, capacity)}
}

// Record appends ref, evicting the oldest entry when the cache is full.
// Empty references are ignored.
func (c *Cache) Record(ref string) {
	if ref == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.n < len(c.buf) {
		c.buf[(c.start+c.n)%len(c.buf)] = ref
		c.n++
		return
	}
	c.buf[c.start] = ref
	c.start = (c.start + 1) % len(c.buf)
}

// MostRecent returns the last recorded reference.
func (c *Cache) MostRecent() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.n == 0 {
		return "", false
	}
	return c.buf[(c.start+c.n-1)%len(c.buf)], true
}

// Snapshot returns a copy of the cached references, oldest first.
func (c *Cache) Snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, c.n)
	for i := 0; i < c.n; i++ {
		out[i] = c.buf[(c.start+i)%len(c.buf)]
	}
	return out
}

// Len reports the number of cached references.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
