// Package audiocache implements the content-addressed audio cache of spec
// §4.4: a bounded LRU of encoded-audio bytes keyed by a 128-bit digest of
// (text, voice, speed, format), with an optional absolute TTL.
package audiocache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"lukechampine.com/blake3"
)

// Key is the 16-byte content digest identifying a cache entry, per the
// CacheEntry data-model contract ("key: 16-byte digest").
type Key [16]byte

// NewKey fingerprints (text, voice, speed, format) into a deterministic Key.
// Speed is rounded to 2 decimal places before hashing so that
// floating-point noise does not fragment the cache.
func NewKey(text, voice string, speed float64, format string) Key {
	speedCents := int64(speed*100 + 0.5)

	var buf []byte
	buf = append(buf, text...)
	buf = append(buf, 0)
	buf = append(buf, voice...)
	buf = append(buf, 0)
	buf = append(buf, format...)
	buf = append(buf, 0)
	buf = append(buf, int64LE(speedCents)...)

	sum := blake3.Sum256(buf)

	var k Key
	copy(k[:], sum[:16])

	return k
}

// FingerprintText hashes text alone, for the CacheEntry.text_fingerprint
// diagnostic field (distinct from the full (text,voice,speed,format) Key).
func FingerprintText(text string) Key {
	sum := blake3.Sum256([]byte(text))

	var k Key
	copy(k[:], sum[:16])

	return k
}

func int64LE(v int64) []byte {
	b := make([]byte, 8)
	for i := range b {
		b[i] = byte(v >> (8 * i))
	}

	return b
}

// Entry is the immutable value stored per key. Bytes is
// never mutated after insertion; callers that need to mutate must copy.
type Entry struct {
	Bytes          []byte
	Voice          string
	TextFingerprint Key
	Speed          float64
	Format         string
	InsertedAt     time.Time
}

// Cache is a thread-safe LRU over Entry, with an optional absolute TTL.
// Reads never block on the bookkeeping mutex longer than the map/list
// operation itself; returned byte slices are the same immutable backing
// array held by the entry.
type Cache struct {
	mu  sync.Mutex
	lru *lru.Cache[Key, Entry]
	ttl time.Duration

	hits   uint64
	misses uint64
}

// New builds a Cache with the given entry capacity and TTL (0 disables TTL
// eviction; only LRU capacity applies).
func New(capacity int, ttl time.Duration) (*Cache, error) {
	if capacity <= 0 {
		capacity = 1
	}

	l, err := lru.New[Key, Entry](capacity)
	if err != nil {
		return nil, err
	}

	return &Cache{lru: l, ttl: ttl}, nil
}

// Get returns the cached entry for key, if present and not expired.
func (c *Cache) Get(key Key) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(key)
	if !ok {
		c.misses++
		return Entry{}, false
	}

	if c.ttl > 0 && time.Since(e.InsertedAt) > c.ttl {
		c.lru.Remove(key)
		c.misses++

		return Entry{}, false
	}

	c.hits++

	return e, true
}

// Put inserts or overwrites an entry. Concurrent identical insertions are
// safe: the later write wins, which is acceptable because both are
// content-identical.
func (c *Cache) Put(key Key, e Entry) {
	if e.InsertedAt.IsZero() {
		e.InsertedAt = time.Now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, e)
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lru.Len()
}

// HitRate returns the fraction of Get calls that were hits, in [0,1]. Zero
// when no lookups have occurred yet.
func (c *Cache) HitRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	if total == 0 {
		return 0
	}

	return float64(c.hits) / float64(total)
}
