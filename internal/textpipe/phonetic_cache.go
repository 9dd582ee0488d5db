package textpipe

import (
	"encoding/json"
	"os"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// PhoneticKey identifies a cached phonetic lookup by word, notation system,
// and accent.
type PhoneticKey struct {
	Word, Notation, Accent string
}

// PhoneticCache is the bounded LRU the normalization pipeline owns for
// repeated word-level phonetic lookups, persistable to a JSON sidecar.
type PhoneticCache struct {
	mu    sync.Mutex
	cache *lru.Cache[PhoneticKey, string]
}

// NewPhoneticCache builds a cache with the given entry cap.
func NewPhoneticCache(capacity int) (*PhoneticCache, error) {
	if capacity <= 0 {
		capacity = 1
	}
	c, err := lru.New[PhoneticKey, string](capacity)
	if err != nil {
		return nil, err
	}
	return &PhoneticCache{cache: c}, nil
}

// Get returns the cached phonetic notation for key, if present.
func (c *PhoneticCache) Get(key PhoneticKey) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Get(key)
}

// Put stores notation for key. Words shorter than 2 characters are never
// cached.
func (c *PhoneticCache) Put(key PhoneticKey, notation string) {
	if len(key.Word) < 2 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Add(key, notation)
}

// Len reports the number of cached entries.
func (c *PhoneticCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}

type sidecarEntry struct {
	Word, Notation, Accent string
	Value                  string
}

// SaveSidecar persists the current cache contents to a JSON file.
func (c *PhoneticCache) SaveSidecar(path string) error {
	c.mu.Lock()
	keys := c.cache.Keys()
	entries := make([]sidecarEntry, 0, len(keys))
	for _, k := range keys {
		v, ok := c.cache.Peek(k)
		if !ok {
			continue
		}
		entries = append(entries, sidecarEntry{Word: k.Word, Notation: k.Notation, Accent: k.Accent, Value: v})
	}
	c.mu.Unlock()

	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadSidecar restores cache contents previously saved with SaveSidecar.
func (c *PhoneticCache) LoadSidecar(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var entries []sidecarEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	for _, e := range entries {
		c.Put(PhoneticKey{Word: e.Word, Notation: e.Notation, Accent: e.Accent}, e.Value)
	}
	return nil
}
