// Package rescache implements the process-wide resource cache described by
// the concurrency & resource model's shared-resource policy: ML models and
// shared dictionaries are acquired by resource identifier, reference
// counted, and evicted under an LRU policy bounded by a configured memory
// ceiling — unlike internal/cache's TTL+janitor model, an entry here is
// never time-boxed, only refcount- and budget-boxed, since a live plugin
// instance holding a handle must never have its resource vanish out from
// under it.
package rescache

import (
	"container/list"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Loader constructs the in-process value for a resource identifier the
// first time it's acquired. sizeBytes is the caller's own estimate of the
// value's memory footprint, charged against the cache's byte ceiling.
type Loader func(params json.RawMessage) (value interface{}, sizeBytes int64, err error)

// Stats mirrors the teacher's cache statistics shape, adapted to a
// refcounted cache's own notion of pressure.
type Stats struct {
	Hits        int64
	Misses      int64
	Evictions   int64
	CurrentSize int
	UsedBytes   int64
}

type cacheEntry struct {
	key       string
	value     interface{}
	sizeBytes int64
	refcount  int
	lruElem   *list.Element // non-nil only while refcount == 0 and eviction-eligible
}

// Handle is returned from Acquire. Value retrieves the underlying resource;
// Cache.Release(handle) must be called exactly once per successful Acquire.
type Handle struct {
	cache *Cache
	key   string
	value interface{}
}

// Value returns the acquired resource.
func (h *Handle) Value() interface{} { return h.value }

// Cache is a process-wide, reference-counted resource cache with LRU
// eviction bounded by maxBytes. KeepLoaded disables eviction of
// zero-reference entries entirely, per the keep_models_loaded policy: once
// true, a loaded model is never dropped for the life of the process.
type Cache struct {
	mu         sync.Mutex
	maxBytes   int64
	usedBytes  int64
	keepLoaded bool
	logger     zerolog.Logger

	entries map[string]*cacheEntry
	lru     *list.List // oldest-evictable at Front

	loaders map[string]Loader

	stats Stats
}

// New constructs a Cache. maxBytes <= 0 means unbounded (eviction never
// triggers on size pressure, only KeepLoaded's always-retain behavior
// changes whether zero-ref entries are eviction-eligible at all).
func New(maxBytes int64, keepLoaded bool, logger zerolog.Logger) *Cache {
	return &Cache{
		maxBytes:   maxBytes,
		keepLoaded: keepLoaded,
		logger:     logger,
		entries:    make(map[string]*cacheEntry),
		lru:        list.New(),
		loaders:    make(map[string]Loader),
	}
}

// RegisterLoader binds a resource kind to the function that constructs a
// fresh value on a cache miss.
func (c *Cache) RegisterLoader(kind string, loader Loader) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaders[kind] = loader
}

// key derives a stable cache key from a resource kind and its
// canonicalized params.
func key(kind string, params json.RawMessage) (string, error) {
	var canon interface{}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &canon); err != nil {
			return "", fmt.Errorf("rescache: decode params: %w", err)
		}
	}
	canonBytes, err := json.Marshal(canon)
	if err != nil {
		return "", fmt.Errorf("rescache: canonicalize params: %w", err)
	}
	return kind + ":" + string(canonBytes), nil
}

// Acquire returns a Handle to the resource identified by kind+params,
// constructing it via the registered Loader on a miss. The handle's
// refcount is incremented before Acquire returns, so the resource cannot
// be evicted until Release is called.
func (c *Cache) Acquire(kind string, params json.RawMessage) (interface{}, error) {
	k, err := key(kind, params)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if e, ok := c.entries[k]; ok {
		c.pin(e)
		c.stats.Hits++
		c.mu.Unlock()
		return &Handle{cache: c, key: k, value: e.value}, nil
	}
	loader, ok := c.loaders[kind]
	c.stats.Misses++
	c.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("rescache: no loader registered for kind %q", kind)
	}
	value, size, err := loader(params)
	if err != nil {
		return nil, fmt.Errorf("rescache: load %q: %w", kind, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[k]; ok {
		// Lost a race with a concurrent Acquire for the same key; keep the
		// entry that won and discard this load.
		c.pin(e)
		return &Handle{cache: c, key: k, value: e.value}, nil
	}
	if err := c.makeRoom(size); err != nil {
		return nil, err
	}
	e := &cacheEntry{key: k, value: value, sizeBytes: size, refcount: 1}
	c.entries[k] = e
	c.usedBytes += size
	return &Handle{cache: c, key: k, value: value}, nil
}

// Release decrements h's refcount. At zero, the entry becomes eligible for
// LRU eviction (unless KeepLoaded), but is not itself removed immediately.
func (c *Cache) Release(h interface{}) {
	handle, ok := h.(*Handle)
	if !ok || handle == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[handle.key]
	if !ok {
		return
	}
	e.refcount--
	if e.refcount > 0 {
		return
	}
	if e.refcount < 0 {
		e.refcount = 0
	}
	if !c.keepLoaded {
		e.lruElem = c.lru.PushBack(e)
	}
}

// pin removes e from the LRU eviction list (if present) and increments its
// refcount. Caller holds c.mu.
func (c *Cache) pin(e *cacheEntry) {
	if e.lruElem != nil {
		c.lru.Remove(e.lruElem)
		e.lruElem = nil
	}
	e.refcount++
}

// makeRoom evicts zero-ref entries oldest-first until adding incoming bytes
// would fit under maxBytes, or returns an error if even evicting
// everything evictable wouldn't make room (every remaining entry is
// pinned, or KeepLoaded holds them all). Caller holds c.mu.
func (c *Cache) makeRoom(incoming int64) error {
	if c.maxBytes <= 0 {
		return nil
	}
	for c.usedBytes+incoming > c.maxBytes {
		front := c.lru.Front()
		if front == nil {
			return fmt.Errorf("rescache: no room for %d bytes under a %d byte ceiling (%d used, nothing evictable)",
				incoming, c.maxBytes, c.usedBytes)
		}
		e := front.Value.(*cacheEntry)
		c.lru.Remove(front)
		delete(c.entries, e.key)
		c.usedBytes -= e.sizeBytes
		c.stats.Evictions++
	}
	return nil
}

// Stats returns a snapshot of the cache's counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.CurrentSize = len(c.entries)
	s.UsedBytes = c.usedBytes
	return s
}
