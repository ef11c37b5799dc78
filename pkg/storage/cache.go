package storage

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// ReferenceCache is an LRU cache of decoded references with a TTL.
type ReferenceCache struct {
	capacity int
	ttl      time.Duration
	mu       sync.Mutex
	cache    map[string]*cacheEntry
	lru      *list.List
	now      func() time.Time
}

type cacheEntry struct {
	ref       *Reference
	timestamp time.Time
	element   *list.Element
}

// NewReferenceCache creates a new reference cache. A zero ttl never expires
// entries.
func NewReferenceCache(capacity int, ttl time.Duration) *ReferenceCache {
	return &ReferenceCache{
		capacity: capacity,
		ttl:      ttl,
		cache:    make(map[string]*cacheEntry),
		lru:      list.New(),
		now:      time.Now,
	}
}

// Get retrieves a cached reference
func (rc *ReferenceCache) Get(name string) (*Reference, bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	entry, exists := rc.cache[name]
	if !exists {
		return nil, false
	}

	if rc.expired(entry) {
		rc.removeLocked(name)
		return nil, false
	}

	rc.lru.MoveToFront(entry.element)
	return entry.ref, true
}

// Put stores a reference in the cache
func (rc *ReferenceCache) Put(ref *Reference) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if entry, exists := rc.cache[ref.Name]; exists {
		entry.ref = ref
		entry.timestamp = rc.now()
		rc.lru.MoveToFront(entry.element)
		return
	}

	entry := &cacheEntry{ref: ref, timestamp: rc.now()}
	entry.element = rc.lru.PushFront(ref.Name)
	rc.cache[ref.Name] = entry

	for rc.lru.Len() > rc.capacity {
		oldest := rc.lru.Back()
		rc.removeLocked(oldest.Value.(string))
	}
}

// Remove evicts a reference from the cache
func (rc *ReferenceCache) Remove(name string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.removeLocked(name)
}

// removeLocked removes an entry from the cache (must hold lock)
func (rc *ReferenceCache) removeLocked(name string) {
	if entry, exists := rc.cache[name]; exists {
		rc.lru.Remove(entry.element)
		delete(rc.cache, name)
	}
}

func (rc *ReferenceCache) expired(entry *cacheEntry) bool {
	return rc.ttl > 0 && rc.now().Sub(entry.timestamp) > rc.ttl
}

// Stats returns cache statistics
func (rc *ReferenceCache) Stats() CacheStats {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	expired := 0
	for _, entry := range rc.cache {
		if rc.expired(entry) {
			expired++
		}
	}

	return CacheStats{
		Size:     len(rc.cache),
		Capacity: rc.capacity,
		Expired:  expired,
	}
}

// CacheStats contains cache statistics
type CacheStats struct {
	Size     int
	Capacity int
	Expired  int
	Hits     uint64
	Misses   uint64
}

// HitRate returns the cache hit rate as a percentage
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0.0
	}
	return float64(s.Hits) / float64(total) * 100.0
}

// CachedStore wraps a Store with a reference cache. Writes and deletes
// invalidate the affected entry.
type CachedStore struct {
	store  Store
	cache  *ReferenceCache
	hits   uint64
	misses uint64
	mu     sync.Mutex
}

// NewCachedStore creates a cached store wrapper
func NewCachedStore(store Store, capacity int, ttl time.Duration) *CachedStore {
	return &CachedStore{
		store: store,
		cache: NewReferenceCache(capacity, ttl),
	}
}

// Put passes through to the underlying store
func (cs *CachedStore) Put(ctx context.Context, ref *Reference) error {
	if ref != nil {
		cs.cache.Remove(ref.Name)
	}
	return cs.store.Put(ctx, ref)
}

// Get checks the cache before reading the underlying store
func (cs *CachedStore) Get(ctx context.Context, name string) (*Reference, error) {
	if ref, ok := cs.cache.Get(name); ok {
		cs.mu.Lock()
		cs.hits++
		cs.mu.Unlock()
		return shallowCopy(ref), nil
	}

	cs.mu.Lock()
	cs.misses++
	cs.mu.Unlock()

	ref, err := cs.store.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	cs.cache.Put(ref)
	return shallowCopy(ref), nil
}

// List passes through to the underlying store
func (cs *CachedStore) List(ctx context.Context, selectors map[string]string) ([]Meta, error) {
	return cs.store.List(ctx, selectors)
}

// Delete removes the reference from the cache and the underlying store
func (cs *CachedStore) Delete(ctx context.Context, name string) error {
	cs.cache.Remove(name)
	return cs.store.Delete(ctx, name)
}

// Close closes the underlying store
func (cs *CachedStore) Close() error {
	return cs.store.Close()
}

// CacheStats returns cache statistics including hits and misses
func (cs *CachedStore) CacheStats() CacheStats {
	stats := cs.cache.Stats()

	cs.mu.Lock()
	defer cs.mu.Unlock()
	stats.Hits = cs.hits
	stats.Misses = cs.misses
	return stats
}

// shallowCopy hands out a reference whose labels the caller may modify.
// Tables are never mutated in place.
func shallowCopy(ref *Reference) *Reference {
	out := *ref
	out.Labels = copyLabels(ref.Labels)
	return &out
}
