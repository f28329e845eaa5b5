package culling

import (
	"sync"
	"time"
)

const (
	// ChunkResultTTL is how long a chunk visibility result is trusted.
	ChunkResultTTL = 5000 * time.Millisecond
	// EntityResultTTL is shorter because entities move between checks.
	EntityResultTTL = 3000 * time.Millisecond
	// CacheCapacity is the per-container size at which a store first sweeps expired entries.
	CacheCapacity = 1000
)

// Clock returns the current time. Tests substitute a fake.
type Clock func() time.Time

// CachedResult is a visibility decision and the time it was made.
type CachedResult struct {
	Visible   bool
	Timestamp time.Time
}

func (r CachedResult) expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(r.Timestamp) > ttl
}

// resultStore is a mutex-guarded map with lazy TTL expiry.
type resultStore[K comparable] struct {
	mu       sync.RWMutex
	entries  map[K]CachedResult
	ttl      time.Duration
	capacity int
}

func newResultStore[K comparable](ttl time.Duration, capacity int) *resultStore[K] {
	return &resultStore[K]{
		entries:  make(map[K]CachedResult),
		ttl:      ttl,
		capacity: capacity,
	}
}

func (s *resultStore[K]) lookup(key K, now time.Time) (bool, bool) {
	s.mu.RLock()
	cached, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return false, false
	}
	if !cached.expired(now, s.ttl) {
		return cached.Visible, true
	}

	s.mu.Lock()
	// Another writer may have replaced the entry since the read lock was released.
	if current, still := s.entries[key]; still && current.expired(now, s.ttl) {
		delete(s.entries, key)
	}
	s.mu.Unlock()
	return false, false
}

func (s *resultStore[K]) store(key K, visible bool, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) >= s.capacity {
		s.sweepLocked(now)
	}
	s.entries[key] = CachedResult{Visible: visible, Timestamp: now}
}

func (s *resultStore[K]) sweepLocked(now time.Time) int {
	removed := 0
	for key, cached := range s.entries {
		if cached.expired(now, s.ttl) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

func (s *resultStore[K]) size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *resultStore[K]) clear() {
	s.mu.Lock()
	s.entries = make(map[K]CachedResult)
	s.mu.Unlock()
}

// CacheStats is a point-in-time view of the cache sizes.
type CacheStats struct {
	ChunkCount  int `json:"chunk_count"`
	EntityCount int `json:"entity_count"`
	Capacity    int `json:"capacity"`
}

// ResultCache remembers recent chunk and entity visibility decisions.
// Expired entries are dropped when looked up or when a full store sweeps.
// A store never evicts a live entry, so a container may grow past CacheCapacity.
type ResultCache struct {
	chunks   *resultStore[SpatialKey]
	entities *resultStore[ObjectID]
	now      Clock
}

// CacheOption configures a ResultCache.
type CacheOption func(*ResultCache)

// WithClock replaces time.Now as the cache's time source.
func WithClock(clock Clock) CacheOption {
	return func(c *ResultCache) {
		c.now = clock
	}
}

// NewResultCache creates an empty cache.
func NewResultCache(opts ...CacheOption) *ResultCache {
	c := &ResultCache{
		chunks:   newResultStore[SpatialKey](ChunkResultTTL, CacheCapacity),
		entities: newResultStore[ObjectID](EntityResultTTL, CacheCapacity),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LookupChunk returns the cached chunk result; ok is false on a miss or an expired hit.
func (c *ResultCache) LookupChunk(key SpatialKey) (visible, ok bool) {
	return c.chunks.lookup(key, c.now())
}

// StoreChunk records a chunk result, replacing any previous one.
func (c *ResultCache) StoreChunk(key SpatialKey, visible bool) {
	c.chunks.store(key, visible, c.now())
}

// LookupEntity returns the cached entity result; ok is false on a miss or an expired hit.
func (c *ResultCache) LookupEntity(id ObjectID) (visible, ok bool) {
	return c.entities.lookup(id, c.now())
}

// StoreEntity records an entity result, replacing any previous one.
func (c *ResultCache) StoreEntity(id ObjectID, visible bool) {
	c.entities.store(id, visible, c.now())
}

// Clear empties both containers.
func (c *ResultCache) Clear() {
	c.chunks.clear()
	c.entities.clear()
}

// Stats returns the current container sizes.
func (c *ResultCache) Stats() CacheStats {
	return CacheStats{
		ChunkCount:  c.chunks.size(),
		EntityCount: c.entities.size(),
		Capacity:    CacheCapacity,
	}
}
