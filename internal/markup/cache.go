package markup

import "sync"

// Cache stores conversion results by Key. Implementations must be safe for
// concurrent use; a failed lookup is a miss.
type Cache interface {
	Get(key string) (*Result, bool)
	Put(key string, r *Result)
}

// MemoryCache is a Cache that lives as long as the process.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*Result
}

// NewMemoryCache returns an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]*Result)}
}

func (m *MemoryCache) Get(key string) (*Result, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.entries[key]
	return r, ok
}

func (m *MemoryCache) Put(key string, r *Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = r
}

// Len is the number of cached results.
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
