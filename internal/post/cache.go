package post

import (
	"sync"

	"git.home.luguber.info/inful/postbuilder/internal/frontmatter"
)

// Cache memoizes Parse by source fingerprint. A Cache lives for one build;
// it is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	hits    int
}

type cacheEntry struct {
	meta *Metadata
	err  error
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry)}
}

// Parse returns the cached result for identical source text, parsing on a miss.
// Malformed sources are cached too, so the same error is returned again.
func (c *Cache) Parse(raw []byte) (*Metadata, error) {
	doc, err := frontmatter.Split(raw)
	if err != nil {
		return nil, malformed("%v", err)
	}
	key := doc.Fingerprint()

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		c.hits++
		c.mu.Unlock()
		return e.meta, e.err
	}
	c.mu.Unlock()

	meta, err := parseDocument(doc)

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		// Another goroutine parsed the same text first; keep its value.
		return e.meta, e.err
	}
	c.entries[key] = cacheEntry{meta: meta, err: err}
	return meta, err
}

// Len is the number of distinct sources parsed.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Hits is the number of Parse calls served without parsing.
func (c *Cache) Hits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits
}
