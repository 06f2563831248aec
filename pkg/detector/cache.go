package detector

import (
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mapsproj/maps/pkg/document"
)

// DefaultCacheSize bounds the signature cache when no capacity is given.
const DefaultCacheSize = 1024

// Cache memoizes detection results by structural signature. It is bounded
// (LRU eviction) and safe for concurrent use: readers consult an
// atomically published immutable snapshot and never take a lock; writers
// serialize on a mutex, update the LRU, and republish the snapshot.
type Cache struct {
	mu   sync.Mutex
	lru  *lru.Cache[document.Signature, Result]
	snap atomic.Pointer[map[document.Signature]Result]

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCache creates a cache holding at most size entries. Size <= 0 uses
// DefaultCacheSize.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	l, err := lru.New[document.Signature, Result](size)
	if err != nil {
		return nil, err
	}
	c := &Cache{lru: l}
	empty := map[document.Signature]Result{}
	c.snap.Store(&empty)
	return c, nil
}

// Get returns the cached result for sig, lock-free.
func (c *Cache) Get(sig document.Signature) (Result, bool) {
	snap := *c.snap.Load()
	res, ok := snap[sig]
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return res, ok
}

// Put stores a result and republishes the read snapshot. Recency for
// eviction purposes is write recency; read hits do not reorder entries,
// which keeps the read path lock-free.
func (c *Cache) Put(sig document.Signature, res Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(sig, res)

	snap := make(map[document.Signature]Result, c.lru.Len())
	for _, k := range c.lru.Keys() {
		if v, ok := c.lru.Peek(k); ok {
			snap[k] = v
		}
	}
	c.snap.Store(&snap)
}

// Len returns the current number of cached signatures.
func (c *Cache) Len() int {
	return len(*c.snap.Load())
}

// Stats reports cumulative hit and miss counts.
func (c *Cache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}
