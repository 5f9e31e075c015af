package rectindex

import (
	"sync"

	"github.com/onnwee/pixelclaim/internal/grid"
)

// Cache keeps the index for the most recent (principal, grid version) pair.
// Rebuilds happen only when one of the two changes.
type Cache struct {
	mu      sync.Mutex
	wallet  string
	version uint64
	index   *Index
	builds  int
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// Get returns the index of wallet's cells in snap, building it if the cached
// one was made for a different wallet or version.
func (c *Cache) Get(snap *grid.Snapshot, wallet string) *Index {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.index != nil && c.wallet == wallet && c.version == snap.Version {
		return c.index
	}

	target := grid.Unowned
	if id, ok := snap.IDOf(wallet); ok {
		target = id
	}
	c.index = Build(snap.Owners, target)
	c.wallet = wallet
	c.version = snap.Version
	c.builds++
	return c.index
}

// Builds returns how many times the cache has built an index.
func (c *Cache) Builds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.builds
}
