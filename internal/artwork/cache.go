package artwork

import (
	"image"
	"sync"
	"time"
)

// Artwork is a decoded album image together with where and when it was fetched.
type Artwork struct {
	Image     image.Image
	URL       string
	FetchedAt time.Time
}

// Cache is a single-slot, last-writer-wins register for the displayed artwork.
// Readers get either the previous or the new value, never a partial one.
type Cache struct {
	mu      sync.RWMutex
	current *Artwork
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// Read returns the current artwork, or nil before the first write.
func (c *Cache) Read() *Artwork {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Write replaces the current artwork. A nil or image-less value is ignored.
func (c *Cache) Write(a *Artwork) {
	if a == nil || a.Image == nil {
		return
	}
	c.mu.Lock()
	c.current = a
	c.mu.Unlock()
}
