package slide

import (
	"errors"
	"sync"
)

// Cache keeps slides open across requests, keyed by path.
//
// Opening a slide decodes the whole raster and builds its levels, so a
// long-running server should not repeat that work for every tile. Cache is
// safe for concurrent use by multiple goroutines.
//
// A cached slide that has latched an error is closed and reopened on the
// next Load. Slides remain open until removed via Evict or Clear.
//
// # Example Usage
//
//	cache := slide.NewCache()
//	defer cache.Clear()
//	s, err := cache.Load("/path/to/slide.tiff")
//	if err != nil {
//	    log.Fatal(err)
//	}
type Cache struct {
	mu     sync.RWMutex
	slides map[string]*Slide
	open   func(path string) (*Slide, error)
}

// NewCache creates an empty cache that opens slides with Open.
func NewCache() *Cache {
	return NewCacheWithOpener(Open)
}

// NewCacheWithOpener creates an empty cache that opens slides with open.
func NewCacheWithOpener(open func(path string) (*Slide, error)) *Cache {
	return &Cache{
		slides: make(map[string]*Slide),
		open:   open,
	}
}

// Load returns the cached slide for path, opening it if needed.
//
// The slide is cached using the exact path string provided. Different paths
// to the same file result in separate handles.
func (c *Cache) Load(path string) (*Slide, error) {
	c.mu.RLock()
	s, ok := c.slides[path]
	c.mu.RUnlock()
	if ok {
		if err := s.Err(); err == nil {
			return s, nil
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.slides[path]; ok {
		err := s.Err()
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, ErrClosed) {
			s.Close()
		}
		delete(c.slides, path)
	}

	s, err := c.open(path)
	if err != nil {
		return nil, err
	}
	c.slides[path] = s
	return s, nil
}

// Evict closes and removes the slide for path. Unknown paths are ignored.
func (c *Cache) Evict(path string) error {
	c.mu.Lock()
	s, ok := c.slides[path]
	delete(c.slides, path)
	c.mu.Unlock()
	if !ok {
		return nil
	}
	return s.Close()
}

// Clear closes and removes every cached slide.
func (c *Cache) Clear() {
	c.mu.Lock()
	slides := c.slides
	c.slides = make(map[string]*Slide)
	c.mu.Unlock()

	for _, s := range slides {
		s.Close()
	}
}

// Len returns the number of cached slides.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.slides)
}
