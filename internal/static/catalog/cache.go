package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/bluele/gcache"
)

// Loader produces route categories
type Loader interface {
	Load(ctx context.Context) ([]RouteCategory, error)
}

const cacheKey = "categories"

// Cached serves categories from memory for ttl before reloading.
// Concurrent misses share a single upstream load. Failed loads are not cached.
type Cached struct {
	src   Loader
	cache gcache.Cache
}

// NewCached wraps src with an expiring cache
func NewCached(src Loader, ttl time.Duration) *Cached {
	c := &Cached{src: src}
	c.cache = gcache.New(1).LRU().Expiration(ttl).LoaderFunc(c.load).Build()
	return c
}

// load runs once per miss on behalf of every waiting caller, so it is not
// bound to any one request's context
func (c *Cached) load(interface{}) (interface{}, error) {
	return c.src.Load(context.Background())
}

// Load implements Loader. A caller whose ctx ends stops waiting; the shared
// load still completes and fills the cache.
func (c *Cached) Load(ctx context.Context) ([]RouteCategory, error) {
	type result struct {
		value interface{}
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := c.cache.Get(cacheKey)
		done <- result{v, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		categories, ok := r.value.([]RouteCategory)
		if !ok {
			return nil, fmt.Errorf("unexpected cached value %T", r.value)
		}
		return categories, nil
	}
}

// Invalidate drops the cached categories
func (c *Cached) Invalidate() {
	c.cache.Remove(cacheKey)
}
