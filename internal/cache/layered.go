package cache

import (
	"context"
	"errors"
	"time"
)

// Expirer is implemented by layers that can report an entry's expiry
type Expirer interface {
	Expiry(ctx context.Context, key string) (time.Time, bool)
	DefaultTTL() time.Duration
}

// LayeredCache checks layers in order (fastest first) and promotes hits
// into the layers above the one that answered. A promoted entry never
// outlives the copy it was promoted from.
type LayeredCache struct {
	layers []Cache
}

// NewLayeredCache creates a new layered cache
func NewLayeredCache(layers ...Cache) *LayeredCache {
	return &LayeredCache{layers: layers}
}

// Get retrieves a value from the first layer that has it
func (c *LayeredCache) Get(ctx context.Context, key string) ([]byte, bool) {
	for i, layer := range c.layers {
		val, found := layer.Get(ctx, key)
		if !found {
			continue
		}
		if i == 0 {
			return val, true
		}
		remaining, ok := remainingTTL(ctx, layer, key)
		if !ok {
			return val, true
		}
		for _, upper := range c.layers[:i] {
			ttl := remaining
			if e, isExp := upper.(Expirer); isExp && e.DefaultTTL() > 0 && (ttl == 0 || e.DefaultTTL() < ttl) {
				ttl = e.DefaultTTL()
			}
			_ = upper.Set(ctx, key, val, ttl)
		}
		return val, true
	}
	return nil, false
}

// remainingTTL is how long the entry in layer has left; 0 means no expiry.
// It reports false when the entry is about to expire and should not be promoted.
func remainingTTL(ctx context.Context, layer Cache, key string) (time.Duration, bool) {
	e, ok := layer.(Expirer)
	if !ok {
		return 0, true
	}
	at, found := e.Expiry(ctx, key)
	if !found || at.IsZero() {
		return 0, true
	}
	left := time.Until(at)
	if left <= 0 {
		return 0, false
	}
	return left, true
}

// Set stores a value in every layer
func (c *LayeredCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var errs []error
	for _, layer := range c.layers {
		if err := layer.Set(ctx, key, value, ttl); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Delete removes a value from every layer
func (c *LayeredCache) Delete(ctx context.Context, key string) error {
	var errs []error
	for _, layer := range c.layers {
		if err := layer.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Clear removes all values from every layer
func (c *LayeredCache) Clear(ctx context.Context) error {
	var errs []error
	for _, layer := range c.layers {
		if err := layer.Clear(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
