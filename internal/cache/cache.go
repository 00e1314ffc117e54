package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/factcheck/internal/model"
	"go.uber.org/zap"
)

// Cache stores opaque values by key.
// Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

const keyPrefix = "factcheck:v1:"

// Key builds a namespaced key from its parts, e.g. Key("wiki", "en", "Jakarta")
func Key(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return keyPrefix + hex.EncodeToString(hash[:])
}

// New builds the configured cache stack: memory, then disk, then Redis when a URL is set.
// A disabled cache returns Nop.
func New(cfg model.CacheConfig) (Cache, error) {
	if !cfg.Enabled {
		return Nop{}, nil
	}

	layers := []Cache{NewMemoryCache(cfg.MemoryTTL, 10*time.Minute)}
	if cfg.Dir != "" {
		layers = append(layers, NewDiskCache(cfg.Dir, cfg.DiskTTL))
	}
	if cfg.RedisURL != "" {
		rc, err := NewRedisCache(cfg.RedisURL, cfg.DiskTTL)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		layers = append(layers, rc)
	}

	if len(layers) == 1 {
		return layers[0], nil
	}
	return NewLayeredCache(layers...), nil
}

// GetJSON decodes a cached JSON value into v
func GetJSON(ctx context.Context, c Cache, key string, v any) bool {
	data, ok := c.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		zap.L().Debug("discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
		_ = c.Delete(ctx, key)
		return false
	}
	return true
}

// SetJSON stores v as JSON
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	return c.Set(ctx, key, data, ttl)
}

// Nop is a cache that stores nothing
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool) { return nil, false }
func (Nop) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (Nop) Delete(context.Context, string) error { return nil }
func (Nop) Clear(context.Context) error { return nil }
