// Package cache provides byte caches for downloaded source archives.
//
// Release archives for a pinned (repository, tag) pair never change, so once
// downloaded they can be served from a cache forever. The [Cache] interface
// has three implementations:
//
//   - [FileCache]: entries stored as files under a directory (CLI default)
//   - [RedisCache]: entries stored in Redis, shared by several machines
//   - [NullCache]: caches nothing (--no-cache)
//
// Keys come from a [Keyer], so every backend uses the same key scheme.
// [Observed] wraps any cache and reports hits and misses to the
// observability hooks.
package cache

import (
	"context"
	"time"

	"github.com/matzehuels/noirforge/pkg/observability"
)

// Cache stores opaque byte values by key.
type Cache interface {
	// Get returns the value stored under key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of 0 means the entry never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the cache.
	Close() error
}

// Keyer derives cache keys.
type Keyer interface {
	// ArchiveKey returns the key for the archive downloaded from url.
	ArchiveKey(url string) string
}

// DefaultKeyer hashes key components with SHA-256.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// ArchiveKey returns "archive:<sha256(url)>".
func (DefaultKeyer) ArchiveKey(url string) string {
	return hashKey("archive", url)
}

// Observed wraps c so that lookups and writes are reported to
// observability.Cache() under keyType.
func Observed(c Cache, keyType string) Cache {
	return &observed{Cache: c, keyType: keyType}
}

type observed struct {
	Cache
	keyType string
}

func (o *observed) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, hit, err := o.Cache.Get(ctx, key)
	if err == nil {
		if hit {
			observability.Cache().OnCacheHit(ctx, o.keyType)
		} else {
			observability.Cache().OnCacheMiss(ctx, o.keyType)
		}
	}
	return data, hit, err
}

func (o *observed) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := o.Cache.Set(ctx, key, data, ttl); err != nil {
		return err
	}
	observability.Cache().OnCacheSet(ctx, o.keyType, len(data))
	return nil
}
