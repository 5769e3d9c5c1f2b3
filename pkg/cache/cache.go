// Package cache stores rendered images and finished aggregate grids so
// repeated render requests skip the aggregation pass.
//
// Backends:
//   - file: directory-backed cache for CLI usage
//   - redis: shared cache for multi-instance render servers
//   - null: disabled caching for tests and one-shot renders
//
// Keys are content hashes of everything that determines the output
// (source, canvas, reduction, shade options), so a changed parameter is
// a cache miss, never a stale image.
package cache

import (
	"context"
	"time"
)

// TTLs per artifact type. Grids are bigger than images and cheaper to
// recompute from a cached source, so they expire sooner.
const (
	TTLGrid  = 6 * time.Hour
	TTLImage = 24 * time.Hour
)

// Cache is the interface all cache backends implement.
type Cache interface {
	// Get retrieves a value. The second return is false on a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with an optional TTL. ttl <= 0 means no
	// expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Keyer derives cache keys for the render pipeline's artifacts.
type Keyer interface {
	// ImageKey keys a rendered PNG by source name and the full render
	// parameter set.
	ImageKey(source string, params any) string

	// GridKey keys a finished aggregate grid by source name and the
	// aggregation parameter set, shared by renders that differ only in
	// shading.
	GridKey(source string, params any) string
}

// DefaultKeyer hashes parameters into stable keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// ImageKey generates a key for rendered image caching.
func (k *DefaultKeyer) ImageKey(source string, params any) string {
	return hashKey("img", source, params)
}

// GridKey generates a key for aggregate grid caching.
func (k *DefaultKeyer) GridKey(source string, params any) string {
	return hashKey("grid", source, params)
}

// ScopedKeyer wraps a Keyer with a prefix so independent deployments
// sharing one Redis instance get separate namespaces.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix. The prefix is prepended
// to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// ImageKey generates a prefixed image key.
func (k *ScopedKeyer) ImageKey(source string, params any) string {
	return k.prefix + k.inner.ImageKey(source, params)
}

// GridKey generates a prefixed grid key.
func (k *ScopedKeyer) GridKey(source string, params any) string {
	return k.prefix + k.inner.GridKey(source, params)
}
