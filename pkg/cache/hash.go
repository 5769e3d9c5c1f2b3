package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// hashKey derives a cache key from a render's full parameter set. The
// parameters are JSON-marshaled and hashed, so any option that changes
// the rendered artifact changes the key. Format: prefix:hex(sha256).
func hashKey(prefix string, parts ...any) string {
	data, _ := json.Marshal(parts)
	sum := sha256.Sum256(data)
	// Full digest; renders for nearby parameter sets must never collide.
	return fmt.Sprintf("%s:%s", prefix, hex.EncodeToString(sum[:]))
}

// hashString hashes an already-built key into a fixed-length hex string
// safe to use as a filename.
func hashString(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
