// Package cache stores model responses so re-running a stage over unchanged
// input does not repeat paid requests.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key derives a cache key of the form "<namespace>/<sha256 hex>" from the
// request parts that determine the response. Parts are length-prefixed so
// ("ab","c") and ("a","bc") never collide.
func Key(namespace string, parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		var n [8]byte
		for i, l := 0, uint64(len(p)); i < 8; i++ {
			n[i] = byte(l >> (8 * i))
		}
		h.Write(n[:])
		h.Write([]byte(p))
	}
	return namespace + "/" + hex.EncodeToString(h.Sum(nil))
}

// splitKey returns the namespace and digest of key. Keys not built by Key
// land in the "misc" namespace.
func splitKey(key string) (namespace, digest string) {
	namespace, digest, ok := strings.Cut(key, "/")
	if !ok {
		return "misc", safeName(key)
	}
	return safeName(namespace), safeName(digest)
}

// safeName hashes names that cannot be used as a single path element
func safeName(s string) string {
	if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\:*?"<>|`) {
		sum := sha256.Sum256([]byte(s))
		return hex.EncodeToString(sum[:])
	}
	return s
}
