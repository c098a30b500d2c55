// Package domain defines the Catalog/Chunk/Concept/Category schema and the
// primitives (stable hashing, vector validation) shared across the store,
// search, concept-index, and ingestion packages.
package domain

import (
	"hash/fnv"
	"strconv"
	"strings"
)

// StableHash computes a deterministic 32-bit FNV-1a hash over a normalized
// string. Callers lowercase/trim before hashing where the spec calls for
// name-based identity (concept names); path-based IDs hash the raw
// absolute path.
func StableHash(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

// NormalizeName lowercases and trims a display name for stable hashing and
// deduplication (concept and category names).
func NormalizeName(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

// ResolveCollision returns a stable hash for name that does not collide
// with any id already present in taken. On a collision it retries with
// `name::2`, `name::3`, ... suffixes, as spec.md section 3/section 4.2
// require for Concept ids.
func ResolveCollision(name string, taken func(id uint32) (existingName string, ok bool)) uint32 {
	normalized := NormalizeName(name)
	id := StableHash(normalized)
	for n := 2; ; n++ {
		existing, ok := taken(id)
		if !ok || existing == normalized {
			return id
		}
		id = StableHash(normalized + "::" + strconv.Itoa(n))
	}
}
