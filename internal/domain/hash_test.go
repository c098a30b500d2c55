package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStableHashDeterministic(t *testing.T) {
	a := StableHash("machine learning")
	b := StableHash("machine learning")
	assert.Equal(t, a, b)
}

func TestStableHashCaseSensitiveWithoutNormalize(t *testing.T) {
	assert.NotEqual(t, StableHash("Machine Learning"), StableHash("machine learning"))
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "machine learning", NormalizeName("  Machine Learning  "))
}

func TestResolveCollisionNoCollision(t *testing.T) {
	taken := func(id uint32) (string, bool) { return "", false }
	id := ResolveCollision("graph theory", taken)
	assert.Equal(t, StableHash(NormalizeName("graph theory")), id)
}

func TestResolveCollisionSuffixesOnConflict(t *testing.T) {
	first := StableHash(NormalizeName("alpha"))
	seen := map[uint32]string{first: "beta"} // distinct name occupies the same hash slot
	taken := func(id uint32) (string, bool) {
		name, ok := seen[id]
		return name, ok
	}
	id := ResolveCollision("alpha", taken)
	assert.NotEqual(t, first, id, "collision must resolve to a different id")
}

func TestResolveCollisionIdempotentForSameName(t *testing.T) {
	id := StableHash(NormalizeName("alpha"))
	seen := map[uint32]string{id: "alpha"}
	taken := func(qid uint32) (string, bool) {
		name, ok := seen[qid]
		return name, ok
	}
	got := ResolveCollision("alpha", taken)
	assert.Equal(t, id, got, "re-resolving the same name must return the same id")
}
