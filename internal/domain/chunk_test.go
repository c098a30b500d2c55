package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewChunkIDDeterministic(t *testing.T) {
	assert.Equal(t, NewChunkID("/a/b.pdf", 0), NewChunkID("/a/b.pdf", 0))
	assert.NotEqual(t, NewChunkID("/a/b.pdf", 0), NewChunkID("/a/b.pdf", 1))
}

func TestConceptDensityFor(t *testing.T) {
	assert.Equal(t, 0.0, ConceptDensityFor([]uint32{1, 2}, 0))
	assert.InDelta(t, 0.02, ConceptDensityFor([]uint32{1, 2}, 100), 1e-9)
}

func TestChunkValidateRejectsUnsortedCategoryIDs(t *testing.T) {
	c := &Chunk{CategoryIDs: []uint32{2, 1}}
	assert.Error(t, c.Validate(VectorDimensions))
}
