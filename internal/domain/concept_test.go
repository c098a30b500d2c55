package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeWeightMatchesFormula(t *testing.T) {
	got := ComputeWeight(10, 3)
	want := math.Log(1+10) * (1 + 0.5*math.Log(1+3))
	assert.InDelta(t, want, got, 1e-9)
}

func TestComputeWeightZeroChunksIsZero(t *testing.T) {
	assert.Equal(t, 0.0, ComputeWeight(0, 0))
}

func TestConceptValidateRejectsTooManyRelated(t *testing.T) {
	related := make([]string, 33)
	c := &Concept{RelatedConcepts: related}
	assert.Error(t, c.Validate(VectorDimensions))
}

func TestConceptValidateAcceptsExactly32Related(t *testing.T) {
	related := make([]string, 32)
	c := &Concept{RelatedConcepts: related, CatalogIDs: []uint32{1, 2}}
	assert.NoError(t, c.Validate(VectorDimensions))
}
