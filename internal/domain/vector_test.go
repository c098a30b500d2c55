package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateVectorRejectsWrongLength(t *testing.T) {
	err := ValidateVector(make([]float32, 10), VectorDimensions)
	require.Error(t, err)
	var dimErr *ErrDimensionMismatch
	assert.ErrorAs(t, err, &dimErr)
	assert.Equal(t, VectorDimensions, dimErr.Expected)
	assert.Equal(t, 10, dimErr.Got)
}

func TestValidateVectorRejectsNaN(t *testing.T) {
	v := make([]float32, VectorDimensions)
	v[5] = float32(math.NaN())
	assert.Error(t, ValidateVector(v, VectorDimensions))
}

func TestValidateVectorRejectsInf(t *testing.T) {
	v := make([]float32, VectorDimensions)
	v[0] = float32(math.Inf(1))
	assert.Error(t, ValidateVector(v, VectorDimensions))
}

func TestValidateVectorAcceptsValid(t *testing.T) {
	v := make([]float32, VectorDimensions)
	for i := range v {
		v[i] = 0.01
	}
	assert.NoError(t, ValidateVector(v, VectorDimensions))
}

func TestNormalizedCosineRange(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{1, 0, 0}
	assert.InDelta(t, 1.0, NormalizedCosine(a, b), 0.0001)

	c := []float32{-1, 0, 0}
	assert.InDelta(t, 0.0, NormalizedCosine(a, c), 0.0001)

	d := []float32{0, 1, 0}
	assert.InDelta(t, 0.5, NormalizedCosine(a, d), 0.0001)
}

func TestCosineSimilarityMismatchedLengths(t *testing.T) {
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1, 2}, []float32{1}))
}
