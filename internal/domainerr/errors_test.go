package domainerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSetsRetryableFromCode(t *testing.T) {
	assert.True(t, New(CodeTimeout, "timed out", nil).Retryable)
	assert.True(t, New(CodeRateLimit, "rate limited", nil).Retryable)
	assert.True(t, New(CodeCircuitOpen, "open", nil).Retryable)
	assert.False(t, New(CodeInvalidQuery, "bad query", nil).Retryable)
}

func TestErrorIsMatchesByCode(t *testing.T) {
	a := New(CodeConceptNotFound, "first", nil)
	b := New(CodeConceptNotFound, "second", nil)
	assert.True(t, errors.Is(a, b))

	c := New(CodeSourceNotFound, "other", nil)
	assert.False(t, errors.Is(a, c))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	wrapped := Wrap(CodeDatabaseOperationErr, cause)
	assert.Equal(t, cause, errors.Unwrap(wrapped))
}

func TestWithDetailChains(t *testing.T) {
	err := New(CodeMissingParameter, "missing", nil).WithDetail("field", "query")
	assert.Equal(t, "query", err.Details["field"])
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(CodeTimeout, "x", nil)))
	assert.False(t, IsRetryable(New(CodeInvalidQuery, "x", nil)))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, CodeTimeout, GetCode(New(CodeTimeout, "x", nil)))
	assert.Equal(t, Code(""), GetCode(errors.New("plain")))
}

func TestToJSONShape(t *testing.T) {
	err := ConceptNotFound("42")
	out, marshalErr := ToJSON(err)
	require.NoError(t, marshalErr)
	assert.Contains(t, out, `"code":"CONCEPT_NOT_FOUND"`)
	assert.Contains(t, out, `"concept_id":"42"`)
}

func TestToJSONWrapsPlainErrors(t *testing.T) {
	out, err := ToJSON(errors.New("unexpected"))
	require.NoError(t, err)
	assert.Contains(t, out, `"code":"DATABASE_OPERATION_ERROR"`)
}
