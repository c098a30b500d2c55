package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeBM25Monotonic(t *testing.T) {
	low := normalizeBM25(1.0)
	high := normalizeBM25(5.0)
	assert.Less(t, low, high, "adding matching terms must never decrease the normalized BM25 score")
}

func TestNormalizeBM25NonPositiveIsZero(t *testing.T) {
	assert.Equal(t, 0.0, normalizeBM25(0))
	assert.Equal(t, 0.0, normalizeBM25(-3))
}

func TestTitleTokensStripsExtensionAndUnderscores(t *testing.T) {
	tokens := titleTokens("/library/Domain_Driven_Design.pdf")
	assert.Equal(t, []string{"domain", "driven", "design"}, tokens)
}

func TestTitleMatchBonusWhenAllQueryTokensPresent(t *testing.T) {
	full := titleMatch([]string{"domain", "driven"}, "/lib/domain_driven_design.pdf")
	partial := titleMatch([]string{"domain", "banana"}, "/lib/domain_driven_design.pdf")
	assert.Greater(t, full, partial)
}

func TestTitleMatchEmptyInputsScoreZero(t *testing.T) {
	assert.Equal(t, 0.0, titleMatch(nil, "/lib/design.pdf"))
	assert.Equal(t, 0.0, titleMatch([]string{"design"}, ""))
}

func TestConceptAlignmentMatchesWholeWordsOnly(t *testing.T) {
	names := map[uint32]string{1: "dependency injection", 2: "graph theory"}
	nameOf := func(id uint32) (string, bool) { n, ok := names[id]; return n, ok }

	score, matched := conceptAlignment([]string{"dependency", "unrelated"}, []uint32{1, 2}, nameOf)
	assert.Equal(t, 0.5, score)
	assert.Equal(t, []uint32{1}, matched)
}

func TestConceptAlignmentNoQueryTokensScoresZero(t *testing.T) {
	score, matched := conceptAlignment(nil, []uint32{1}, func(uint32) (string, bool) { return "", false })
	assert.Equal(t, 0.0, score)
	assert.Nil(t, matched)
}

func TestThesaurusExpansionCapsAtHalfWeight(t *testing.T) {
	expander := NewQueryExpander()
	score := thesaurusExpansion(expander, []string{"database"}, "a document describing a storage engine")
	assert.LessOrEqual(t, score, 0.5)
	assert.Greater(t, score, 0.0)
}

func TestThesaurusExpansionNoMatchesScoresZero(t *testing.T) {
	expander := NewQueryExpander()
	score := thesaurusExpansion(expander, []string{"zzzznotaword"}, "irrelevant text")
	assert.Equal(t, 0.0, score)
}

func TestClampScoreBounds(t *testing.T) {
	assert.Equal(t, 0.0, clampScore(-1))
	assert.Equal(t, 1.05, clampScore(2))
	assert.Equal(t, 0.7, clampScore(0.7))
}
