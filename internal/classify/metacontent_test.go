package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyDetectsToCByDotLeaders(t *testing.T) {
	text := "Chapter One: Introduction .......... 1\nChapter Two: Background .......... 15\n"
	c := NewClassifier().Classify(text, 1, 100)

	assert.True(t, c.IsToC)
	assert.True(t, c.IsMetaContent)
}

func TestClassifyDetectsToCByHeader(t *testing.T) {
	text := "Table of Contents\n"
	c := NewClassifier().Classify(text, 2, 200)

	assert.True(t, c.IsToC)
	assert.Equal(t, 1.0, c.Confidence)
}

func TestClassifyIgnoresToCSignalsLateInDocument(t *testing.T) {
	text := "Chapter One: Introduction .......... 1\n"
	c := NewClassifier().Classify(text, 150, 200)

	assert.False(t, c.IsToC, "dot-leader pattern late in the document is plain prose punctuation, not a ToC")
}

func TestClassifyDetectsFrontMatterNearStart(t *testing.T) {
	text := "Preface\n\nThis book grew out of a decade of teaching distributed systems."
	c := NewClassifier().Classify(text, 2, 300)

	assert.True(t, c.IsFrontMatter)
	assert.True(t, c.IsMetaContent)
}

func TestClassifyDoesNotFlagFrontMatterKeywordsMidBook(t *testing.T) {
	text := "Preface\n\nIn this chapter we revisit the earlier preface to frame the discussion."
	c := NewClassifier().Classify(text, 150, 300)

	assert.False(t, c.IsFrontMatter, "position gate excludes a keyword hit mid-document")
}

func TestClassifyDetectsBackMatterNearEnd(t *testing.T) {
	text := "Bibliography\n\nSmith, J. (2001). Systems Design."
	c := NewClassifier().Classify(text, 290, 300)

	assert.True(t, c.IsBackMatter)
}

func TestClassifyDetectsReferenceByHeader(t *testing.T) {
	text := "References\n\n[1] Lamport, L. Time, Clocks...\n[2] Fischer, M. Impossibility..."
	c := NewClassifier().Classify(text, 298, 300)

	assert.True(t, c.IsReference)
}

func TestClassifyDetectsReferenceByDOI(t *testing.T) {
	text := "See doi:10.1145/359545.359563 for the original proof."
	c := NewClassifier().Classify(text, 50, 300)

	assert.True(t, c.IsReference)
}

func TestClassifyDetectsReferenceByCitationDensity(t *testing.T) {
	text := "Prior work [1] established the bound, later refined [2] and [3], with [4] and [5] confirming it in practice across six independent studies."
	c := NewClassifier().Classify(text, 50, 300)

	assert.True(t, c.IsReference)
}

func TestClassifyOrdinaryProseIsNotMetaContent(t *testing.T) {
	text := "The scheduler picks the next runnable goroutine from the local run queue before falling back to the global queue."
	c := NewClassifier().Classify(text, 50, 300)

	assert.False(t, c.IsMetaContent)
	assert.Equal(t, 0.0, c.Confidence)
}

func TestClassifyZeroTotalPagesTreatsPositionAsEarly(t *testing.T) {
	text := "Table of Contents\n"
	c := NewClassifier().Classify(text, 0, 0)

	assert.True(t, c.IsToC)
}

func TestClassifyDetectsMathIssuesFromReplacementChar(t *testing.T) {
	text := "The integral evaluates to �� over the interval."
	c := NewClassifier().Classify(text, 10, 300)

	assert.True(t, c.HasMathIssues)
}

func TestClassifyOrdinaryProseHasNoMathIssues(t *testing.T) {
	text := "The scheduler picks the next runnable goroutine from the local run queue."
	c := NewClassifier().Classify(text, 10, 300)

	assert.False(t, c.HasMathIssues)
}
