// Package classify implements the heuristic, single-chunk meta-content
// classifier: ToC/front-matter/back-matter/reference detection plus a
// debugging confidence score. No ML, no LLM call -- pure regex and
// position heuristics, structurally modeled on the teacher's
// PatternClassifier (internal/search/patterns.go: compiled package-level
// regexes, a stateless struct, one Classify entry point).
package classify

import (
	"regexp"
	"strings"
)

// Compiled once at package init, mirroring the teacher's patterns.go
// convention.
var (
	// tocLinePattern matches a dot-leader ToC line: "Chapter One .... 12".
	tocLinePattern = regexp.MustCompile(`(?m)^.{1,80}?[.\x{2026}]{3,}\s*\d{1,4}\s*$`)

	tocHeaderPattern = regexp.MustCompile(`(?i)^\s*(table of contents|contents)\s*$`)

	frontMatterHeaderPattern = regexp.MustCompile(`(?i)^\s*(preface|foreword|acknowledgp?ments|dedication|about this book|copyright)\b`)

	backMatterHeaderPattern = regexp.MustCompile(`(?i)^\s*(index|bibliography|appendix\b|glossary|about the author|endnotes|colophon)\b`)

	referenceHeaderPattern = regexp.MustCompile(`(?i)^\s*(references|works cited|bibliography|notes)\s*$`)
	citationMarkerPattern  = regexp.MustCompile(`\[\d{1,3}\]|\(\d{4}\)|\bet al\.`)
	doiPattern             = regexp.MustCompile(`(?i)\bdoi:\s*10\.\d{4,9}/\S+`)

	// replacementCharPattern and looseMathPattern are coarse OCR/math
	// corruption signals for has_math_issues.
	replacementCharPattern = regexp.MustCompile(`\x{FFFD}`)
	looseMathPattern       = regexp.MustCompile(`[=+\-*/^]{2,}|\\[a-zA-Z]+\{`)
)

// frontMatterPositionCutoff and backMatterPositionCutoff bound where
// front/back matter keyword hits count, per spec.md section 4.6's "position
// heuristics use page_number / total_pages".
const (
	frontMatterPositionCutoff = 0.10
	backMatterPositionCutoff  = 0.85
	tocPositionCutoff         = 0.15
)

// Classification is the per-chunk outcome of one classify call, mirroring
// spec.md section 3's Chunk boolean flags plus a debugging confidence.
type Classification struct {
	IsToC         bool
	IsFrontMatter bool
	IsBackMatter  bool
	IsReference   bool
	IsMetaContent bool
	HasMathIssues bool

	// Confidence is a 0-1 debugging signal, not persisted on Chunk --
	// spec.md section 4.6: "Confidence score emitted for debugging."
	Confidence float64
}

// Classifier runs the meta-content heuristics. Stateless: every call is
// scoped to exactly one chunk's text and position, per spec.md section 9's
// "classifier operates at single-chunk scope, no cross-chunk state."
type Classifier struct{}

// NewClassifier returns a ready-to-use Classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify evaluates one chunk. pageNumber/totalPages give the position
// heuristic (pageNumber/totalPages in [0,1]); totalPages <= 0 treats the
// chunk as position 0 ("early"): the ToC and front-matter gates pass and
// the back-matter gate never does.
func (c *Classifier) Classify(text string, pageNumber, totalPages int) Classification {
	position := 0.0
	if totalPages > 0 {
		position = float64(pageNumber) / float64(totalPages)
	}

	signals := 0
	matched := 0

	isToC := c.detectToC(text, position)
	signals++
	if isToC {
		matched++
	}

	isFront := position <= frontMatterPositionCutoff && frontMatterHeaderPattern.MatchString(text)
	signals++
	if isFront {
		matched++
	}

	isBack := position >= backMatterPositionCutoff && backMatterHeaderPattern.MatchString(text)
	signals++
	if isBack {
		matched++
	}

	isRef := c.detectReference(text)
	signals++
	if isRef {
		matched++
	}

	hasMath := c.detectMathIssues(text)

	confidence := 0.0
	if signals > 0 {
		confidence = float64(matched) / float64(signals)
	}
	if isToC && tocHeaderPattern.MatchString(strings.TrimSpace(firstLine(text))) {
		confidence = 1.0
	}

	return Classification{
		IsToC:         isToC,
		IsFrontMatter: isFront,
		IsBackMatter:  isBack,
		IsReference:   isRef,
		IsMetaContent: isToC || isFront || isBack || isRef,
		HasMathIssues: hasMath,
		Confidence:    confidence,
	}
}

// detectToC implements spec.md section 4.6's two ToC signals: dot-leader
// lines matching "Title .... 12", and a "Contents"/"Table of Contents"
// header, both gated to the document's first 15% by position.
func (c *Classifier) detectToC(text string, position float64) bool {
	if position > tocPositionCutoff {
		return false
	}
	if tocLinePattern.MatchString(text) {
		return true
	}
	for _, line := range strings.Split(text, "\n") {
		if tocHeaderPattern.MatchString(strings.TrimSpace(line)) {
			return true
		}
	}
	return false
}

// detectReference implements spec.md section 4.6's "references: existing
// detector" -- a references/bibliography header, or a high density of
// citation markers ([12], (2004), "et al.") or a DOI.
func (c *Classifier) detectReference(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if referenceHeaderPattern.MatchString(strings.TrimSpace(line)) {
			return true
		}
	}
	if doiPattern.MatchString(text) {
		return true
	}
	hits := len(citationMarkerPattern.FindAllString(text, -1))
	words := len(strings.Fields(text))
	if words == 0 {
		return false
	}
	return float64(hits)/float64(words) > 0.02 && hits >= 3
}

// detectMathIssues flags OCR/extraction corruption around mathematical
// notation: literal Unicode replacement characters, or a dense run of bare
// operator/LaTeX-escape noise unlikely to be prose.
func (c *Classifier) detectMathIssues(text string) bool {
	if replacementCharPattern.MatchString(text) {
		return true
	}
	hits := len(looseMathPattern.FindAllString(text, -1))
	words := len(strings.Fields(text))
	return words > 0 && float64(hits)/float64(words) > 0.15
}

func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}
	return text
}
