package search

import (
	"path/filepath"
	"strings"
)

// tokenizeQuery lowercases and splits on non-alphanumeric runs, matching
// store.Tokenize's convention but kept local to avoid a search->store
// tokenizer dependency cycle concern (store already depends on nothing in
// search).
func tokenizeQuery(text string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, strings.ToLower(cur.String()))
			cur.Reset()
		}
	}
	for _, r := range text {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

// normalizeBM25 saturates a raw BM25 score into [0,1) via score/(score+1),
// a monotonically increasing transform -- preserving spec.md section 8's
// BM25 monotonicity invariant ("adding a matching term ... never decreases
// its BM25 for a query containing that term") through the normalization.
func normalizeBM25(raw float64) float64 {
	if raw <= 0 {
		return 0
	}
	return raw / (raw + 1)
}

// titleTokens derives the filename-derived token set for title matching,
// per spec.md section 4.1: "tokenize the filename (sans extension),
// lowercase, strip underscores."
func titleTokens(source string) []string {
	base := filepath.Base(source)
	ext := filepath.Ext(base)
	base = strings.TrimSuffix(base, ext)
	base = strings.ReplaceAll(base, "_", " ")
	return tokenizeQuery(base)
}

// titleMatch computes the Jaccard similarity of queryTokens over a
// document's title tokens, with a +0.5 bonus when every query token
// appears in the title, exactly per spec.md section 4.1. Composite scoring
// clamps the overall score to the invariant bound (see clampScore);
// this function intentionally returns the raw, possibly >1.0, signal.
func titleMatch(queryTokens []string, source string) float64 {
	tTokens := titleTokens(source)
	if len(queryTokens) == 0 || len(tTokens) == 0 {
		return 0
	}

	titleSet := make(map[string]struct{}, len(tTokens))
	for _, t := range tTokens {
		titleSet[t] = struct{}{}
	}
	querySet := make(map[string]struct{}, len(queryTokens))
	for _, t := range queryTokens {
		querySet[t] = struct{}{}
	}

	intersection := 0
	allPresent := true
	for t := range querySet {
		if _, ok := titleSet[t]; ok {
			intersection++
		} else {
			allPresent = false
		}
	}

	union := len(titleSet) + len(querySet) - intersection
	if union == 0 {
		return 0
	}
	jaccard := float64(intersection) / float64(union)

	if allPresent {
		jaccard += 0.5
	}
	return jaccard
}

// conceptAlignment resolves conceptIDs to names via nameOf (the concept id
// cache) and computes the fraction of query tokens matched as whole words
// in any concept name, per spec.md section 4.1.
func conceptAlignment(queryTokens []string, conceptIDs []uint32, nameOf func(id uint32) (string, bool)) (float64, []uint32) {
	if len(queryTokens) == 0 || len(conceptIDs) == 0 {
		return 0, nil
	}

	type namedConcept struct {
		id   uint32
		name string
	}
	var named []namedConcept
	for _, id := range conceptIDs {
		if name, ok := nameOf(id); ok {
			named = append(named, namedConcept{id: id, name: strings.ToLower(name)})
		}
	}
	if len(named) == 0 {
		return 0, nil
	}

	matchedCount := 0
	var matchedIDs []uint32
	for _, token := range queryTokens {
		matched := false
		for _, nc := range named {
			if containsWholeWord(nc.name, token) {
				matched = true
				matchedIDs = append(matchedIDs, nc.id)
			}
		}
		if matched {
			matchedCount++
		}
	}

	return float64(matchedCount) / float64(len(queryTokens)), dedupeIDs(matchedIDs)
}

func containsWholeWord(haystack, word string) bool {
	for _, part := range tokenizeQuery(haystack) {
		if part == word {
			return true
		}
	}
	return false
}

func dedupeIDs(ids []uint32) []uint32 {
	seen := make(map[uint32]struct{}, len(ids))
	out := make([]uint32, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// thesaurusExpansion expands queryTokens with GeneralSynonyms and counts
// expanded-term matches against text at half weight, per spec.md section
// 4.1: "expand query with synonyms/hypernyms; matches are counted at half
// weight." The denominator is the original (unexpanded) query token count
// so the component stays bounded in [0, 0.5] for a fully-matched expansion.
func thesaurusExpansion(expander *QueryExpander, queryTokens []string, text string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	expanded := expander.ExpandAll(queryTokens)
	if len(expanded) == 0 {
		return 0
	}

	textTokens := make(map[string]struct{})
	for _, t := range tokenizeQuery(text) {
		textTokens[t] = struct{}{}
	}

	matches := 0
	for _, t := range expanded {
		if _, ok := textTokens[t]; ok {
			matches++
		}
	}
	if matches == 0 {
		return 0
	}

	ratio := float64(matches) / float64(len(queryTokens))
	if ratio > 1 {
		ratio = 1
	}
	return 0.5 * ratio
}

// clampScore enforces spec.md section 8's bounded-score invariant:
// 0 <= score <= 1.05 (the "tiny bonus allowance for title exact-match").
func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1.05 {
		return 1.05
	}
	return score
}
