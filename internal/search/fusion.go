package search

import (
	"sort"

	"github.com/concept-rag/conceptrag/internal/store"
)

// DefaultRRFConstant is the standard RRF smoothing parameter (k=60),
// copied from the teacher's internal/search/fusion.go.
const DefaultRRFConstant = 60

// fusedCandidate tracks one id's position across the vector and BM25
// candidate lists so it can be rescored by the composite formula
// afterwards, per SPEC_FULL.md section 4.1's RRF-as-secondary-fusion
// supplement: "each query's candidate list is also deduplicated/merged via
// Reciprocal Rank Fusion ... BEFORE the composite-score reweighting is
// applied on the merged candidate set."
type fusedCandidate struct {
	ID           uint32
	RRFScore     float64
	BM25Score    float64
	BM25Rank     int
	VectorScore  float64
	VectorRank   int
	MatchedTerms []string
	InBothLists  bool
}

// RRFFusion merges a vector-search result list and a BM25 result list into
// one ranked, deduplicated candidate pool, directly adapted from the
// teacher's internal/search/fusion.go RRFFusion (k=60 default, same
// missing-rank and tie-break conventions), generalized from string chunk
// ids to this module's uint32 domain ids.
type RRFFusion struct {
	K int
}

// NewRRFFusion creates an RRF fusion stage with the given smoothing
// constant; k<=0 falls back to DefaultRRFConstant.
func NewRRFFusion(k int) *RRFFusion {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &RRFFusion{K: k}
}

// Fuse combines bm25 and vector result lists into one pool ordered by
// RRFScore. Callers rescore the returned candidates with the composite
// formula (spec.md section 4.1) and re-sort by that score; engine.go skips a
// candidate whose row lookup fails and never ranks by RRFScore itself.
func (f *RRFFusion) Fuse(bm25 []*store.BM25Result, vec []*store.VectorResult) []*fusedCandidate {
	if len(bm25) == 0 && len(vec) == 0 {
		return nil
	}

	byID := make(map[uint32]*fusedCandidate, len(bm25)+len(vec))
	get := func(id uint32) *fusedCandidate {
		if c, ok := byID[id]; ok {
			return c
		}
		c := &fusedCandidate{ID: id}
		byID[id] = c
		return c
	}

	for rank, r := range bm25 {
		c := get(r.DocID)
		c.BM25Score = r.Score
		c.BM25Rank = rank + 1
		c.MatchedTerms = r.MatchedTerms
		c.RRFScore += 1.0 / float64(f.K+rank+1)
	}

	for rank, r := range vec {
		c := get(r.ID)
		c.VectorScore = float64(r.Score)
		c.VectorRank = rank + 1
		c.RRFScore += 1.0 / float64(f.K+rank+1)
		if c.BM25Rank > 0 {
			c.InBothLists = true
		}
	}

	missingRank := len(bm25)
	if len(vec) > missingRank {
		missingRank = len(vec)
	}
	missingRank++
	for _, c := range byID {
		if c.BM25Rank == 0 && c.VectorRank > 0 {
			c.RRFScore += 1.0 / float64(f.K+missingRank)
		}
		if c.VectorRank == 0 && c.BM25Rank > 0 {
			c.RRFScore += 1.0 / float64(f.K+missingRank)
		}
	}

	out := make([]*fusedCandidate, 0, len(byID))
	for _, c := range byID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RRFScore != out[j].RRFScore {
			return out[i].RRFScore > out[j].RRFScore
		}
		if out[i].InBothLists != out[j].InBothLists {
			return out[i].InBothLists
		}
		return out[i].ID < out[j].ID
	})
	return out
}
