package store

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
)

// MemoryBM25Index is a hand-rolled inverted-index BM25 scorer, grounded on
// the structural shape of the teacher's sqlite_bm25.go (mutex-guarded index,
// Index/Search/Delete/Save/Load/Close lifecycle) but computing BM25 with
// spec.md section 4.1's configurable k1/b directly, since neither
// SQLite FTS5's bm25() (fixed k1=1.2/b=0.75) nor a bleve analyzer exposes
// per-table k1=1.5 tuning (see DESIGN.md).
type MemoryBM25Index struct {
	mu     sync.RWMutex
	config BM25Config
	closed bool

	// postings maps a term to the set of doc ids containing it and their
	// term frequency within that doc.
	postings map[string]map[uint32]int

	docLength map[uint32]int
	docTerms  map[uint32][]string // for Delete bookkeeping
	totalLen  int
}

// NewMemoryBM25Index creates an empty BM25 index, scoped to one table
// (catalog text or chunk text) with its own corpus statistics.
func NewMemoryBM25Index(config BM25Config) *MemoryBM25Index {
	return &MemoryBM25Index{
		config:    config,
		postings:  make(map[string]map[uint32]int),
		docLength: make(map[uint32]int),
		docTerms:  make(map[uint32][]string),
	}
}

// Index adds or replaces documents.
func (idx *MemoryBM25Index) Index(ctx context.Context, docs []*BM25Document) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return errIndexClosed
	}

	for _, doc := range docs {
		idx.removeLocked(doc.ID)

		tokens := Tokenize(doc.Content, idx.config.MinTokenLength)
		if len(tokens) == 0 {
			continue
		}

		freq := make(map[string]int, len(tokens))
		for _, t := range tokens {
			freq[t]++
		}

		for term, count := range freq {
			bucket, ok := idx.postings[term]
			if !ok {
				bucket = make(map[uint32]int)
				idx.postings[term] = bucket
			}
			bucket[doc.ID] = count
		}

		idx.docLength[doc.ID] = len(tokens)
		idx.docTerms[doc.ID] = uniqueTerms(freq)
		idx.totalLen += len(tokens)
	}

	return nil
}

func uniqueTerms(freq map[string]int) []string {
	terms := make([]string, 0, len(freq))
	for t := range freq {
		terms = append(terms, t)
	}
	return terms
}

// removeLocked removes doc's postings, if present. Caller holds idx.mu.
func (idx *MemoryBM25Index) removeLocked(id uint32) {
	terms, ok := idx.docTerms[id]
	if !ok {
		return
	}
	for _, term := range terms {
		bucket := idx.postings[term]
		delete(bucket, id)
		if len(bucket) == 0 {
			delete(idx.postings, term)
		}
	}
	idx.totalLen -= idx.docLength[id]
	delete(idx.docLength, id)
	delete(idx.docTerms, id)
}

// Search scores every candidate document containing at least one query term
// with Okapi BM25 (k1, b from config), per spec.md section 4.1.
func (idx *MemoryBM25Index) Search(ctx context.Context, query string, limit int) ([]*BM25Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return nil, errIndexClosed
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return []*BM25Result{}, nil
	}

	terms := Tokenize(query, idx.config.MinTokenLength)
	if len(terms) == 0 {
		return []*BM25Result{}, nil
	}

	docCount := len(idx.docLength)
	if docCount == 0 {
		return []*BM25Result{}, nil
	}
	avgDocLen := float64(idx.totalLen) / float64(docCount)

	scores := make(map[uint32]float64)
	matched := make(map[uint32]map[string]struct{})

	for _, term := range dedupe(terms) {
		bucket, ok := idx.postings[term]
		if !ok {
			continue
		}
		idf := idfFor(docCount, len(bucket))

		for docID, tf := range bucket {
			dl := float64(idx.docLength[docID])
			denom := float64(tf) + idx.config.K1*(1-idx.config.B+idx.config.B*dl/avgDocLen)
			scores[docID] += idf * (float64(tf) * (idx.config.K1 + 1)) / denom

			if matched[docID] == nil {
				matched[docID] = make(map[string]struct{})
			}
			matched[docID][term] = struct{}{}
		}
	}

	results := make([]*BM25Result, 0, len(scores))
	for docID, score := range scores {
		terms := make([]string, 0, len(matched[docID]))
		for t := range matched[docID] {
			terms = append(terms, t)
		}
		sort.Strings(terms)
		results = append(results, &BM25Result{DocID: docID, Score: score, MatchedTerms: terms})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].DocID < results[j].DocID
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// idfFor computes the standard BM25 IDF, floored at a small positive value
// so a term appearing in every document never produces a negative weight.
func idfFor(docCount, docFreq int) float64 {
	idf := math.Log((float64(docCount) - float64(docFreq) + 0.5) / (float64(docFreq) + 0.5))
	if idf < 0 {
		return 0.01
	}
	return idf
}

func dedupe(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// Delete removes documents from the index.
func (idx *MemoryBM25Index) Delete(ctx context.Context, ids []uint32) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return errIndexClosed
	}
	for _, id := range ids {
		idx.removeLocked(id)
	}
	return nil
}

// AllIDs returns every document id currently indexed.
func (idx *MemoryBM25Index) AllIDs() []uint32 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	ids := make([]uint32, 0, len(idx.docLength))
	for id := range idx.docLength {
		ids = append(ids, id)
	}
	return ids
}

// Stats returns corpus statistics used by IDF computation.
func (idx *MemoryBM25Index) Stats() *BM25Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	docCount := len(idx.docLength)
	avg := 0.0
	if docCount > 0 {
		avg = float64(idx.totalLen) / float64(docCount)
	}
	return &BM25Stats{DocumentCount: docCount, TermCount: len(idx.postings), AvgDocLength: avg}
}

// Save/Load persist the index via gob, mirroring the HNSW store's
// temp-file-then-rename pattern (see hnsw.go).
func (idx *MemoryBM25Index) Save(path string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return errIndexClosed
	}
	return saveBM25Snapshot(path, bm25Snapshot{
		Postings:  idx.postings,
		DocLength: idx.docLength,
		DocTerms:  idx.docTerms,
		TotalLen:  idx.totalLen,
		Config:    idx.config,
	})
}

func (idx *MemoryBM25Index) Load(path string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	snap, err := loadBM25Snapshot(path)
	if err != nil {
		return err
	}
	idx.postings = snap.Postings
	idx.docLength = snap.DocLength
	idx.docTerms = snap.DocTerms
	idx.totalLen = snap.TotalLen
	idx.config = snap.Config
	idx.closed = false
	return nil
}

// Close marks the index unusable; there is no background resource to
// release since the index lives entirely in memory.
func (idx *MemoryBM25Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.closed = true
	return nil
}

var _ BM25Index = (*MemoryBM25Index)(nil)

var errIndexClosed = &indexClosedError{}

type indexClosedError struct{}

func (*indexClosedError) Error() string { return "bm25 index is closed" }
