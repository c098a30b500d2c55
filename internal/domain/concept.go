package domain

import (
	"math"
	"time"
)

// Concept is one row per canonical concept name (spec.md section 3).
// The Concepts table is a derived projection: it is truncated and rebuilt
// from Catalog+Chunks after each ingestion batch, never mutated
// incrementally (spec.md section 9).
type Concept struct {
	ID      uint32
	Concept string // canonical display name

	Vector []float32
	Weight float64

	// ChunkCount is always an exact recount over the chunk table at
	// rebuild time (I3) -- never trusted incrementally.
	ChunkCount int

	CatalogIDs []uint32 // sorted, deduplicated

	// RelatedConcepts is the union of co-occurring concept names across
	// documents, bounded to the top 32 by co-occurrence frequency
	// (spec.md section 4.2 step 6), stored as names per spec.md section 9's
	// design note (not ids -- see DESIGN.md).
	RelatedConcepts []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewConceptID derives the stable concept id from its display name,
// resolving collisions via the `::n` suffix scheme (spec.md section 3).
func NewConceptID(name string, taken func(id uint32) (existingName string, ok bool)) uint32 {
	return ResolveCollision(name, taken)
}

// ComputeWeight implements spec.md section 4.2 step 5:
//
//	weight = log(1 + chunk_count) * (1 + 0.5*log(1 + |catalog_ids|))
func ComputeWeight(chunkCount, catalogIDCount int) float64 {
	return math.Log(1+float64(chunkCount)) * (1 + 0.5*math.Log(1+float64(catalogIDCount)))
}

// Validate checks Concept-level invariants verifiable without a store
// round-trip.
func (c *Concept) Validate(dimensions int) error {
	if len(c.Vector) > 0 {
		if err := ValidateVector(c.Vector, dimensions); err != nil {
			return err
		}
	}
	if !isSortedUnique(c.CatalogIDs) {
		return errNotSortedUnique("concept.catalog_ids")
	}
	if len(c.RelatedConcepts) > 32 {
		return errTooManyRelated
	}
	return nil
}

var errTooManyRelated = &sortUniqueError{field: "concept.related_concepts exceeds 32 entries"}
