package search

import "sort"

// SortDeterministic applies spec.md section 4.1's fixed tie-break order:
// higher concept_density -> lower id -> lexicographic source. This is
// SPEC_FULL.md section 9's resolution of the "tie-break order was not
// explicit in the source" open question, applied after composite scoring
// so equal-score scenarios in tests are reproducible.
func SortDeterministic(results []*Result) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.ConceptDensity != b.ConceptDensity {
			return a.ConceptDensity > b.ConceptDensity
		}
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		return a.Source < b.Source
	})
}
