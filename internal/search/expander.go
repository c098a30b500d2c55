package search

import "strings"

// GeneralSynonyms is a static synonym/hypernym table used for query
// expansion (spec.md section 4.1's wordnet_expand component), adapted in
// shape from the teacher's internal/search/synonyms.go (a
// map[string][]string of natural-language terms to equivalents) but
// repurposed from code vocabulary ("func"/"method"/"fn") to the general
// English vocabulary a document-library query needs, since this module
// indexes prose summaries/chunks rather than source code. A live WordNet
// service is a Non-goal-adjacent external dependency the retrieval pack
// never imports (see DESIGN.md); a curated static table is the grounded,
// idiomatic choice instead.
var GeneralSynonyms = map[string][]string{
	"architecture": {"design", "structure", "blueprint", "framework"},
	"design":       {"architecture", "pattern", "blueprint", "layout"},
	"pattern":      {"design", "template", "structure", "idiom"},
	"system":       {"platform", "framework", "infrastructure"},
	"framework":    {"platform", "system", "toolkit", "library"},

	"algorithm":  {"method", "procedure", "technique", "approach"},
	"method":     {"technique", "approach", "procedure", "algorithm"},
	"technique":  {"method", "approach", "procedure"},
	"approach":   {"method", "technique", "strategy"},
	"strategy":   {"approach", "plan", "tactic"},

	"dependency":  {"requirement", "prerequisite", "reliance"},
	"injection":   {"insertion", "provisioning"},
	"inversion":   {"reversal", "flip"},

	"concurrency":  {"parallelism", "simultaneity"},
	"parallelism":  {"concurrency", "multiprocessing"},
	"thread":       {"process", "worker", "goroutine"},
	"process":      {"thread", "task", "job"},

	"network":    {"networking", "communication", "connectivity"},
	"protocol":   {"standard", "specification", "format"},
	"interface":  {"contract", "api", "boundary"},
	"api":        {"interface", "endpoint", "contract"},

	"database":   {"store", "storage", "repository", "datastore"},
	"store":      {"storage", "database", "repository"},
	"storage":    {"store", "database", "persistence"},
	"repository": {"store", "database", "archive"},

	"cache":       {"buffer", "memoization", "staging"},
	"memory":      {"storage", "cache", "recall"},

	"security":    {"safety", "protection", "defense"},
	"encryption":  {"cryptography", "ciphering"},
	"authentication": {"login", "identity", "verification"},

	"performance": {"efficiency", "speed", "throughput"},
	"efficiency":  {"performance", "optimization"},
	"optimization": {"efficiency", "tuning", "improvement"},

	"error":    {"failure", "fault", "exception", "bug"},
	"failure":  {"error", "fault", "breakdown"},
	"bug":      {"defect", "error", "flaw"},

	"testing":  {"verification", "validation", "qa"},
	"validation": {"verification", "testing", "check"},

	"concept":  {"idea", "notion", "topic"},
	"topic":    {"subject", "theme", "concept"},
	"category": {"classification", "type", "group"},

	"summary":    {"overview", "synopsis", "abstract"},
	"overview":   {"summary", "introduction", "synopsis"},
	"analysis":   {"examination", "evaluation", "study"},

	"model":   {"representation", "abstraction", "blueprint"},
	"module":  {"component", "unit", "package"},
	"component": {"module", "element", "part"},

	"scalability": {"growth", "expansion", "elasticity"},
	"reliability": {"dependability", "robustness", "stability"},
	"resilience":  {"robustness", "fault-tolerance", "durability"},
}

// QueryExpander expands query tokens with synonyms/hypernyms, adapted from
// the teacher's internal/search/expander.go lookup shape, generalized to
// this module's GeneralSynonyms table.
type QueryExpander struct {
	table map[string][]string
}

// NewQueryExpander creates an expander over the default GeneralSynonyms table.
func NewQueryExpander() *QueryExpander {
	return &QueryExpander{table: GeneralSynonyms}
}

// Expand returns the synonym/hypernym set for a single lowercase token, if any.
func (e *QueryExpander) Expand(token string) []string {
	return e.table[strings.ToLower(token)]
}

// ExpandAll returns the union of synonyms for every token in tokens,
// deduplicated and excluding the original tokens themselves.
func (e *QueryExpander) ExpandAll(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		seen[strings.ToLower(t)] = struct{}{}
	}

	var expanded []string
	for _, t := range tokens {
		for _, syn := range e.Expand(t) {
			key := strings.ToLower(syn)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			expanded = append(expanded, key)
		}
	}
	return expanded
}
