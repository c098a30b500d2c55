// Package gitignore implements gitignore-syntax pattern matching
// (https://git-scm.com/docs/gitignore), used by internal/ingest to apply
// Options.ExcludePatterns when walking a library directory for PDF/EPUB
// files (spec.md section 4.3 step 1). The pattern language is unrelated to
// the document domain, so this package stays a generic path matcher rather
// than one reshaped around Catalog/Chunk terms.
//
// Features:
//   - Basic pattern matching (*.log, temp/)
//   - Wildcard patterns (*, ?, **)
//   - Rooted patterns (/build)
//   - Negation patterns (!important.log)
//   - Directory-only patterns (build/)
//   - Nested gitignore file support
//   - Thread-safe matching
//
// Usage:
//
//	m := gitignore.New()
//	m.AddPattern("*.log")
//	m.AddPattern("!important.log")
//	m.AddPattern("/build/")
//
//	if m.Match("error.log", false) {
//	    // path is excluded
//	}
package gitignore
