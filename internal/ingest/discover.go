// Package ingest implements the document-ingestion pipeline (spec.md
// section 4.3): discover library files, deduplicate by content hash, load
// PDF/EPUB text, chunk, classify, embed, extract concepts, and commit each
// document atomically through a single writer.
package ingest

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/concept-rag/conceptrag/internal/gitignore"
)

// supportedExtensions are the document types this module ingests, per
// spec.md section 4.3 step 1 ("walk the source directory; filter by
// extension").
var supportedExtensions = map[string]bool{
	".pdf":  true,
	".epub": true,
}

// DiscoverOptions configures a library scan, grounded on the teacher's
// scanner.ScanOptions but trimmed to what a flat document-library walk
// needs: no submodule handling, no binary/generated-file sniffing (every
// discovered file is a document by construction, not source code).
type DiscoverOptions struct {
	RootDir          string
	ExcludePatterns  []string
	FollowSymlinks   bool
}

// Discover walks RootDir and returns every PDF/EPUB file not matched by an
// exclude pattern, sorted for deterministic processing order.
func Discover(opts DiscoverOptions) ([]string, error) {
	matcher := gitignore.New()
	for _, p := range opts.ExcludePatterns {
		matcher.AddPattern(p)
	}

	var files []string
	err := filepath.WalkDir(opts.RootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, relErr := filepath.Rel(opts.RootDir, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel != "." && matcher.Match(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if !opts.FollowSymlinks && d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		if matcher.Match(rel, false) {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if !supportedExtensions[ext] {
			return nil
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}
