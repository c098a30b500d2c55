package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/concept-rag/conceptrag/internal/ingest"
)

// ingestOptions holds CLI flags for ingest.
type ingestOptions struct {
	library   string
	workers   int
	overwrite bool
}

func newIngestCmd() *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Scan the library and ingest new or changed documents",
		Long: `Discovers PDF/EPUB files under --library, loads and chunks each one,
extracts concepts via the configured LLM, embeds text, and commits the
results to the store. Resumable: a second run skips already-processed
documents and retries failed ones once before quarantining them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.library, "library", "", "library directory to scan (default: config paths.library)")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "number of parallel ingestion workers (default: config ingestion.workers)")
	cmd.Flags().BoolVar(&opts.overwrite, "overwrite", false, "re-ingest documents even if already present with the same content hash")

	return cmd
}

func runIngest(ctx context.Context, opts ingestOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	library := opts.library
	if library == "" {
		library = cfg.Paths.Library
	}
	if library == "" {
		return fmt.Errorf("no library directory configured: pass --library or set paths.library")
	}

	workers := opts.workers
	if workers <= 0 {
		workers = cfg.Ingestion.Workers
	}

	a, err := newApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := ingest.Preflight(ctx, cfg.LLM.APIKeyEnv, a.llm); err != nil {
		return err
	}

	stats, err := a.pipeline().Run(ctx, ingest.Options{
		LibraryDir:       library,
		ExcludePatterns:  cfg.Paths.Exclude,
		Workers:          workers,
		ChunkTokens:      cfg.Ingestion.ChunkSize,
		OverlapTokens:    cfg.Ingestion.ChunkOverlap,
		OCRPageThreshold: cfg.Ingestion.OCRPageThreshold,
		Overwrite:        opts.overwrite,
	})
	if err != nil {
		return err
	}

	a.engine.InvalidateResultCache()

	fmt.Printf("discovered %d, processed %d, skipped %d, failed %d, quarantined %d\n",
		stats.Discovered, stats.Processed, stats.Skipped, stats.Failed, stats.Quarantined)
	return nil
}
