package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// searchOptions holds CLI flags shared by the catalog/chunks/broad/concept
// search subcommands.
type searchOptions struct {
	limit              int
	source             string
	broad              bool
	excludeMetaContent bool
	excludeReferences  bool
	format             string
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the document library",
		Long: `Runs the hybrid ranking engine (vector similarity, BM25, title match,
concept alignment, thesaurus expansion) against the catalog or chunk
tables, depending on the flags given:

  conceptrag search "gradient descent"                 catalog_search
  conceptrag search "gradient descent" --source a.pdf   chunks_search
  conceptrag search "gradient descent" --broad          broad_chunks_search`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 20, "maximum number of results")
	cmd.Flags().StringVar(&opts.source, "source", "", "scope the search to chunks within this source document")
	cmd.Flags().BoolVar(&opts.broad, "broad", false, "search chunks across the whole corpus instead of the catalog")
	cmd.Flags().BoolVar(&opts.excludeMetaContent, "exclude-meta", false, "exclude table-of-contents/front-matter/back-matter chunks")
	cmd.Flags().BoolVar(&opts.excludeReferences, "exclude-references", false, "exclude reference/bibliography chunks")
	cmd.Flags().StringVar(&opts.format, "format", "text", "output format: text or json")

	return cmd
}

func runSearch(ctx context.Context, query string, opts searchOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	switch {
	case opts.source != "":
		hits, degraded, err := a.surface.ChunksSearch(ctx, query, opts.source, opts.limit)
		if err != nil {
			return err
		}
		return printChunkHits(hits, degraded, opts.format)
	case opts.broad:
		hits, degraded, err := a.surface.BroadChunksSearch(ctx, query, opts.limit, opts.excludeMetaContent, opts.excludeReferences)
		if err != nil {
			return err
		}
		return printChunkHits(hits, degraded, opts.format)
	default:
		hits, degraded, err := a.surface.CatalogSearch(ctx, query, opts.limit)
		if err != nil {
			return err
		}
		return printCatalogHits(hits, degraded, opts.format)
	}
}

func printCatalogHits(hits any, degraded bool, format string) error {
	if format == "json" {
		data, err := json.MarshalIndent(map[string]any{"results": hits, "vector_degraded": degraded}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}
	if degraded {
		fmt.Println("(vector search degraded, showing BM25-only results)")
	}
	data, err := json.MarshalIndent(hits, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func printChunkHits(hits any, degraded bool, format string) error {
	return printCatalogHits(hits, degraded, format)
}
