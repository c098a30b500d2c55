package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newConceptCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "concept",
		Short: "Query concepts: search by concept, list a document's concepts, find sources",
	}

	root.AddCommand(newConceptSearchCmd())
	root.AddCommand(newConceptSourcesCmd())
	root.AddCommand(newConceptExtractCmd())

	return root
}

func newConceptSearchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <concept>",
		Short: "Find chunks ranked by alignment with a concept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConceptSearch(cmd.Context(), args[0], limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of results")
	return cmd
}

func runConceptSearch(ctx context.Context, concept string, limit int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	hits, err := a.surface.ConceptSearch(ctx, concept, limit)
	if err != nil {
		return err
	}
	return printJSON(hits)
}

func newConceptSourcesCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "sources <concept>",
		Short: "List source documents that feature a concept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			sources, err := a.surface.SourceConcepts(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			return printJSON(sources)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of sources (0 = unlimited)")
	return cmd
}

func newConceptExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <source>",
		Short: "Show the concept/category bundle recorded for a source document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			bundle, err := a.surface.ExtractConcepts(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(bundle)
		},
	}
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
