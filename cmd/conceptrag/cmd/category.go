package cmd

import (
	"github.com/spf13/cobra"
)

func newCategoryCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "category",
		Short: "Query categories: search documents, list categories and their concepts",
	}

	var searchLimit int
	search := &cobra.Command{
		Use:   "search <category>",
		Short: "List documents belonging to a category",
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

			hits, err := a.surface.CategorySearch(cmd.Context(), args[0], searchLimit)
			if err != nil {
				return err
			}
			return printJSON(hits)
		},
	}
	search.Flags().IntVarP(&searchLimit, "limit", "n", 20, "maximum number of results")

	list := &cobra.Command{
		Use:   "list",
		Short: "List every known category with its document/chunk counts",
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

			categories, err := a.surface.ListCategories(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(categories)
		},
	}

	concepts := &cobra.Command{
		Use:   "concepts <category>",
		Short: "List concepts referenced by chunks in a category",
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

			names, err := a.surface.ListConceptsInCategory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(names)
		},
	}

	root.AddCommand(search, list, concepts)
	return root
}
