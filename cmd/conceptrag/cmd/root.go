package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/concept-rag/conceptrag/internal/config"
	"github.com/concept-rag/conceptrag/internal/logging"
	"github.com/concept-rag/conceptrag/pkg/version"
)

var (
	debugMode      bool
	configPath     string
	loggingCleanup func()
)

// NewRootCmd creates the root command for the conceptrag CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "conceptrag",
		Short:   "Concept-aware retrieval engine over a local PDF/EPUB library",
		Version: version.Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logCfg := logging.DefaultConfig()
			if debugMode {
				logCfg = logging.DebugConfig()
			}
			logger, cleanup, err := logging.Setup(logCfg)
			if err != nil {
				return fmt.Errorf("setup logging: %w", err)
			}
			loggingCleanup = cleanup
			slog.SetDefault(logger)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if loggingCleanup != nil {
				loggingCleanup()
			}
			return nil
		},
	}

	root.SetVersionTemplate("conceptrag version {{.Version}}\n")
	root.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")
	root.PersistentFlags().StringVar(&configPath, "config", "", "directory containing .concept-rag.yaml (default: current directory)")

	root.AddCommand(newIngestCmd())
	root.AddCommand(newSearchCmd())
	root.AddCommand(newConceptCmd())
	root.AddCommand(newCategoryCmd())
	root.AddCommand(newConfigCmd())

	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig resolves Config for the project rooted at --config (or the
// current directory), layering user config, project config, and
// environment overrides per config.Load's documented precedence.
func loadConfig() (*config.Config, error) {
	dir := configPath
	if dir == "" {
		dir = "."
	}
	return config.Load(dir)
}
