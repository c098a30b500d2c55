package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/concept-rag/conceptrag/internal/config"
)

// newConfigCmd wires the user-config maintenance commands, grounded on the
// teacher's cmd/amanmcp/cmd/config.go (path/backup/restore around
// ~/.config/<app>/config.yaml), trimmed to this module's user config (no
// project-config layer or JSON/--source show flags to mirror here; see
// internal/config/config.go's Load precedence for that story).
func newConfigCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "config",
		Short: "Inspect and back up the user configuration file",
	}

	path := &cobra.Command{
		Use:   "path",
		Short: "Print the user config file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return nil
		},
	}

	backup := &cobra.Command{
		Use:   "backup",
		Short: "Create a timestamped backup of the user config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			backupPath, err := config.BackupUserConfig()
			if err != nil {
				return err
			}
			if backupPath == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "no user config to back up")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), backupPath)
			return nil
		},
	}

	listBackups := &cobra.Command{
		Use:   "list-backups",
		Short: "List user config backups, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			backups, err := config.ListUserConfigBackups()
			if err != nil {
				return err
			}
			return printJSON(backups)
		},
	}

	restore := &cobra.Command{
		Use:   "restore <backup-path>",
		Short: "Restore the user config from a backup file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.RestoreUserConfig(args[0])
		},
	}

	root.AddCommand(path, backup, listBackups, restore)
	return root
}
