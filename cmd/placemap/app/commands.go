package app

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/placemap/cmd/placemap/cmd/consume"
	"github.com/agentstation/placemap/cmd/placemap/cmd/imports"
	"github.com/agentstation/placemap/cmd/placemap/cmd/list"
	"github.com/agentstation/placemap/cmd/placemap/cmd/search"
	"github.com/agentstation/placemap/cmd/placemap/cmd/serve"
)

// registerCommands registers all subcommands with the root command.
func (a *App) registerCommands(rootCmd *cobra.Command) {
	// Core commands
	rootCmd.AddCommand(search.NewSearchCommand(a))
	rootCmd.AddCommand(search.NewPlaceCommand(a))
	rootCmd.AddCommand(list.NewProvidersCommand(a))
	rootCmd.AddCommand(list.NewLayersCommand(a))
	rootCmd.AddCommand(list.NewHealthCommand(a))
	rootCmd.AddCommand(serve.NewCommand(a))
	rootCmd.AddCommand(consume.NewCommand(a))

	// Management commands
	rootCmd.AddCommand(imports.NewImportCommand(a))
	rootCmd.AddCommand(imports.NewClearCommand(a))

	// Utility commands
	rootCmd.AddCommand(a.NewVersionCommand())
}

// NewVersionCommand creates the version command.
func (a *App) NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("placemap %s\n", a.version)
			if a.config.Verbose {
				cmd.Printf("  commit:   %s\n", a.commit)
				cmd.Printf("  built:    %s\n", a.date)
				cmd.Printf("  built by: %s\n", a.builtBy)
			}
		},
	}
}
