// Package cli implements the librarian command line: the server plus the
// desk maintenance commands that share its wiring.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/entrypoint"
)

// NewRootCommand builds the command tree. Running it without a subcommand
// starts the HTTP server.
func NewRootCommand(version string) *cobra.Command {
	var dbPath string

	root := &cobra.Command{
		Use:           "librarian",
		Short:         "Library circulation service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return entrypoint.Run(loadConfig(dbPath), version)
		},
	}
	root.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides DATABASE_PATH)")

	cfg := func() *config.Config { return loadConfig(dbPath) }
	root.AddCommand(
		newServeCommand(cfg, version),
		newMigrateCommand(cfg),
		newAdminCommand(cfg),
		newImportBooksCommand(cfg),
		newExportBooksCommand(cfg),
		newOverdueCommand(cfg),
		newRankingCommand(cfg),
	)
	return root
}

func loadConfig(dbPath string) *config.Config {
	cfg := config.NewConfig()
	if dbPath != "" {
		cfg.Database.Type = config.DatabaseSQLite
		cfg.Database.Path = dbPath
	}
	return cfg
}

// withServices opens the store for the duration of fn.
func withServices(cfg *config.Config, fn func(*entrypoint.Services) error) error {
	svc, err := entrypoint.NewServices(cfg, nil)
	if err != nil {
		return err
	}
	defer svc.Close()
	return fn(svc)
}
