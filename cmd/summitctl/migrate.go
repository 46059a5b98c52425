package main

import (
	"github.com/oldrefery/summit-backend-sub001/internal/database"
	"github.com/spf13/cobra"
)

func migrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate up|down|status",
		Short:     "Apply, revert or inspect database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFromContext(cmd.Context())
			logger := commonRun()

			db, err := database.NewConnection(&cfg.Database, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			return db.Migrate(cmd.Context(), args[0])
		},
	}
	return cmd
}
