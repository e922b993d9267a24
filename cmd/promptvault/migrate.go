package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	var rollback bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and list the applied ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closer, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer closer.Close()

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			if rollback {
				if err := store.RollbackLast(); err != nil {
					return err
				}
				log.Info().Msg("Rolled back last migration")
			}

			ids, err := store.AppliedMigrations()
			if err != nil {
				return fmt.Errorf("list migrations: %w", err)
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&rollback, "rollback", false, "Undo the most recent migration")
	return cmd
}
