package main

import (
	"cleanrate/app/config"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQLite migrations or Neo4j constraints for the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Storage.Driver == config.DriverMemory {
				log.Info().Msg("memory storage needs no migrations")
				return nil
			}
			// Opening a store applies its schema.
			_, closeRepo, err := openRepository(cmd.Context(), cfg.Storage)
			if err != nil {
				return err
			}
			closeRepo()
			log.Info().Str("storage", cfg.Storage.Driver).Msg("schema up to date")
			return nil
		},
	}
}
