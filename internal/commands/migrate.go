package commands

import (
	"log"

	"github.com/spf13/cobra"

	"ATLAS-backend/internal/platform/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create tables and indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, conn, err := openDB()
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := db.Migrate(cmd.Context(), conn, cfg.DB.Driver); err != nil {
			return err
		}
		log.Printf("[INFO] schema is up to date (%s)", cfg.DB.Driver)
		return nil
	},
}
