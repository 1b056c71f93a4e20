package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sitechat/livechat/internal/config"
	"github.com/sitechat/livechat/internal/db"
	"github.com/sitechat/livechat/internal/logging"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := logging.New(cfg.Log.Format, cfg.Log.Level)

		database, err := db.NewDatabase(cmd.Context(), cfg.DatabaseDSN)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer database.Close()

		if err := database.AutoMigrate(cmd.Context()); err != nil {
			return err
		}
		logger.Info("Database schema initialized")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
