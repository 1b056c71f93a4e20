package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sitechat/livechat/internal/auth"
	"github.com/sitechat/livechat/internal/config"
	"github.com/sitechat/livechat/internal/db"
	"github.com/sitechat/livechat/internal/user"
)

var (
	useraddPassword string
	useraddAdmin    bool
)

var useraddCmd = &cobra.Command{
	Use:   "useradd <username>",
	Short: "Create a login account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if useraddPassword == "" {
			return errors.New("--password is required")
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		database, err := db.NewDatabase(cmd.Context(), cfg.DatabaseDSN)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer database.Close()

		svc := user.NewService(user.NewRepository(database.Conn), auth.NewService(cfg.JWTSecret, cfg.TokenTTL))
		u, err := svc.Create(cmd.Context(), args[0], useraddPassword, useraddAdmin)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created user %s (id %d, admin=%t)\n", u.Username, u.ID, u.IsAdmin)
		return nil
	},
}

func init() {
	useraddCmd.Flags().StringVarP(&useraddPassword, "password", "p", "", "account password")
	useraddCmd.Flags().BoolVar(&useraddAdmin, "admin", false, "grant chat moderation rights")
	rootCmd.AddCommand(useraddCmd)
}
