package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "livechat",
	Short: "Live chat hub for the personal site",
	Long: `livechat serves the site's live chat websocket and its moderation console backend.

Available commands:
  serve     Run the HTTP and websocket server (default)
  migrate   Create the database schema
  useradd   Create a login account`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
