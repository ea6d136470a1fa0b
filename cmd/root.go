package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "redbird",
	Short: "California legislation tracker",
	Long: `Redbird tracks California legislative bills.

It syncs bills from the OpenStates API, enriches them with AI-generated
plain-language summaries, and serves them over a JSON API.`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(func() {
		// A missing .env file is fine; the environment may be set directly
		_ = godotenv.Load()
	})
}
