package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ltessier/courier/internal/config"
)

var cfg *config.Config

func main() {
	rootCmd := &cobra.Command{
		Use:   "courier",
		Short: "Courier - real-time messaging backend",
		Long: `Courier is a real-time messaging backend: REST + WebSocket API,
PostgreSQL persistence, Redis cache and cross-instance pub/sub.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return nil
		},
	}

	rootCmd.AddCommand(
		serveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var version = "dev"

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the courier version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("courier", version)
		},
	}
}
