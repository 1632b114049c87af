// Package commands defines the orderflow CLI.
package commands

import (
	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "orderflow",
	Short: "Order processing backend",
	Long: `orderflow is an order processing backend. It serves the order API,
broadcasts order events to the consumer groups, and dispatches
confirmation emails from a durable buffer.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file")
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}
