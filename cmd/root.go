package cmd

import (
	"fmt"
	"os"

	"LanFM/server"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "lanfm",
	Short: "LanFM is a local-network music player and presence service.",
	Run: func(cmd *cobra.Command, args []string) {
		// Bare invocation runs the status service.
		server.Start()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
