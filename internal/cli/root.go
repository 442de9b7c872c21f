// Package cli implements the lovelyd command line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configFile string
	debug      bool
	verbose    bool
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:          "lovelyd",
	Short:        "lovelyd is a standalone Lovely Swap exchange node",
	Long:         "lovelyd runs the Lovely Swap exchange engine with a JSON HTTP API and a websocket event stream.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "conf", "", "path to the configuration file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "only log errors")

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
