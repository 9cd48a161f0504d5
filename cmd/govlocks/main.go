package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const programName = "govlocks"

// Set through -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

var globalFlags = struct {
	debug  bool
	output string
}{}

func rootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Evaluate governance unlock schedules from a chain-state snapshot",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&globalFlags.output, "output", "o", "yaml", "output format: yaml or json")

	rootCmd.AddCommand(
		scheduleCommand(),
		affectsCommand(),
		versionCommand(),
	)
	return rootCmd
}

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
