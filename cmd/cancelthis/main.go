// Package main provides the entry point for the cancelthis CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/daemontus/cancel-this/cmd/cancelthis/commands"
	"github.com/daemontus/cancel-this/pkg/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cancelthis",
		Short: "Cancelthis - cooperatively cancellable digest runner",
		Long: `Cancelthis digests data buffers with and without cooperative
cancellation checkpoints, demonstrating how checkpointed execution keeps a
CPU-bound process responsive to interrupts, timeouts, and memory limits.

Commands:
  hash      Digest a generated buffer in unchecked and checked mode`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewHashCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "cancelthis %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
