// Package cmd defines and implements the CLI commands for the staticsnap
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "staticsnap",
		Short: "A batch prerenderer that snapshots JavaScript pages to static HTML.",
		Long: `staticsnap drives headless Chrome over a bounded list of pages,
waits for each page to settle, and writes the rendered markup into a
mirrored output tree with optional compression, CSS inlining, and
script-hash sidecars.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is env-only)")
	cmd.AddCommand(newSnapCmd())

	return cmd
}

// Execute is the main entry point. It exits non-zero on configuration errors
// and fatal engine faults; completed batches with failed pages exit zero.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "staticsnap: %v\n", err)
		os.Exit(1)
	}
}
