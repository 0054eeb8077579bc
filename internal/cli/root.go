package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "sortpat",
		Short:         "sortpat classifies and labels mailbox messages by rule",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file (or set SORTPAT_CONFIG)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose logging")

	rootCmd.AddCommand(
		newRunCmd(),
		newScheduleCmd(),
		newServeCmd(),
		newUnreadCmd(),
		newValidateCmd(),
	)
	return rootCmd
}

// Execute runs the root command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
