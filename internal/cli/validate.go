package cli

import (
	"fmt"

	"github.com/aaronromeo/sortpat/internal/config"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the config file and print a summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			runtimeEnv, err := config.RuntimeEnvFromEnv()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), config.Summary(cfg, runtimeEnv))
			return nil
		},
	}
}
