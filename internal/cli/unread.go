package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUnreadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unread",
		Short: "Print the number of unread messages in the configured folder",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			count, err := a.coordinator.Unread(commandContext(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d unread\n", a.cfg.Folder, count)
			return nil
		},
	}
}
