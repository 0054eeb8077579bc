package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aaronromeo/sortpat/internal/announcer"
	"github.com/aaronromeo/sortpat/internal/model"
	"github.com/aaronromeo/sortpat/internal/schedule"
	"github.com/spf13/cobra"
)

func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run classification cycles on the configured cron schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dryRun, err := cmd.Flags().GetBool("dry-run")
			if err != nil {
				return err
			}
			a, err := newApp(cmd, dryRun)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			scheduler, err := a.scheduler(ctx, func(summary model.RunSummary) {
				fmt.Fprintln(cmd.OutOrStdout(), announcer.Message(summary))
			})
			if err != nil {
				return err
			}
			scheduler.Start()
			fmt.Fprintf(cmd.OutOrStdout(), "scheduled runs on %q for folder %q\n", a.cfg.Schedule.Cron, a.cfg.Folder)

			<-ctx.Done()
			<-scheduler.Stop().Done()
			return nil
		},
	}
	cmd.Flags().Bool("dry-run", false, "Classify and report without writing labels or expunging")
	return cmd
}

// scheduler wraps the coordinator in a cron job. onDone receives every
// summary, including those of failed runs.
func (a *app) scheduler(ctx context.Context, onDone func(model.RunSummary)) (*schedule.Scheduler, error) {
	return schedule.New(ctx, a.cfg.Schedule.Cron, func(ctx context.Context) error {
		summary, err := a.coordinator.Run(ctx)
		if summary.RunID != "" {
			onDone(summary)
		}
		return err
	}, a.logger)
}
