package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aaronromeo/sortpat/internal/schedule"
	"github.com/aaronromeo/sortpat/internal/server"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API for triggering runs and reading the last summary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			withSchedule, err := cmd.Flags().GetBool("schedule")
			if err != nil {
				return err
			}
			a, err := newApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			listen, err := cmd.Flags().GetString("listen")
			if err != nil {
				return err
			}
			if listen == "" {
				listen = a.cfg.Server.Listen
			}

			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(a.coordinator, a.logger)

			var scheduler *schedule.Scheduler
			if withSchedule {
				scheduler, err = a.scheduler(ctx, srv.Record)
				if err != nil {
					return err
				}
				scheduler.Start()
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Listen(listen)
			}()
			fmt.Fprintf(cmd.OutOrStdout(), "listening on %s\n", listen)

			select {
			case err = <-errCh:
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				err = srv.Shutdown(shutdownCtx)
			}
			if scheduler != nil {
				<-scheduler.Stop().Done()
			}
			return err
		},
	}
	cmd.Flags().String("listen", "", "Address to listen on (defaults to server.listen)")
	cmd.Flags().Bool("schedule", false, "Also run the cron schedule in this process")
	return cmd
}
