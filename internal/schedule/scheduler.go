package schedule

import (
	"context"
	"log/slog"

	"github.com/aaronromeo/sortpat/internal/config"
	"github.com/pkg/errors"
	cronv3 "github.com/robfig/cron/v3"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Scheduler runs a job on a cron expression. A tick that fires while the
// previous run is still going is skipped.
type Scheduler struct {
	cron   *cronv3.Cron
	logger *slog.Logger
	spec   string
}

// New parses spec (five fields or six with leading seconds) and registers
// job. ctx is passed to every invocation.
func New(ctx context.Context, spec string, job Job, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cronLogger := slogLogger{logger: logger}
	c := cronv3.New(
		cronv3.WithParser(config.CronParser),
		cronv3.WithLogger(cronLogger),
		cronv3.WithChain(
			cronv3.Recover(cronLogger),
			cronv3.SkipIfStillRunning(cronLogger),
		),
	)

	_, err := c.AddFunc(spec, func() {
		if err := ctx.Err(); err != nil {
			return
		}
		if err := job(ctx); err != nil {
			logger.Error("scheduled run failed", slog.Any("error", err))
		}
	})
	if err != nil {
		return nil, errors.Wrapf(err, "schedule %q", spec)
	}
	return &Scheduler{cron: c, logger: logger, spec: spec}, nil
}

func (s *Scheduler) Start() {
	s.logger.Info("scheduler started", slog.String("cron", s.spec))
	s.cron.Start()
}

// Stop stops the scheduler and returns a context that is done once the
// running job, if any, has finished.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("scheduler stopping")
	return s.cron.Stop()
}

// Entries lists the registered jobs with their next activation.
func (s *Scheduler) Entries() []cronv3.Entry {
	return s.cron.Entries()
}

// slogLogger adapts slog to cron.Logger.
type slogLogger struct {
	logger *slog.Logger
}

func (l slogLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l slogLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
