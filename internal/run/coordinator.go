package run

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aaronromeo/sortpat/internal/announcer"
	"github.com/aaronromeo/sortpat/internal/apply"
	"github.com/aaronromeo/sortpat/internal/dispatch"
	"github.com/aaronromeo/sortpat/internal/imap"
	"github.com/aaronromeo/sortpat/internal/model"
	"github.com/aaronromeo/sortpat/internal/nlp"
	"github.com/aaronromeo/sortpat/internal/rules"
	"github.com/aaronromeo/sortpat/internal/scan"
	"github.com/aaronromeo/sortpat/internal/telemetry"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName      = "github.com/aaronromeo/sortpat/internal/run"
	nlpDrainTimeout = 30 * time.Second
	announceTimeout = 15 * time.Second
)

var ErrRunInProgress = errors.New("a run is already in progress")

// SessionSource hands out connected mailbox sessions.
type SessionSource interface {
	Acquire(ctx context.Context) (imap.Session, error)
	Release(session imap.Session)
}

// NLP enables post-classification analysis for the labels in RouteLabels.
type NLP struct {
	Analyzer    nlp.Analyzer
	Options     nlp.Options
	RouteLabels []string
}

type Deps struct {
	Sessions  SessionSource
	Rules     *rules.RuleSet
	Policy    scan.Policy
	Folder    string
	Workers   int
	DryRun    bool
	NLP       *NLP
	Announcer announcer.Service
	Metrics   *telemetry.RunMetrics
	Log       *slog.Logger
	Now       func() time.Time
}

// Coordinator drives one scan, classify and apply cycle per Run call. It
// keeps nothing between runs apart from its configuration.
type Coordinator struct {
	deps    Deps
	tracer  trace.Tracer
	running atomic.Bool
}

func New(deps Deps) *Coordinator {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Folder == "" {
		deps.Folder = "INBOX"
	}
	if deps.Rules == nil {
		deps.Rules = rules.Default()
	}
	return &Coordinator{deps: deps, tracer: otel.Tracer(tracerName)}
}

// Run executes one cycle. The summary is always returned; the error is set
// when a fatal failure stopped the cycle early. Only one run may be active
// on a Coordinator at a time.
func (c *Coordinator) Run(ctx context.Context) (model.RunSummary, error) {
	if !c.running.CompareAndSwap(false, true) {
		return model.RunSummary{}, ErrRunInProgress
	}
	defer c.running.Store(false)

	r := &cycle{
		state: model.StateIdle,
		summary: model.RunSummary{
			RunID:     uuid.NewString(),
			Folder:    c.deps.Folder,
			DryRun:    c.deps.DryRun,
			StartedAt: c.deps.Now().UTC(),
		},
	}
	log := c.deps.Log.With(slog.String("run_id", r.summary.RunID), slog.String("folder", c.deps.Folder))

	ctx, span := c.tracer.Start(ctx, "sortpat.run", trace.WithAttributes(
		attribute.String("run.id", r.summary.RunID),
		attribute.String("run.folder", c.deps.Folder),
		attribute.Bool("run.dry_run", c.deps.DryRun),
	))
	defer span.End()

	err := c.execute(ctx, r, log)
	if err != nil {
		r.fail(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("run failed", slog.String("state", string(r.failedIn)), slog.Any("error", err))
	} else {
		log.Info("run complete",
			slog.Int("scanned", r.summary.Scanned),
			slog.Int("labeled", r.summary.Labeled),
			slog.Int("archived", r.summary.Archived),
			slog.Int("skipped", r.summary.Skipped),
			slog.Int("failed", r.summary.Failed),
		)
	}
	r.summary.FinishedAt = c.deps.Now().UTC()
	span.SetAttributes(
		attribute.String("run.state", string(r.summary.FinalState)),
		attribute.Int("run.scanned", r.summary.Scanned),
		attribute.Int("run.labeled", r.summary.Labeled),
	)

	c.report(ctx, r.summary, log)
	return r.summary, err
}

func (c *Coordinator) execute(ctx context.Context, r *cycle, log *slog.Logger) error {
	if err := r.advance(model.StateConnecting); err != nil {
		return err
	}
	session, err := c.deps.Sessions.Acquire(ctx)
	if err != nil {
		return errors.Wrap(err, "acquire session")
	}
	defer c.deps.Sessions.Release(session)

	if _, err := session.SelectFolder(ctx, c.deps.Folder); err != nil {
		return err
	}

	if err := r.advance(model.StateScanning); err != nil {
		return err
	}
	ids, expr, err := c.scan(ctx, r, session, log)
	if err != nil {
		return err
	}

	if err := r.advance(model.StateClassifying); err != nil {
		return err
	}
	var proc *nlp.Processor
	if c.deps.NLP != nil {
		proc = nlp.NewProcessor(c.deps.NLP.Analyzer, c.deps.NLP.Options, log)
	}
	assignments := c.classify(ctx, ids, expr, session, proc, log)
	r.summary.Audit = assignments
	r.summary.Tally()
	if err := ctx.Err(); err != nil {
		c.drain(ctx, r, proc)
		return errors.Wrap(err, "cancelled before applying")
	}

	// Stores and the expunge run to completion once started. Each command is
	// still bounded by the session's command timeout.
	commitCtx := context.WithoutCancel(ctx)

	if err := r.advance(model.StateApplying); err != nil {
		return err
	}
	applier := apply.New(apply.WithLogger(log), apply.WithDryRun(c.deps.DryRun))
	stageCtx, span := c.tracer.Start(commitCtx, "sortpat.apply")
	applied := applier.Store(stageCtx, assignments, session, c.deps.Policy)
	span.End()

	if err := r.advance(model.StateCommitting); err != nil {
		return err
	}
	stageCtx, span = c.tracer.Start(commitCtx, "sortpat.commit")
	applier.Commit(stageCtx, &applied, session)
	span.End()

	r.summary.Audit = applied.Audit
	r.summary.Expunged = applied.Expunged
	r.summary.CommitError = applied.CommitError
	r.summary.Tally()
	c.drain(ctx, r, proc)

	return r.advance(model.StateDone)
}

func (c *Coordinator) scan(ctx context.Context, r *cycle, session imap.Session, log *slog.Logger) ([]uint32, scan.Expr, error) {
	ctx, span := c.tracer.Start(ctx, "sortpat.scan")
	defer span.End()

	expr := scan.BuildSearchExpression(c.deps.Policy, c.deps.Rules.Labels(), c.deps.Now())
	ids, err := session.Search(ctx, expr)
	if err != nil {
		return nil, expr, err
	}
	batch := scan.Clamp(ids, c.deps.Policy.Limit())
	r.summary.Scanned = len(batch)

	span.SetAttributes(attribute.String("scan.expr", expr.String()), attribute.Int("scan.matches", len(ids)))
	log.Info("scan complete",
		slog.String("search", expr.String()),
		slog.Int("matches", len(ids)),
		slog.Int("batch", len(batch)),
	)
	return batch, expr, nil
}

func (c *Coordinator) classify(ctx context.Context, ids []uint32, expr scan.Expr, session imap.Session, proc *nlp.Processor, log *slog.Logger) []model.Assignment {
	ctx, span := c.tracer.Start(ctx, "sortpat.classify", trace.WithAttributes(attribute.Int("classify.batch", len(ids))))
	defer span.End()

	opts := []dispatch.Option{
		dispatch.WithWorkers(c.deps.Workers),
		dispatch.WithLogger(log),
		dispatch.WithBackground(c.deps.Policy.BackgroundMode),
		dispatch.WithReceivedAfter(expr.ReceivedAfter()),
	}
	if proc != nil {
		opts = append(opts, dispatch.WithNLP(proc, c.deps.NLP.RouteLabels))
	}
	return dispatch.New(opts...).Run(ctx, ids, c.deps.Rules, session)
}

func (c *Coordinator) drain(ctx context.Context, r *cycle, proc *nlp.Processor) {
	if proc == nil {
		return
	}
	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), nlpDrainTimeout)
	defer cancel()
	r.summary.Insights = proc.Close(drainCtx)
}

func (c *Coordinator) report(ctx context.Context, summary model.RunSummary, log *slog.Logger) {
	reportCtx := context.WithoutCancel(ctx)
	c.deps.Metrics.Record(reportCtx, summary)

	if c.deps.Announcer == nil {
		return
	}
	announceCtx, cancel := context.WithTimeout(reportCtx, announceTimeout)
	defer cancel()
	if err := c.deps.Announcer.Announce(announceCtx, summary); err != nil {
		log.Warn("reporting failed", slog.Any("error", err))
	}
}

// Unread returns the number of unseen messages in the configured folder.
func (c *Coordinator) Unread(ctx context.Context) (int, error) {
	session, err := c.deps.Sessions.Acquire(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "acquire session")
	}
	defer c.deps.Sessions.Release(session)

	if _, err := session.SelectFolder(ctx, c.deps.Folder); err != nil {
		return 0, err
	}
	return session.CountUnseen(ctx)
}
