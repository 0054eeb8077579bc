package apply

import (
	"context"
	"log/slog"

	"github.com/aaronromeo/sortpat/internal/model"
	"github.com/aaronromeo/sortpat/internal/scan"
)

// Writer issues the mailbox-changing commands of a run.
type Writer interface {
	StoreLabel(ctx context.Context, uid uint32, label string) error
	SetArchiveFlag(ctx context.Context, uid uint32) error
	Expunge(ctx context.Context) (int, error)
}

type Option func(*Applier)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Applier) {
		a.logger = logger
	}
}

// WithDryRun records what would be written without touching the mailbox.
func WithDryRun(dryRun bool) Option {
	return func(a *Applier) {
		a.dryRun = dryRun
	}
}

type Applier struct {
	logger *slog.Logger
	dryRun bool
}

func New(opts ...Option) *Applier {
	a := &Applier{}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// Apply stores labels for every pending assignment, archives the ones whose
// label stuck when the policy asks for it, then expunges once. A failed store
// only fails its own assignment; a failed expunge is recorded on the summary
// and does not revert stores.
func (a *Applier) Apply(ctx context.Context, assignments []model.Assignment, session Writer, policy scan.Policy) model.RunSummary {
	summary := a.Store(ctx, assignments, session, policy)
	a.Commit(ctx, &summary, session)
	return summary
}

// Store runs the label and archive writes without the final expunge.
// Assignments that repeat a UID already handled are audited as skipped.
func (a *Applier) Store(ctx context.Context, assignments []model.Assignment, session Writer, policy scan.Policy) model.RunSummary {
	summary := model.RunSummary{DryRun: a.dryRun}
	seen := make(map[uint32]struct{}, len(assignments))

	for _, in := range assignments {
		out := in
		if out.Outcome == model.OutcomePending && out.Label != "" {
			if _, dup := seen[out.UID]; dup {
				out.Outcome = model.OutcomeSkipped
				out.Reason = model.ReasonDuplicate
			} else {
				seen[out.UID] = struct{}{}
				a.applyOne(ctx, &out, session, policy)
			}
		}
		summary.Audit = append(summary.Audit, out)
	}

	summary.Tally()
	return summary
}

// Commit issues the single expunge that ends a run. It is skipped in dry-run
// mode.
func (a *Applier) Commit(ctx context.Context, summary *model.RunSummary, session Writer) {
	if a.dryRun {
		return
	}
	count, err := session.Expunge(ctx)
	if err != nil {
		summary.CommitError = err.Error()
		a.logger.Error("expunge failed", slog.Any("error", err))
		return
	}
	summary.Expunged = count
}

func (a *Applier) applyOne(ctx context.Context, out *model.Assignment, session Writer, policy scan.Policy) {
	if a.dryRun {
		out.Outcome = model.OutcomeApplied
		out.Archived = policy.AutoArchiveAfterSort
		out.Reason = "dry run"
		return
	}

	if err := session.StoreLabel(ctx, out.UID, out.Label); err != nil {
		out.Fail(err.Error())
		a.logger.Error("store label failed",
			slog.Uint64("uid", uint64(out.UID)),
			slog.String("label", out.Label),
			slog.Any("error", err),
		)
		return
	}
	out.Outcome = model.OutcomeApplied

	if !policy.AutoArchiveAfterSort {
		return
	}
	if err := session.SetArchiveFlag(ctx, out.UID); err != nil {
		out.Reason = "archive: " + err.Error()
		a.logger.Warn("archive failed", slog.Uint64("uid", uint64(out.UID)), slog.Any("error", err))
		return
	}
	out.Archived = true
}
