package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aaronromeo/sortpat/internal/mailerr"
	"github.com/aaronromeo/sortpat/internal/model"
	"github.com/aaronromeo/sortpat/internal/nlp"
	"golang.org/x/sync/errgroup"
)

const DefaultWorkers = 4

// Fetcher reads message headers and bodies from the mailbox.
type Fetcher interface {
	FetchHeaders(ctx context.Context, uids []uint32) ([]model.Descriptor, error)
	FetchBody(ctx context.Context, uid uint32) (string, error)
}

type Classifier interface {
	Classify(d model.Descriptor) (string, bool)
}

// Sink accepts messages for NLP post-processing without blocking.
type Sink interface {
	Submit(job nlp.Job) bool
}

type Option func(*Dispatcher)

func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		d.workers = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithBackground demotes per-message logs to debug level.
func WithBackground(background bool) Option {
	return func(d *Dispatcher) {
		d.background = background
	}
}

// WithReceivedAfter skips messages received before cutoff without
// classifying them. A zero cutoff disables the check.
func WithReceivedAfter(cutoff time.Time) Option {
	return func(d *Dispatcher) {
		d.cutoff = cutoff
	}
}

// WithNLP routes messages classified under one of labels to sink. An empty
// label list routes every matched message.
func WithNLP(sink Sink, labels []string) Option {
	return func(d *Dispatcher) {
		d.sink = sink
		d.routes = map[string]struct{}{}
		for _, label := range labels {
			d.routes[strings.ToLower(label)] = struct{}{}
		}
	}
}

// Dispatcher fans per-message fetch and classification out over a fixed
// number of workers.
type Dispatcher struct {
	workers    int
	logger     *slog.Logger
	background bool
	cutoff     time.Time
	sink       Sink
	routes     map[string]struct{}
}

func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{workers: DefaultWorkers}
	for _, opt := range opts {
		opt(d)
	}
	if d.workers <= 0 {
		d.workers = DefaultWorkers
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// Run classifies every id and returns one assignment per id, in input order.
// A repeated id is classified once; its repeats are recorded as skipped. It
// returns only after all tasks have finished. Failures never abort other
// tasks; they are recorded on the assignment.
func (d *Dispatcher) Run(ctx context.Context, ids []uint32, rules Classifier, session Fetcher) []model.Assignment {
	results := make([]model.Assignment, len(ids))
	seen := make(map[uint32]struct{}, len(ids))

	var g errgroup.Group
	g.SetLimit(d.workers)
	for i, uid := range ids {
		if _, dup := seen[uid]; dup {
			results[i] = model.Assignment{UID: uid, Outcome: model.OutcomeSkipped, Reason: model.ReasonDuplicate}
			continue
		}
		seen[uid] = struct{}{}

		i, uid := i, uid
		g.Go(func() error {
			results[i] = d.task(ctx, uid, rules, session)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (d *Dispatcher) task(ctx context.Context, uid uint32, rules Classifier, session Fetcher) (result model.Assignment) {
	result = model.Assignment{UID: uid, Outcome: model.OutcomePending}
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("classification task panicked", slog.Uint64("uid", uint64(uid)), slog.Any("panic", r))
			result.Fail(fmt.Sprintf("panic: %v", r))
		}
	}()

	if err := ctx.Err(); err != nil {
		result.Fail(err.Error())
		return result
	}

	descriptor, err := d.fetch(ctx, uid, session)
	if d.outsideWindow(descriptor) {
		result.Outcome = model.OutcomeSkipped
		result.Reason = model.ReasonOutsideWindow
		d.log(ctx, "message outside recent window", uid, descriptor.Subject, "")
		return result
	}
	if mailerr.IsMalformed(err) {
		result.Outcome = model.OutcomeSkipped
		result.Reason = err.Error()
		d.logger.Warn("skipping message", slog.Uint64("uid", uint64(uid)), slog.String("reason", err.Error()))
		return result
	}
	if err != nil {
		result.Fail("fetch headers: " + err.Error())
		d.logger.Error("fetch headers failed", slog.Uint64("uid", uint64(uid)), slog.Any("error", err))
		return result
	}
	result.Subject = descriptor.Subject

	label, ok := rules.Classify(descriptor)
	if !ok {
		result.Outcome = model.OutcomeNoMatch
		d.log(ctx, "no rule matched", uid, descriptor.Subject, "")
		return result
	}
	result.Label = label
	d.log(ctx, "classified message", uid, descriptor.Subject, label)

	if d.routed(label) {
		d.submit(ctx, uid, label, descriptor.Subject, session)
	}
	return result
}

func (d *Dispatcher) fetch(ctx context.Context, uid uint32, session Fetcher) (model.Descriptor, error) {
	descriptors, err := session.FetchHeaders(ctx, []uint32{uid})
	if err != nil {
		return model.Descriptor{}, err
	}
	for _, desc := range descriptors {
		if desc.UID != uid {
			continue
		}
		if strings.TrimSpace(desc.Subject) == "" {
			return desc, mailerr.NewMalformed(uid, "missing subject")
		}
		if strings.TrimSpace(desc.Sender) == "" {
			return desc, mailerr.NewMalformed(uid, "missing sender")
		}
		return desc, nil
	}
	return model.Descriptor{}, mailerr.NewMalformed(uid, "message no longer exists")
}

func (d *Dispatcher) outsideWindow(desc model.Descriptor) bool {
	if d.cutoff.IsZero() || desc.Received.IsZero() {
		return false
	}
	return desc.Received.Before(d.cutoff)
}

func (d *Dispatcher) routed(label string) bool {
	if d.sink == nil {
		return false
	}
	if len(d.routes) == 0 {
		return true
	}
	_, ok := d.routes[strings.ToLower(label)]
	return ok
}

func (d *Dispatcher) submit(ctx context.Context, uid uint32, label, subject string, session Fetcher) {
	body, err := session.FetchBody(ctx, uid)
	if err != nil {
		d.logger.Warn("fetch body for nlp failed", slog.Uint64("uid", uint64(uid)), slog.Any("error", err))
		return
	}
	d.sink.Submit(nlp.Job{UID: uid, Label: label, Subject: subject, Body: body})
}

func (d *Dispatcher) log(ctx context.Context, msg string, uid uint32, subject, label string) {
	level := slog.LevelInfo
	if d.background {
		level = slog.LevelDebug
	}
	d.logger.Log(ctx, level, msg,
		slog.Uint64("uid", uint64(uid)),
		slog.String("subject", subject),
		slog.String("label", label),
	)
}
