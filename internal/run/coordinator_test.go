package run

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aaronromeo/sortpat/ftest"
	"github.com/aaronromeo/sortpat/internal/imap"
	"github.com/aaronromeo/sortpat/internal/imap/actions"
	"github.com/aaronromeo/sortpat/internal/imap/sessionmanager"
	"github.com/aaronromeo/sortpat/internal/mailerr"
	"github.com/aaronromeo/sortpat/internal/model"
	"github.com/aaronromeo/sortpat/internal/nlp"
	"github.com/aaronromeo/sortpat/internal/rules"
	"github.com/aaronromeo/sortpat/internal/scan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var inbox = []ftest.Message{
	{From: "Billing <billing@example.com>", To: "user@example.com", Subject: "Your invoice #1", Body: "Amount due: 10 EUR"},
	{From: "News <news@example.com>", To: "user@example.com", Subject: "Weekly newsletter", Body: "This week in mail."},
	{From: "Friend <friend@example.org>", To: "user@example.com", Subject: "Game night invite", Body: "Friday?"},
}

func setupLogger(t *testing.T) *slog.Logger {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	t.Cleanup(func() {
		if t.Failed() {
			os.Stdout.Write(buf.Bytes()) //nolint:errcheck
		}
	})
	return logger
}

// countingSession counts the mailbox writes issued through it.
type countingSession struct {
	imap.Session
	counts *writeCounts
}

type writeCounts struct {
	stores   atomic.Int32
	expunges atomic.Int32
}

func (s countingSession) StoreLabel(ctx context.Context, uid uint32, label string) error {
	s.counts.stores.Add(1)
	return s.Session.StoreLabel(ctx, uid, label)
}

func (s countingSession) Expunge(ctx context.Context) (int, error) {
	s.counts.expunges.Add(1)
	return s.Session.Expunge(ctx)
}

type recordingAnnouncer struct {
	mu        sync.Mutex
	summaries []model.RunSummary
}

func (a *recordingAnnouncer) Announce(_ context.Context, summary model.RunSummary) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.summaries = append(a.summaries, summary)
	return nil
}

func newSession(srv *ftest.Server, password string) imap.Session {
	return imap.New(actions.Labeling{},
		sessionmanager.WithAddr(srv.Addr),
		sessionmanager.WithCreds(ftest.DefaultUser, password),
		sessionmanager.WithTLSConfig(ftest.ClientTLSConfig()),
		sessionmanager.WithCommandTimeout(5*time.Second),
	)
}

func newPool(t *testing.T, srv *ftest.Server, password string, counts *writeCounts) *imap.Pool {
	pool := imap.NewPool(1, func() imap.Session {
		return countingSession{Session: newSession(srv, password), counts: counts}
	}, setupLogger(t))
	t.Cleanup(func() { _ = pool.Close() })
	return pool
}

// inspect opens a separate session and returns the descriptors of uids.
func inspect(t *testing.T, srv *ftest.Server, uids []uint32) []model.Descriptor {
	t.Helper()
	ctx := context.Background()
	session := newSession(srv, ftest.DefaultPass)
	require.NoError(t, session.Connect(ctx))
	t.Cleanup(func() { _ = session.Close() })

	_, err := session.SelectFolder(ctx, "INBOX")
	require.NoError(t, err)
	descriptors, err := session.FetchHeaders(ctx, uids)
	require.NoError(t, err)
	return descriptors
}

func TestRunCapArchivesAndExpungesOnce(t *testing.T) {
	srv, cleanup := ftest.SetupIMAPServer(t, nil, nil, inbox)
	t.Cleanup(cleanup)
	counts := &writeCounts{}
	announcer := &recordingAnnouncer{}

	coordinator := New(Deps{
		Sessions: newPool(t, srv, ftest.DefaultPass, counts),
		Rules:    rules.Default(),
		Policy: scan.Policy{
			MaxPerRun:            2,
			AutoArchiveAfterSort: true,
		},
		Workers:   2,
		Announcer: announcer,
		Log:       setupLogger(t),
	})

	summary, err := coordinator.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.StateDone, summary.FinalState)
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 2, summary.Scanned)
	assert.Equal(t, 2, summary.Labeled)
	assert.Equal(t, 2, summary.Archived)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, int32(2), counts.stores.Load())
	assert.Equal(t, int32(1), counts.expunges.Load())

	require.Len(t, summary.Audit, 2)
	assert.Equal(t, "Invoices", summary.Audit[0].Label)
	assert.Equal(t, "Newsletters", summary.Audit[1].Label)

	descriptors := inspect(t, srv, srv.UIDs)
	require.Len(t, descriptors, 3)
	byUID := map[uint32]model.Descriptor{}
	for _, d := range descriptors {
		byUID[d.UID] = d
	}
	invoice, newsletter, invite := byUID[srv.UIDs[0]], byUID[srv.UIDs[1]], byUID[srv.UIDs[2]]
	assert.True(t, invoice.HasKeyword("Invoices"))
	assert.True(t, invoice.HasKeyword(actions.DefaultArchiveFlag))
	assert.True(t, newsletter.HasKeyword("Newsletters"))
	assert.True(t, newsletter.HasKeyword(actions.DefaultArchiveFlag))
	for _, label := range append(rules.Default().Labels(), actions.DefaultArchiveFlag) {
		assert.False(t, invite.HasKeyword(label), "invite should be untouched, has %s", label)
	}

	require.Len(t, announcer.summaries, 1)
	assert.Equal(t, summary.RunID, announcer.summaries[0].RunID)
}

func TestRunOnlyRecent(t *testing.T) {
	now := time.Date(2026, 10, 17, 20, 0, 0, 0, time.UTC)
	srv, cleanup := ftest.SetupIMAPServer(t, nil, nil, []ftest.Message{
		{From: "billing@example.com", Subject: "Old invoice", Body: "x", Time: now.Add(-48 * time.Hour)},
		{From: "billing@example.com", Subject: "Yesterday's invoice", Body: "x", Time: now.Add(-30 * time.Hour)},
		{From: "billing@example.com", Subject: "New invoice", Body: "x", Time: now.Add(-10 * time.Hour)},
	})
	t.Cleanup(cleanup)
	counts := &writeCounts{}

	summary, err := New(Deps{
		Sessions: newPool(t, srv, ftest.DefaultPass, counts),
		Policy:   scan.Policy{OnlyRecent: true},
		Log:      setupLogger(t),
		Now:      func() time.Time { return now },
	}).Run(context.Background())
	require.NoError(t, err)

	// SINCE matches whole days, so the 30h old message comes back from the
	// search and is dropped on its received time.
	assert.Equal(t, 2, summary.Scanned)
	require.Len(t, summary.Audit, 2)
	assert.Equal(t, srv.UIDs[1], summary.Audit[0].UID)
	assert.Equal(t, model.OutcomeSkipped, summary.Audit[0].Outcome)
	assert.Equal(t, model.ReasonOutsideWindow, summary.Audit[0].Reason)
	assert.Empty(t, summary.Audit[0].Label)
	assert.Equal(t, srv.UIDs[2], summary.Audit[1].UID)
	assert.Equal(t, "Invoices", summary.Audit[1].Label)
	assert.Equal(t, 1, summary.Labeled)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, int32(1), counts.stores.Load())

	for _, d := range inspect(t, srv, srv.UIDs[:2]) {
		assert.False(t, d.HasKeyword("Invoices"), "uid %d should be untouched", d.UID)
	}
}

func TestRunTwiceIsIdempotent(t *testing.T) {
	srv, cleanup := ftest.SetupIMAPServer(t, nil, nil, inbox)
	t.Cleanup(cleanup)
	counts := &writeCounts{}

	coordinator := New(Deps{
		Sessions: newPool(t, srv, ftest.DefaultPass, counts),
		Log:      setupLogger(t),
	})

	first, err := coordinator.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, first.Labeled)
	assert.Equal(t, int32(3), counts.stores.Load())

	second, err := coordinator.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Scanned)
	assert.Equal(t, 0, second.Labeled)
	assert.Equal(t, int32(3), counts.stores.Load(), "second run must not store labels")
	assert.Equal(t, int32(2), counts.expunges.Load())
}

func TestRunDryRunWritesNothing(t *testing.T) {
	srv, cleanup := ftest.SetupIMAPServer(t, nil, nil, inbox)
	t.Cleanup(cleanup)
	counts := &writeCounts{}

	summary, err := New(Deps{
		Sessions: newPool(t, srv, ftest.DefaultPass, counts),
		Policy:   scan.Policy{AutoArchiveAfterSort: true},
		DryRun:   true,
		Log:      setupLogger(t),
	}).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, summary.DryRun)
	assert.Equal(t, 3, summary.Labeled)
	assert.Zero(t, counts.stores.Load())
	assert.Zero(t, counts.expunges.Load())
	for _, d := range inspect(t, srv, srv.UIDs) {
		assert.False(t, d.HasKeyword("Invoices"))
	}
}

func TestRunBadCredentials(t *testing.T) {
	srv, cleanup := ftest.SetupIMAPServer(t, nil, nil, inbox)
	t.Cleanup(cleanup)
	counts := &writeCounts{}
	announcer := &recordingAnnouncer{}

	summary, err := New(Deps{
		Sessions:  newPool(t, srv, "wrong", counts),
		Announcer: announcer,
		Log:       setupLogger(t),
	}).Run(context.Background())

	require.Error(t, err)
	assert.True(t, mailerr.IsFatal(err))
	assert.Equal(t, model.StateFailed, summary.FinalState)
	assert.NotEmpty(t, summary.Error)
	assert.False(t, summary.FinishedAt.IsZero())
	assert.Zero(t, counts.stores.Load())
	require.Len(t, announcer.summaries, 1)
	assert.Equal(t, model.StateFailed, announcer.summaries[0].FinalState)
}

func TestRunMissingFolder(t *testing.T) {
	srv, cleanup := ftest.SetupIMAPServer(t, nil, nil, inbox)
	t.Cleanup(cleanup)

	summary, err := New(Deps{
		Sessions: newPool(t, srv, ftest.DefaultPass, &writeCounts{}),
		Folder:   "Missing",
		Log:      setupLogger(t),
	}).Run(context.Background())

	var folderErr *mailerr.FolderError
	require.ErrorAs(t, err, &folderErr)
	assert.Equal(t, model.StateFailed, summary.FinalState)
}

func TestRunRoutesToNLP(t *testing.T) {
	srv, cleanup := ftest.SetupIMAPServer(t, nil, nil, inbox)
	t.Cleanup(cleanup)

	summary, err := New(Deps{
		Sessions: newPool(t, srv, ftest.DefaultPass, &writeCounts{}),
		NLP: &NLP{
			Analyzer:    nlp.LexiconAnalyzer{},
			RouteLabels: []string{"Invoices"},
		},
		Log: setupLogger(t),
	}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Insights, 1)
	assert.Equal(t, srv.UIDs[0], summary.Insights[0].UID)
	assert.Equal(t, "Invoices", summary.Insights[0].Label)
	assert.NotEmpty(t, summary.Insights[0].Summary)
}

func TestUnread(t *testing.T) {
	srv, cleanup := ftest.SetupIMAPServer(t, nil, nil, inbox)
	t.Cleanup(cleanup)

	count, err := New(Deps{
		Sessions: newPool(t, srv, ftest.DefaultPass, &writeCounts{}),
		Log:      setupLogger(t),
	}).Unread(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

// blockingSource blocks Acquire until ctx is done.
type blockingSource struct {
	acquired chan struct{}
}

func (s *blockingSource) Acquire(ctx context.Context) (imap.Session, error) {
	close(s.acquired)
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *blockingSource) Release(imap.Session) {}

func TestRunRejectsOverlap(t *testing.T) {
	source := &blockingSource{acquired: make(chan struct{})}
	coordinator := New(Deps{Sessions: source, Log: setupLogger(t)})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := coordinator.Run(ctx)
		done <- err
	}()

	<-source.acquired
	_, err := coordinator.Run(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
