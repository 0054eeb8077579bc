package schedule

import (
	"bytes"
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestNewRejectsBadSpec(t *testing.T) {
	_, err := New(context.Background(), "every day", func(context.Context) error { return nil }, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "every day")
}

func TestNewAcceptsFiveAndSixFields(t *testing.T) {
	noop := func(context.Context) error { return nil }
	for _, spec := range []string{"0 */6 * * *", "0 0 0,6,12,18 * * *", "@hourly"} {
		s, err := New(context.Background(), spec, noop, nil)
		require.NoError(t, err, spec)
		require.Len(t, s.Entries(), 1)
	}
}

func TestSchedulerRunsJob(t *testing.T) {
	var buf bytes.Buffer
	var calls atomic.Int32
	s, err := New(context.Background(), "* * * * * *", func(context.Context) error {
		calls.Add(1)
		return errors.New("mailbox unavailable")
	}, testLogger(&buf))
	require.NoError(t, err)

	s.Start()
	assert.Eventually(t, func() bool { return calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	<-s.Stop().Done()

	assert.Contains(t, buf.String(), "scheduled run failed")
	assert.Contains(t, buf.String(), "mailbox unavailable")
}

func TestSchedulerSkipsOverlappingRuns(t *testing.T) {
	var buf bytes.Buffer
	var running, maxRunning atomic.Int32
	release := make(chan struct{})

	s, err := New(context.Background(), "* * * * * *", func(context.Context) error {
		n := running.Add(1)
		defer running.Add(-1)
		if n > maxRunning.Load() {
			maxRunning.Store(n)
		}
		<-release
		return nil
	}, testLogger(&buf))
	require.NoError(t, err)

	s.Start()
	time.Sleep(2500 * time.Millisecond)
	close(release)
	<-s.Stop().Done()

	assert.Equal(t, int32(1), maxRunning.Load())
	assert.Contains(t, buf.String(), "skip")
}

func TestSchedulerRecoversPanics(t *testing.T) {
	var buf bytes.Buffer
	var calls atomic.Int32
	s, err := New(context.Background(), "* * * * * *", func(context.Context) error {
		calls.Add(1)
		panic("boom")
	}, testLogger(&buf))
	require.NoError(t, err)

	s.Start()
	assert.Eventually(t, func() bool { return calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	<-s.Stop().Done()

	assert.Contains(t, buf.String(), "panic")
}

func TestSchedulerHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls atomic.Int32
	s, err := New(ctx, "* * * * * *", func(context.Context) error {
		calls.Add(1)
		return nil
	}, nil)
	require.NoError(t, err)

	s.Start()
	time.Sleep(1500 * time.Millisecond)
	<-s.Stop().Done()
	assert.Zero(t, calls.Load())
}
