package sweep

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

type fakeSweeper struct {
	remindersFn func(ctx context.Context, now time.Time) (int, error)
	noShowsFn   func(ctx context.Context, now time.Time) (int, error)
}

func (f *fakeSweeper) SweepReminders(ctx context.Context, now time.Time) (int, error) {
	if f.remindersFn == nil {
		panic("SweepReminders not configured")
	}
	return f.remindersFn(ctx, now)
}

func (f *fakeSweeper) SweepNoShows(ctx context.Context, now time.Time) (int, error) {
	if f.noShowsFn == nil {
		panic("SweepNoShows not configured")
	}
	return f.noShowsFn(ctx, now)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunOnce_ReminderFailureStillSweepsNoShows(t *testing.T) {
	boom := errors.New("boom")
	fixed := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	var sawNow time.Time

	w := NewWorker(&fakeSweeper{
		remindersFn: func(ctx context.Context, now time.Time) (int, error) { return 0, boom },
		noShowsFn: func(ctx context.Context, now time.Time) (int, error) {
			sawNow = now
			return 2, nil
		},
	}, discardLogger(), WorkerConfig{})
	w.now = func() time.Time { return fixed }

	res := w.RunOnce(context.Background())
	if !errors.Is(res.Err, boom) {
		t.Fatalf("err = %v, want %v", res.Err, boom)
	}
	if res.NoShows != 2 {
		t.Fatalf("no-shows = %d, want 2", res.NoShows)
	}
	if !sawNow.Equal(fixed) {
		t.Fatalf("now = %v, want %v", sawNow, fixed)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	var runs atomic.Int32
	w := NewWorker(&fakeSweeper{
		remindersFn: func(ctx context.Context, now time.Time) (int, error) {
			runs.Add(1)
			return 0, nil
		},
		noShowsFn: func(ctx context.Context, now time.Time) (int, error) { return 0, nil },
	}, discardLogger(), WorkerConfig{Interval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for runs.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d sweeps ran", runs.Load())
		case <-time.After(time.Millisecond):
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}
