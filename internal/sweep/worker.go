// Package sweep runs the periodic reminder and no-show sweeps.
package sweep

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper is implemented by *appointments.Service.
type Sweeper interface {
	SweepReminders(ctx context.Context, now time.Time) (int, error)
	SweepNoShows(ctx context.Context, now time.Time) (int, error)
}

type Worker struct {
	sweeper  Sweeper
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
}

type WorkerConfig struct {
	Interval time.Duration
}

func NewWorker(sweeper Sweeper, logger *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		sweeper:  sweeper,
		logger:   logger.With("component", "sweep"),
		interval: cfg.Interval,
		now:      time.Now,
	}
}

// Run sweeps once immediately and then on every tick until ctx is cancelled.
// Killing it at any point is safe: claimed reminders are already flagged.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs one reminder sweep and one no-show sweep. Failures are logged; one
// sweep failing does not skip the other.
func (w *Worker) RunOnce(ctx context.Context) Result {
	now := w.now().UTC()
	var res Result

	reminders, err := w.sweeper.SweepReminders(ctx, now)
	if err != nil {
		w.logger.Error("reminder sweep failed", "err", err)
		res.Err = err
	}
	res.Reminders = reminders

	noShows, err := w.sweeper.SweepNoShows(ctx, now)
	if err != nil {
		w.logger.Error("no-show sweep failed", "err", err)
		if res.Err == nil {
			res.Err = err
		}
	}
	res.NoShows = noShows

	w.logger.Debug("sweep finished", "reminders", res.Reminders, "no_shows", res.NoShows)
	return res
}

type Result struct {
	Reminders int
	NoShows   int
	Err       error
}
