package inbound

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shandysiswandi/onetime/internal/pkg/config"
	"github.com/shandysiswandi/onetime/internal/pkg/goroutine"
	"go.uber.org/atomic"
)

const defaultSweepSchedule = "@every 1m"

type sweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// Sweeper runs the expiry sweep on a cron schedule. A tick that fires while the
// previous run is still going is skipped.
type Sweeper struct {
	cron    *cron.Cron
	uc      sweeper
	routine *goroutine.Manager
	timeout time.Duration

	running atomic.Bool
	runs    atomic.Int64
	skipped atomic.Int64
	failed  atomic.Int64
	swept   atomic.Int64
}

// RegisterCronJob schedules the sweep on modules.otp.sweep.schedule. Each run
// is started on routine with ctx, so cancelling ctx interrupts a run in
// progress and Wait on the manager waits for it.
func RegisterCronJob(ctx context.Context, cfg config.Config, routine *goroutine.Manager, uc sweeper) (*Sweeper, error) {
	schedule := cfg.GetString("modules.otp.sweep.schedule")
	if schedule == "" {
		schedule = defaultSweepSchedule
	}

	timeout := cfg.GetSecond("modules.otp.sweep.timeout_seconds")
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	s := &Sweeper{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		uc:      uc,
		routine: routine,
		timeout: timeout,
	}

	if _, err := s.cron.AddFunc(schedule, func() { s.trigger(ctx) }); err != nil {
		return nil, err
	}

	s.cron.Start()
	slog.InfoContext(ctx, "otp sweep scheduled", "schedule", schedule, "timeout", timeout.String())

	return s, nil
}

func (s *Sweeper) trigger(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.skipped.Inc()
		slog.WarnContext(ctx, "otp sweep still running, tick skipped")
		return
	}

	s.routine.Go(ctx, func(pCtx context.Context) error {
		defer s.running.Store(false)
		s.Run(pCtx)
		return nil
	})
}

// Run performs one sweep and records the outcome.
func (s *Sweeper) Run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.runs.Inc()
	n, err := s.uc.SweepExpired(ctx)
	s.swept.Add(n)
	if err != nil {
		s.failed.Inc()
		slog.ErrorContext(ctx, "failed to sweep expired codes", "swept", n, "error", err)
	}
}

// Stop halts the schedule. The returned context is done once a run started by
// the scheduler itself has returned.
func (s *Sweeper) Stop() context.Context {
	return s.cron.Stop()
}

type SweeperStats struct {
	Runs    int64
	Skipped int64
	Failed  int64
	Swept   int64
}

func (s *Sweeper) Stats() SweeperStats {
	return SweeperStats{
		Runs:    s.runs.Load(),
		Skipped: s.skipped.Load(),
		Failed:  s.failed.Load(),
		Swept:   s.swept.Load(),
	}
}
