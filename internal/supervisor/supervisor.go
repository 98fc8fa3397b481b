// Package supervisor runs one long-lived goroutine per channel monitor and
// restarts it in place on crash, without tearing down its siblings. It
// generalizes the donor's internal/scheduler.Runner worker-pool pattern
// (fixed worker goroutines, context-cancellable, wg.Wait on Stop) from
// polling-for-jobs to owning-a-channel-shard.
//
// A sync.WaitGroup plus manual panic recovery is used in place of
// golang.org/x/sync/errgroup: errgroup cancels every goroutine in the
// group on the first error, but one channel monitor crashing must not
// take down its siblings.
package supervisor

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Monitor is one unit of supervised work — typically a per-channel probe
// loop. Run should block until ctx is cancelled or a fatal error occurs;
// returning (including via panic) causes the supervisor to restart it
// after the configured health-check interval.
type Monitor interface {
	ID() string
	Run(ctx context.Context) error
}

// Supervisor owns a group of Monitors, each running in its own goroutine,
// restarting any that exit or panic.
type Supervisor struct {
	logger         *slog.Logger
	healthInterval time.Duration
	monitors       []Monitor

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New returns a Supervisor over monitors, restarting a crashed monitor
// after healthInterval (default 30s per spec.md §4.J).
func New(monitors []Monitor, healthInterval time.Duration, logger *slog.Logger) *Supervisor {
	if healthInterval <= 0 {
		healthInterval = 30 * time.Second
	}
	return &Supervisor{
		logger:         logger,
		healthInterval: healthInterval,
		monitors:       monitors,
	}
}

// Run starts every monitor and blocks until ctx is cancelled, then waits
// for all monitor goroutines to exit.
func (s *Supervisor) Run(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	runCtx := s.ctx
	s.mu.Unlock()

	for _, m := range s.monitors {
		s.wg.Add(1)
		go s.supervise(runCtx, m)
	}

	<-runCtx.Done()
	s.wg.Wait()
}

// Stop cancels every monitor and waits for them to exit.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// supervise runs m, recovering panics and restarting it in place every
// healthInterval until ctx is cancelled.
func (s *Supervisor) supervise(ctx context.Context, m Monitor) {
	defer s.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		s.runOnce(ctx, m)

		if ctx.Err() != nil {
			return
		}

		s.logger.Warn("monitor exited, restarting",
			slog.String("monitor_id", m.ID()),
			slog.Duration("delay", s.healthInterval))

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.healthInterval):
		}
	}
}

// runOnce runs m.Run once, converting a panic into a logged error so the
// supervisor loop can decide to restart it.
func (s *Supervisor) runOnce(ctx context.Context, m Monitor) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("monitor panicked",
				slog.String("monitor_id", m.ID()),
				slog.Any("panic", r))
		}
	}()

	if err := m.Run(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("monitor returned error",
			slog.String("monitor_id", m.ID()),
			slog.Any("error", err))
	}
}
