package dashboard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"recstatus-dashboard/internal/platform/clock"
)

// DefaultRefreshInterval is the scheduler's default period.
const DefaultRefreshInterval = 30 * time.Second

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	// Name labels log lines, e.g. "rooms".
	Name string
	// Refresh is called on every visible tick and on hidden→visible.
	Refresh func(ctx context.Context) error
	// Interval defaults to DefaultRefreshInterval.
	Interval time.Duration
	// Visibility may be nil, meaning always visible.
	Visibility *Visibility
	Clock      clock.Clock
	Logger     *slog.Logger
}

// Scheduler drives a store's periodic refresh from one ticker.
type Scheduler struct {
	name     string
	refresh  func(ctx context.Context) error
	interval time.Duration
	vis      *Visibility
	clock    clock.Clock
	log      *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler returns a stopped scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	c := cfg.Clock
	if c == nil {
		c = clock.Real()
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		name:     cfg.Name,
		refresh:  cfg.Refresh,
		interval: interval,
		vis:      cfg.Visibility,
		clock:    c,
		log:      log.With(slog.String("component", "scheduler"), slog.String("scheduler", cfg.Name)),
	}
}

// Start begins ticking. Starting a running scheduler stops the previous
// run first, so there is never more than one ticker.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()

	ctx, cancel := context.WithCancel(ctx)
	ticker := s.clock.NewTicker(s.interval)
	var (
		events      <-chan bool
		unsubscribe = func() {}
	)
	if s.vis != nil {
		events, unsubscribe = s.vis.Subscribe()
	}
	done := make(chan struct{})
	s.cancel, s.done = cancel, done

	go s.loop(ctx, ticker, events, unsubscribe, done)
	s.log.Info("auto refresh started", slog.Duration("interval", s.interval))
}

// Stop halts ticking and waits for the loop to exit. Safe to call on a
// stopped scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopLocked() {
		s.log.Info("auto refresh stopped")
	}
}

// Running reports whether the scheduler is started.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *Scheduler) stopLocked() bool {
	if s.cancel == nil {
		return false
	}
	s.cancel()
	<-s.done
	s.cancel, s.done = nil, nil
	return true
}

func (s *Scheduler) loop(ctx context.Context, ticker *clock.Ticker, events <-chan bool, unsubscribe func(), done chan struct{}) {
	defer close(done)
	defer ticker.Stop()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		case visible := <-events:
			s.visibilityChanged(ctx, visible)
		}
	}
}

// tick runs one periodic refresh unless the dashboard is hidden.
func (s *Scheduler) tick(ctx context.Context) {
	if s.vis != nil && !s.vis.Visible() {
		s.log.Debug("skipping refresh while hidden")
		return
	}
	s.run(ctx)
}

// visibilityChanged catches up once when the dashboard becomes visible. The
// ticker keeps its phase.
func (s *Scheduler) visibilityChanged(ctx context.Context, visible bool) {
	if !visible {
		return
	}
	s.log.Debug("visible again, catching up")
	s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) {
	if err := s.refresh(ctx); err != nil && ctx.Err() == nil {
		s.log.Debug("scheduled refresh failed", slog.String("error", err.Error()))
	}
}
