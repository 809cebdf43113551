package checkpoint

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// SchedulerState is the lifecycle state of a Scheduler.
type SchedulerState int32

const (
	StateCreated SchedulerState = iota
	StateRunning
	StateStopped
)

func (s SchedulerState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("SchedulerState(%d)", int32(s))
	}
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithLogger sets the scheduler logger. The store logger is used otherwise.
func WithLogger(l *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithOnCycle registers a hook called after every save cycle, including the
// initial one run by NewScheduler.
func WithOnCycle(fn func(*SaveReport, error)) SchedulerOption {
	return func(s *Scheduler) {
		s.onCycle = fn
	}
}

// WithCycleTimeout bounds each save cycle. Zero means no bound.
func WithCycleTimeout(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		s.cycleTimeout = d
	}
}

// Scheduler saves every component of a Store periodically on one background
// goroutine. The next cycle is scheduled only after the previous one
// finishes, so cycles never overlap.
type Scheduler struct {
	store        *Store
	period       time.Duration
	cycleTimeout time.Duration
	onCycle      func(*SaveReport, error)
	logger       *slog.Logger

	mu     sync.Mutex
	state  SchedulerState
	cancel context.CancelFunc
	doneCh chan struct{}
}

// NewScheduler runs one full save and returns a scheduler in the Created
// state. Any failure of that first save is returned.
func NewScheduler(store *Store, period time.Duration, opts ...SchedulerOption) (*Scheduler, error) {
	if store == nil {
		return nil, fmt.Errorf("checkpoint: nil store")
	}
	if period <= 0 {
		return nil, ErrInvalidPeriod
	}

	s := &Scheduler{
		store:  store,
		period: period,
		logger: store.logger,
		state:  StateCreated,
	}
	for _, opt := range opts {
		opt(s)
	}

	if _, err := s.runCycle(context.Background()); err != nil {
		return nil, fmt.Errorf("checkpoint: initial save: %w", err)
	}
	return s, nil
}

// Start launches the background loop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateCreated {
		return fmt.Errorf("%w: start from %s", ErrSchedulerState, s.state)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.doneCh = make(chan struct{})
	s.state = StateRunning

	go s.loop(ctx)

	s.logger.Info("checkpoint scheduler started", "period", s.period)
	return nil
}

// Stop ends the background loop and waits for it to exit. A cycle that is
// already running completes first. Stop may be called more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	switch s.state {
	case StateCreated:
		s.state = StateStopped
		s.mu.Unlock()
		return
	case StateStopped:
		done := s.doneCh
		s.mu.Unlock()
		if done != nil {
			<-done
		}
		return
	}
	s.state = StateStopped
	s.cancel()
	done := s.doneCh
	s.mu.Unlock()

	<-done
	s.logger.Info("checkpoint scheduler stopped")
}

// State returns the current lifecycle state.
func (s *Scheduler) State() SchedulerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.doneCh)

	timer := time.NewTimer(s.period)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		// Stop must not interrupt a cycle half way through a component.
		s.runCycle(context.WithoutCancel(ctx))

		if ctx.Err() != nil {
			return
		}
		timer.Reset(s.period)
	}
}

func (s *Scheduler) runCycle(ctx context.Context) (*SaveReport, error) {
	if s.cycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cycleTimeout)
		defer cancel()
	}

	report, err := s.store.SaveAll(ctx)
	if err != nil {
		s.logger.Warn("checkpoint cycle failed",
			"cycle_id", report.CycleID,
			"failed", report.Failed(),
			"error", err)
	}
	s.notify(report, err)
	return report, err
}

func (s *Scheduler) notify(report *SaveReport, err error) {
	if s.onCycle == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("checkpoint cycle hook panicked", "panic", r)
		}
	}()
	s.onCycle(report, err)
}
