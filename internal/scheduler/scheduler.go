package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrCycleInFlight is returned by RunNow when a cycle is already running.
var ErrCycleInFlight = errors.New("scheduler: a cycle is already in flight")

// CycleFunc is one pipeline run. It returns the number of follow-ups
// completed.
type CycleFunc func(ctx context.Context) (int, error)

// CycleResult records the outcome of the most recent cycle.
type CycleResult struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Completed  int       `json:"completed"`
	Error      string    `json:"error,omitempty"`
}

// Status is the scheduler health read.
type Status struct {
	Running     bool         `json:"running"`
	NextRunTime time.Time    `json:"next_run_time"`
	LastResult  *CycleResult `json:"last_result,omitempty"`
}

type Config struct {
	Interval     time.Duration
	RunOnStart   bool
	MisfireGrace time.Duration
}

// Scheduler drives the pipeline on a fixed interval. At most one cycle is
// in flight at any time: a tick that lands while a cycle is running is
// skipped, not queued. A failed or panicking cycle is logged and the
// ticker keeps going.
type Scheduler struct {
	cfg   Config
	run   CycleFunc
	clock func() time.Time

	mu         sync.Mutex
	started    bool
	inFlight   bool
	nextRun    time.Time
	lastResult *CycleResult

	stopCh chan struct{}
	wg     sync.WaitGroup
	log    *logrus.Entry
}

func New(cfg Config, run CycleFunc) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	return &Scheduler{
		cfg:   cfg,
		run:   run,
		clock: time.Now,
		log:   logrus.WithField("component", "scheduler"),
	}
}

// WithClock injects the time source; used by tests.
func (s *Scheduler) WithClock(clock func() time.Time) *Scheduler {
	s.clock = clock
	return s
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.stopCh = make(chan struct{})
	s.nextRun = s.clock().Add(s.cfg.Interval)
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		s.log.Infof("scheduler started with interval %v", s.cfg.Interval)

		if s.cfg.RunOnStart {
			s.tryRun(false)
		}

		for {
			select {
			case <-ticker.C:
				s.tryRun(true)
			case <-s.stopCh:
				s.log.Info("scheduler stopping...")
				return
			}
		}
	}()
}

// Stop shuts the ticker down and waits for an in-flight cycle to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

// RunNow triggers one cycle synchronously (the manual "force-run"
// surface). It respects the overlap guard.
func (s *Scheduler) RunNow(ctx context.Context) (int, error) {
	if !s.begin(false) {
		return 0, ErrCycleInFlight
	}
	result := s.runCycle(ctx)
	if result.Error != "" {
		return result.Completed, errors.New(result.Error)
	}
	return result.Completed, nil
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Running:     s.inFlight,
		NextRunTime: s.nextRun,
		LastResult:  s.lastResult,
	}
}

// begin acquires the in-flight slot. Ticks advance the next-run time and
// honor the misfire grace window even when the slot is busy.
func (s *Scheduler) begin(fromTick bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	if fromTick {
		lateness := now.Sub(s.nextRun)
		s.nextRun = now.Add(s.cfg.Interval)
		if s.cfg.MisfireGrace > 0 && lateness > s.cfg.MisfireGrace {
			s.log.Warnf("tick fired %v late, past the misfire grace of %v, skipping cycle", lateness, s.cfg.MisfireGrace)
			return false
		}
	}
	if s.inFlight {
		if fromTick {
			s.log.Warn("previous cycle still running, skipping tick")
		}
		return false
	}
	s.inFlight = true
	return true
}

func (s *Scheduler) tryRun(fromTick bool) {
	if !s.begin(fromTick) {
		return
	}
	s.runCycle(context.Background())
}

// runCycle executes one pipeline run. The caller must hold the in-flight
// slot via begin. Panics and errors are recorded and swallowed; a single
// bad cycle must never kill the trigger.
func (s *Scheduler) runCycle(ctx context.Context) (result *CycleResult) {
	result = &CycleResult{StartedAt: s.clock()}
	defer func() {
		if r := recover(); r != nil {
			result.Error = fmt.Sprintf("cycle panicked: %v", r)
			s.log.Error(result.Error)
		}
		result.FinishedAt = s.clock()

		s.mu.Lock()
		s.inFlight = false
		s.lastResult = result
		s.mu.Unlock()
	}()

	completed, err := s.run(ctx)
	result.Completed = completed
	if err != nil {
		result.Error = err.Error()
		s.log.Errorf("cycle failed: %v", err)
	}
	return result
}
