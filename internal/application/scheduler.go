package application

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/domain/model"
)

const (
	minWait = 1 * time.Second
	maxWait = 60 * time.Second
)

var (
	// ErrSchedulerStopped is returned when a stopped scheduler is asked to
	// run or rotate. A stopped scheduler cannot be restarted.
	ErrSchedulerStopped = errors.New("scheduler stopped")
	// ErrSchedulerRunning is returned by Run when the loop is already active.
	ErrSchedulerRunning = errors.New("scheduler already running")
)

// SchedulerState is the lifecycle state of a Scheduler.
type SchedulerState int32

const (
	StateIdle SchedulerState = iota
	StateWaiting
	StateRunning
	StateStopped
)

func (s SchedulerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaiting:
		return "waiting"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Rotator performs a single rotation attempt.
type Rotator interface {
	RotateOnce(ctx context.Context) model.RotationResult
}

// rotateRequest represents a manual rotation trigger.
type rotateRequest struct {
	done chan model.RotationResult
}

// Scheduler drives a Rotator on a ScheduleSpec. Rotations never overlap:
// scheduled and manual rotations both execute on the loop goroutine.
type Scheduler struct {
	spec    model.ScheduleSpec
	rotator Rotator
	clock   Clock
	logger  *slog.Logger

	state      atomic.Int32
	started    atomic.Bool
	nextRun    atomic.Int64 // Unix nanoseconds; 0 until Run computes it.
	lastResult atomic.Pointer[model.RotationResult]

	rotateCh chan rotateRequest
	stopped  chan struct{}
}

// NewScheduler creates an idle Scheduler.
func NewScheduler(spec model.ScheduleSpec, rotator Rotator, clock Clock, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		spec:     spec,
		rotator:  rotator,
		clock:    clock,
		logger:   logger,
		rotateCh: make(chan rotateRequest),
		stopped:  make(chan struct{}),
	}
}

// Run executes the scheduling loop until ctx is canceled. Cancellation stops
// the wait immediately but never interrupts a rotation in progress. Once Run
// returns the scheduler is stopped for good.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		if s.State() == StateStopped {
			return ErrSchedulerStopped
		}
		return ErrSchedulerRunning
	}
	defer func() {
		s.state.Store(int32(StateStopped))
		close(s.stopped)
	}()

	next := s.plan(s.clock.Now())
	s.logger.Info("scheduler started", "schedule", s.spec.String(), "next_run", next.Format(time.RFC3339))

	for {
		if ctx.Err() != nil {
			s.logger.Info("scheduler stopped")
			return nil
		}

		now := s.clock.Now()
		if !now.Before(next) {
			s.rotate(ctx, "scheduled")
			next = s.plan(s.clock.Now())
			s.logger.Info("next rotation planned", "next_run", next.Format(time.RFC3339))
			continue
		}

		s.state.Store(int32(StateWaiting))
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-s.clock.After(waitFor(next.Sub(now))):
		case req := <-s.rotateCh:
			result := s.rotate(ctx, "manual")
			next = s.plan(s.clock.Now())
			s.logger.Info("next rotation planned", "next_run", next.Format(time.RFC3339))
			req.done <- result
		}
	}
}

// RotateNow asks the running loop for an immediate rotation and waits for
// its result. It blocks until the rotation completes or ctx is canceled.
func (s *Scheduler) RotateNow(ctx context.Context) (model.RotationResult, error) {
	done := make(chan model.RotationResult, 1)

	select {
	case s.rotateCh <- rotateRequest{done: done}:
	case <-s.stopped:
		return model.RotationResult{}, ErrSchedulerStopped
	case <-ctx.Done():
		return model.RotationResult{}, ctx.Err()
	}

	select {
	case result := <-done:
		return result, nil
	case <-ctx.Done():
		return model.RotationResult{}, ctx.Err()
	}
}

// State returns the current lifecycle state.
func (s *Scheduler) State() SchedulerState {
	return SchedulerState(s.state.Load())
}

// NextRun returns the planned time of the next scheduled rotation, or the
// zero time if the loop has not started.
func (s *Scheduler) NextRun() time.Time {
	n := s.nextRun.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// LastResult returns the outcome of the most recent rotation, or nil.
func (s *Scheduler) LastResult() *model.RotationResult {
	return s.lastResult.Load()
}

// Schedule returns the timing policy the scheduler was built with.
func (s *Scheduler) Schedule() model.ScheduleSpec {
	return s.spec
}

func (s *Scheduler) plan(from time.Time) time.Time {
	next := s.spec.NextRun(from)
	s.nextRun.Store(next.UnixNano())
	return next
}

// rotate runs one attempt detached from ctx's cancellation so shutdown does
// not abort a rotation halfway through.
func (s *Scheduler) rotate(ctx context.Context, trigger string) model.RotationResult {
	s.state.Store(int32(StateRunning))
	s.logger.Info("starting rotation", "trigger", trigger)

	result := s.rotator.RotateOnce(context.WithoutCancel(ctx))
	s.lastResult.Store(&result)

	if result.OK {
		s.logger.Info("rotation completed", "trigger", trigger, "rotation_id", result.ID)
	} else {
		s.logger.Error("rotation failed, keeping schedule", "trigger", trigger, "rotation_id", result.ID, "error", result.Cause)
	}
	return result
}

// waitFor clamps the time until the next run to [minWait, maxWait] so the
// loop re-checks the clock at least once a minute.
func waitFor(d time.Duration) time.Duration {
	return min(maxWait, max(minWait, d))
}
