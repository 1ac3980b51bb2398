package core

import (
	"context"
	"errors"
	"time"
)

// ErrSchedulerStopped is returned when starting a scheduler that was stopped.
var ErrSchedulerStopped = errors.New("scheduler: stopped")

type SchedulerState int

const (
	SchedulerIdle SchedulerState = iota
	SchedulerRunning
	SchedulerStopped
)

func (s SchedulerState) String() string {
	switch s {
	case SchedulerIdle:
		return "idle"
	case SchedulerRunning:
		return "running"
	case SchedulerStopped:
		return "stopped"
	}
	return "unknown"
}

// FrameContext is the per-tick frame state handed to the tick function.
type FrameContext struct {
	Frame         uint64        // index of this tick, starting at 0
	Elapsed       time.Duration // wall time since Start
	Width, Height int           // viewport resolution in device pixels
}

// TickFunc runs one tick. A non-nil error stops the scheduler.
type TickFunc func(fc FrameContext) error

// FrameScheduler requests one frame callback at a time and runs a tick in
// each, rescheduling after the tick completes.
type FrameScheduler struct {
	frames  FrameSource
	tick    TickFunc
	OnError func(error)

	state   SchedulerState
	ctx     context.Context
	cancel  context.CancelFunc
	pending FrameID
	hasPend bool

	fc      FrameContext
	started time.Time
	resW    int
	resH    int
	ticks   uint64
	err     error
}

func NewFrameScheduler(frames FrameSource, tick TickFunc) *FrameScheduler {
	return &FrameScheduler{frames: frames, tick: tick}
}

func (s *FrameScheduler) State() SchedulerState { return s.state }

// Ticks reports how many ticks completed.
func (s *FrameScheduler) Ticks() uint64 { return s.ticks }

// Err returns the error that stopped the scheduler, if any.
func (s *FrameScheduler) Err() error { return s.err }

// SetResolution records the viewport size; it takes effect at the next tick.
func (s *FrameScheduler) SetResolution(w, h int) { s.resW, s.resH = w, h }

// Start moves Idle to Running and requests the first tick. Start on a
// running scheduler does nothing.
func (s *FrameScheduler) Start() error {
	switch s.state {
	case SchedulerRunning:
		return nil
	case SchedulerStopped:
		return ErrSchedulerStopped
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.state = SchedulerRunning
	s.started = time.Now()
	s.request()
	return nil
}

// Stop cancels the pending tick. No tick runs after Stop returns.
func (s *FrameScheduler) Stop() {
	if s.state == SchedulerStopped {
		return
	}
	s.state = SchedulerStopped
	if s.cancel != nil {
		s.cancel()
	}
	if s.hasPend {
		s.frames.CancelFrame(s.pending)
		s.hasPend = false
	}
}

func (s *FrameScheduler) request() {
	ctx := s.ctx
	s.pending = s.frames.RequestFrame(func(now time.Time) { s.run(ctx, now) })
	s.hasPend = true
}

func (s *FrameScheduler) run(ctx context.Context, now time.Time) {
	if ctx.Err() != nil || s.state != SchedulerRunning {
		return
	}
	s.hasPend = false

	s.fc.Frame = s.ticks
	s.fc.Elapsed = now.Sub(s.started)
	s.fc.Width, s.fc.Height = s.resW, s.resH

	if err := s.tick(s.fc); err != nil {
		s.err = err
		s.Stop()
		if s.OnError != nil {
			s.OnError(err)
		}
		return
	}
	s.ticks++

	// the tick itself may have stopped us
	if ctx.Err() == nil && s.state == SchedulerRunning {
		s.request()
	}
}
