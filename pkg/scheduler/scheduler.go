// Package scheduler rate-limits outbound pose commands and bounds the
// number of concurrent in-flight sends.
//
// Callers never block and never see an error: a command that cannot be
// dispatched right now lands in a single pending slot, overwriting
// whatever was there. Latest value wins; superseded commands are dropped,
// not queued, so the robot never executes a stale backlog.
package scheduler

import (
	"sync"
	"time"

	"github.com/robokit/go-teleop/pkg/pose"
)

// Sender delivers one command downstream. Implementations must call done
// exactly once when the attempt finishes, whether it succeeded or not.
// Send must not block the caller for the duration of delivery.
type Sender interface {
	Send(cmd pose.Command, done func())
}

// Config holds the per-session throttle settings.
type Config struct {
	// ThrottleInterval is the minimum time between two dispatches.
	// Shorter for a wired link, longer for WiFi.
	ThrottleInterval time.Duration
	// InFlightCap bounds concurrent outstanding sends.
	InFlightCap int
}

// Defaults applied when a Config field is zero.
const (
	DefaultThrottleInterval = 50 * time.Millisecond
	DefaultInFlightCap      = 4
)

// Scheduler owns the throttle state for one control session.
type Scheduler struct {
	sender Sender
	cfg    Config

	// Test seams. Production uses the real clock.
	now       func() time.Time
	afterFunc func(d time.Duration, f func()) *time.Timer

	mu         sync.Mutex
	gen        uint64 // bumped on Reset; stale completions no-op
	lastSend   time.Time
	hasSent    bool
	inFlight   int
	pending    *pose.Command // at most one; overwritten, never queued
	drainTimer *time.Timer

	dispatched  uint64
	overwritten uint64
}

// New creates a scheduler dispatching through sender.
func New(sender Sender, cfg Config) *Scheduler {
	if cfg.ThrottleInterval <= 0 {
		cfg.ThrottleInterval = DefaultThrottleInterval
	}
	if cfg.InFlightCap <= 0 {
		cfg.InFlightCap = DefaultInFlightCap
	}
	return &Scheduler{
		sender:    sender,
		cfg:       cfg,
		now:       time.Now,
		afterFunc: time.AfterFunc,
	}
}

// Send dispatches cmd if the throttle interval has elapsed and the
// in-flight cap permits; otherwise cmd overwrites the pending slot.
func (s *Scheduler) Send(cmd pose.Command) {
	s.submit(cmd, false)
}

// ForceSend bypasses the throttle interval but still respects the
// in-flight cap. Used for commit events (e.g. releasing a drag).
func (s *Scheduler) ForceSend(cmd pose.Command) {
	s.submit(cmd, true)
}

func (s *Scheduler) submit(cmd pose.Command, force bool) {
	s.mu.Lock()
	now := s.now()
	if s.inFlight >= s.cfg.InFlightCap || (!force && !s.throttleOpenLocked(now)) {
		if s.pending != nil {
			s.overwritten++
		}
		c := cmd
		s.pending = &c
		if s.inFlight < s.cfg.InFlightCap {
			// Parked on the throttle alone: arm a timer so the final
			// command still goes out when no completion follows.
			s.armDrainLocked(now)
		}
		s.mu.Unlock()
		return
	}
	cmd.Stamp = now
	done := s.dispatchLocked(now)
	s.mu.Unlock()
	s.sender.Send(cmd, done)
}

// throttleOpenLocked reports whether the minimum interval since the last
// dispatch has elapsed.
func (s *Scheduler) throttleOpenLocked(now time.Time) bool {
	return !s.hasSent || now.Sub(s.lastSend) >= s.cfg.ThrottleInterval
}

// dispatchLocked records a dispatch and returns its completion callback.
func (s *Scheduler) dispatchLocked(now time.Time) func() {
	s.inFlight++
	s.lastSend = now
	s.hasSent = true
	s.dispatched++
	gen := s.gen
	var once sync.Once
	return func() {
		once.Do(func() { s.complete(gen) })
	}
}

// complete runs when a dispatch finishes, successfully or not. Both are
// treated identically: decrement in-flight, then drain the pending slot
// if throttle and cap now permit. A parked command that the throttle
// still blocks gets a drain timer, so it is never stranded when no
// further sends or completions follow.
func (s *Scheduler) complete(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.inFlight--
	now := s.now()
	cmd, done, ok := s.takePendingLocked(now)
	if !ok && s.pending != nil && s.inFlight < s.cfg.InFlightCap {
		s.armDrainLocked(now)
	}
	s.mu.Unlock()
	if ok {
		s.sender.Send(cmd, done)
	}
}

// takePendingLocked pops and dispatches the pending command if allowed.
func (s *Scheduler) takePendingLocked(now time.Time) (pose.Command, func(), bool) {
	if s.pending == nil || s.inFlight >= s.cfg.InFlightCap || !s.throttleOpenLocked(now) {
		return pose.Command{}, nil, false
	}
	cmd := *s.pending
	s.pending = nil
	cmd.Stamp = now
	return cmd, s.dispatchLocked(now), true
}

// armDrainLocked schedules a one-shot drain of the pending slot once the
// throttle window reopens.
func (s *Scheduler) armDrainLocked(now time.Time) {
	if s.drainTimer != nil {
		return
	}
	delay := s.cfg.ThrottleInterval - now.Sub(s.lastSend)
	if delay < 0 {
		delay = 0
	}
	gen := s.gen
	s.drainTimer = s.afterFunc(delay, func() { s.drain(gen) })
}

func (s *Scheduler) drain(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.drainTimer = nil
	now := s.now()
	cmd, done, ok := s.takePendingLocked(now)
	if !ok && s.pending != nil && s.inFlight < s.cfg.InFlightCap {
		s.armDrainLocked(now)
	}
	s.mu.Unlock()
	if ok {
		s.sender.Send(cmd, done)
	}
}

// Reset clears the pending slot and counters. Completions of already
// dispatched sends become no-ops. Used on session teardown or when the
// connection mode switches.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.pending = nil
	s.inFlight = 0
	s.hasSent = false
	s.lastSend = time.Time{}
	if s.drainTimer != nil {
		s.drainTimer.Stop()
		s.drainTimer = nil
	}
}

// InFlight returns the number of outstanding sends.
func (s *Scheduler) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// HasPending reports whether a command is parked in the pending slot.
func (s *Scheduler) HasPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// Dispatched returns the total number of dispatched commands.
func (s *Scheduler) Dispatched() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dispatched
}

// Overwritten returns how many parked commands were superseded before
// they could be dispatched.
func (s *Scheduler) Overwritten() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overwritten
}
