package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/robokit/go-teleop/pkg/pose"
)

// fakeSender records dispatched commands and their completion callbacks.
type fakeSender struct {
	mu    sync.Mutex
	sent  []pose.Command
	dones []func()
}

func (f *fakeSender) Send(cmd pose.Command, done func()) {
	f.mu.Lock()
	f.sent = append(f.sent, cmd)
	f.dones = append(f.dones, done)
	f.mu.Unlock()
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeSender) yaws() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]float64, len(f.sent))
	for i, c := range f.sent {
		out[i] = c.Pose.BodyYaw
	}
	return out
}

func (f *fakeSender) completeAll() {
	f.mu.Lock()
	dones := f.dones
	f.dones = nil
	f.mu.Unlock()
	for _, d := range dones {
		d()
	}
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// fakeTimers captures drain callbacks for manual firing.
type fakeTimers struct {
	mu        sync.Mutex
	callbacks []func()
}

func (ft *fakeTimers) afterFunc(d time.Duration, f func()) *time.Timer {
	ft.mu.Lock()
	ft.callbacks = append(ft.callbacks, f)
	ft.mu.Unlock()
	return time.NewTimer(time.Hour)
}

func (ft *fakeTimers) fireAll() {
	ft.mu.Lock()
	cbs := ft.callbacks
	ft.callbacks = nil
	ft.mu.Unlock()
	for _, f := range cbs {
		f()
	}
}

func newTestScheduler(cfg Config) (*Scheduler, *fakeSender, *fakeClock, *fakeTimers) {
	sender := &fakeSender{}
	clock := &fakeClock{t: time.Unix(1000, 0)}
	timers := &fakeTimers{}
	s := New(sender, cfg)
	s.now = clock.Now
	s.afterFunc = timers.afterFunc
	return s, sender, clock, timers
}

func cmdYaw(yaw float64) pose.Command {
	return pose.Command{Pose: pose.Pose{BodyYaw: yaw}}
}

func TestScheduler_FirstSendImmediate(t *testing.T) {
	s, sender, _, _ := newTestScheduler(Config{ThrottleInterval: 16 * time.Millisecond, InFlightCap: 4})

	s.Send(cmdYaw(0.1))

	if sender.count() != 1 {
		t.Fatalf("sends: got %d, want 1", sender.count())
	}
	if s.InFlight() != 1 {
		t.Errorf("inFlight: got %d, want 1", s.InFlight())
	}
}

func TestScheduler_LatestValueWins(t *testing.T) {
	s, sender, clock, timers := newTestScheduler(Config{ThrottleInterval: 16 * time.Millisecond, InFlightCap: 4})

	// Consume the throttle window.
	s.Send(cmdYaw(0.0))
	sender.completeAll()

	// Two sends inside the closed window: both park, the second overwrites.
	clock.Advance(2 * time.Millisecond)
	s.Send(cmdYaw(1.0))
	clock.Advance(5 * time.Millisecond)
	s.Send(cmdYaw(2.0))

	if sender.count() != 1 {
		t.Fatalf("sends before window reopens: got %d, want 1", sender.count())
	}
	if !s.HasPending() {
		t.Fatal("expected a pending command")
	}

	// Window reopens; the drain dispatches exactly the last command.
	clock.Advance(20 * time.Millisecond)
	timers.fireAll()

	yaws := sender.yaws()
	if len(yaws) != 2 || yaws[1] != 2.0 {
		t.Fatalf("dispatched yaws: got %v, want [0 2]", yaws)
	}
	if s.HasPending() {
		t.Error("pending slot not cleared after drain")
	}
	if got := s.Overwritten(); got != 1 {
		t.Errorf("overwritten: got %d, want 1", got)
	}
}

func TestScheduler_CapParkedCommandDrainsAfterThrottle(t *testing.T) {
	s, sender, clock, timers := newTestScheduler(Config{ThrottleInterval: 50 * time.Millisecond, InFlightCap: 1})

	s.Send(cmdYaw(1.0))
	s.Send(cmdYaw(2.0)) // cap reached, parks without a timer

	// The completion frees the cap while the throttle window is still
	// closed. With no further sends or completions coming, the parked
	// command must drain on its own once the window reopens.
	clock.Advance(time.Millisecond)
	sender.completeAll()
	if sender.count() != 1 {
		t.Fatalf("sends while throttled: got %d, want 1", sender.count())
	}

	clock.Advance(time.Hour)
	timers.fireAll()

	yaws := sender.yaws()
	if len(yaws) != 2 || yaws[1] != 2.0 {
		t.Fatalf("dispatched yaws: got %v, want [1 2]", yaws)
	}
	if s.HasPending() {
		t.Error("final command stranded in the pending slot")
	}
}

func TestScheduler_RateBound(t *testing.T) {
	const interval = 16 * time.Millisecond
	s, sender, clock, _ := newTestScheduler(Config{ThrottleInterval: interval, InFlightCap: 100})

	// Burst of sends every millisecond over 160ms.
	const duration = 160 * time.Millisecond
	for i := 0; i < 160; i++ {
		s.Send(cmdYaw(float64(i)))
		clock.Advance(time.Millisecond)
	}

	limit := int(duration/interval) + 1
	if sender.count() > limit {
		t.Errorf("dispatched %d commands over %v, throttle allows at most %d", sender.count(), duration, limit)
	}
}

func TestScheduler_InFlightCap(t *testing.T) {
	s, sender, clock, _ := newTestScheduler(Config{ThrottleInterval: time.Millisecond, InFlightCap: 2})

	for i := 0; i < 10; i++ {
		clock.Advance(5 * time.Millisecond)
		s.ForceSend(cmdYaw(float64(i)))
		if got := s.InFlight(); got > 2 {
			t.Fatalf("inFlight %d exceeds cap 2", got)
		}
	}
	if sender.count() != 2 {
		t.Errorf("sends: got %d, want 2 (cap blocks the rest)", sender.count())
	}
	if !s.HasPending() {
		t.Error("expected overflow command parked in pending slot")
	}
}

func TestScheduler_ForceSendBypassesThrottle(t *testing.T) {
	s, sender, clock, _ := newTestScheduler(Config{ThrottleInterval: time.Hour, InFlightCap: 4})

	s.Send(cmdYaw(0.1))
	clock.Advance(time.Millisecond)
	s.ForceSend(cmdYaw(0.2))

	if sender.count() != 2 {
		t.Fatalf("sends: got %d, want 2 (forceSend ignores the interval)", sender.count())
	}
}

func TestScheduler_CompletionDrainsPending(t *testing.T) {
	s, sender, clock, _ := newTestScheduler(Config{ThrottleInterval: 16 * time.Millisecond, InFlightCap: 1})

	s.Send(cmdYaw(1.0))
	clock.Advance(20 * time.Millisecond)
	s.Send(cmdYaw(2.0)) // cap reached, parks

	if sender.count() != 1 {
		t.Fatalf("sends: got %d, want 1", sender.count())
	}

	clock.Advance(20 * time.Millisecond)
	sender.completeAll()

	yaws := sender.yaws()
	if len(yaws) != 2 || yaws[1] != 2.0 {
		t.Fatalf("dispatched yaws: got %v, want [1 2]", yaws)
	}
	if s.InFlight() != 1 {
		t.Errorf("inFlight: got %d, want 1 (drained command outstanding)", s.InFlight())
	}
}

func TestScheduler_CompletionCountsDown(t *testing.T) {
	s, sender, clock, _ := newTestScheduler(Config{ThrottleInterval: time.Millisecond, InFlightCap: 4})

	// Scenario: three sends in distinct windows, then all complete.
	for i := 0; i < 3; i++ {
		s.Send(cmdYaw(float64(i)))
		clock.Advance(5 * time.Millisecond)
	}
	if s.InFlight() != 3 {
		t.Fatalf("inFlight: got %d, want 3", s.InFlight())
	}

	sender.completeAll()
	if s.InFlight() != 0 {
		t.Errorf("inFlight after completions: got %d, want 0", s.InFlight())
	}
}

func TestScheduler_DoneIdempotent(t *testing.T) {
	s, sender, _, _ := newTestScheduler(Config{ThrottleInterval: time.Millisecond, InFlightCap: 4})

	s.Send(cmdYaw(0.1))
	sender.mu.Lock()
	done := sender.dones[0]
	sender.mu.Unlock()

	done()
	done() // second call must not drive the counter negative

	if s.InFlight() != 0 {
		t.Errorf("inFlight: got %d, want 0", s.InFlight())
	}
}

func TestScheduler_ResetClearsStateAndGuardsStaleCompletions(t *testing.T) {
	s, sender, clock, _ := newTestScheduler(Config{ThrottleInterval: 16 * time.Millisecond, InFlightCap: 1})

	s.Send(cmdYaw(1.0))
	clock.Advance(time.Millisecond)
	s.Send(cmdYaw(2.0)) // parks

	s.Reset()

	if s.InFlight() != 0 || s.HasPending() {
		t.Fatalf("after reset: inFlight=%d hasPending=%v, want 0/false", s.InFlight(), s.HasPending())
	}

	// Completion of the pre-reset dispatch must not mutate the new session.
	sender.completeAll()
	if s.InFlight() != 0 {
		t.Errorf("stale completion mutated inFlight: got %d", s.InFlight())
	}
	if sender.count() != 1 {
		t.Errorf("stale completion dispatched a command: sends %d", sender.count())
	}
}
