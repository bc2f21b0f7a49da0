// Package teleop wires input events to the smoothing engine and drives
// the per-tick pipeline into the command scheduler. One Session owns one
// control loop; nothing is shared across sessions.
package teleop

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/robokit/go-teleop/internal/log"
	"github.com/robokit/go-teleop/pkg/pose"
	"github.com/robokit/go-teleop/pkg/smoothing"
	"github.com/robokit/go-teleop/pkg/transport"
)

// Mode classifies an input event.
type Mode int

const (
	// Continuous marks an in-progress drag: updates flow through the
	// smoothing engine and the throttled scheduler.
	Continuous Mode = iota
	// Commit marks a deliberate placement (click-to-set, drag release):
	// the merged target is force-sent immediately.
	Commit
)

func (m Mode) String() string {
	if m == Commit {
		return "commit"
	}
	return "continuous"
}

// ParseMode converts a string to a Mode, defaulting to Continuous.
func ParseMode(s string) Mode {
	if strings.EqualFold(s, "commit") {
		return Commit
	}
	return Continuous
}

// CommandScheduler is the session's view of the adaptive scheduler.
type CommandScheduler interface {
	Send(cmd pose.Command)
	ForceSend(cmd pose.Command)
	Reset()
	InFlight() int
	HasPending() bool
}

// Link is the session's view of the transport channel.
type Link interface {
	Connect()
	Disconnect()
	IsConnected() bool
	State() transport.State
}

// Config holds per-session loop settings.
type Config struct {
	TickRate  time.Duration // display-refresh tick, default 60/s
	Epsilon   float64       // convergence threshold (sum of axis gaps)
	Smoothing smoothing.Config
	LinkMode  string // for diagnostics only
}

// Defaults applied when a Config field is zero.
const (
	DefaultTickRate = time.Second / 60
	DefaultEpsilon  = 1e-3
)

// Diagnostics is the observable session state.
type Diagnostics struct {
	SessionID   string `json:"session_id"`
	IsConnected bool   `json:"is_connected"`
	InFlight    int    `json:"in_flight"`
	HasPending  bool   `json:"has_pending"`
	Mode        string `json:"mode"`
	Stream      string `json:"stream"`
	Dragging    bool   `json:"dragging"`
	Converged   bool   `json:"converged"`
}

// Session is one active control session.
type Session struct {
	id    string
	cfg   Config
	sched CommandScheduler
	link  Link

	now func() time.Time

	mu       sync.Mutex
	engine   *smoothing.Engine
	lastFull pose.Pose // last-known full target, merge base for partials
	dragging bool
	lastSent pose.Pose // fingerprint to skip identical commands
	hasSent  bool
	active   bool

	stop     chan struct{}
	stopOnce sync.Once
}

// NewSession creates a session seeded with the robot's current pose.
func NewSession(cfg Config, sched CommandScheduler, link Link, seed pose.Pose) *Session {
	if cfg.TickRate <= 0 {
		cfg.TickRate = DefaultTickRate
	}
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = DefaultEpsilon
	}
	return &Session{
		id:       uuid.NewString(),
		cfg:      cfg,
		sched:    sched,
		link:     link,
		now:      time.Now,
		engine:   smoothing.New(cfg.Smoothing, seed),
		lastFull: seed,
		stop:     make(chan struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// SetTarget merges a partial pose into the last-known full target and
// hands it to the smoothing engine. This is the only input surface the
// UI layers call.
func (s *Session) SetTarget(partial pose.Partial, mode Mode) {
	s.mu.Lock()
	merged := partial.ApplyTo(s.lastFull).Clamp()
	s.lastFull = merged
	s.engine.SetTarget(merged)
	active := s.active
	if mode == Commit {
		s.dragging = false
		// The commit snapshot goes out now; the converging tail that
		// follows must not re-send an identical final pose.
		s.lastSent = merged
		s.hasSent = true
	} else {
		s.dragging = true
	}
	s.mu.Unlock()

	if mode == Commit && active {
		s.sched.ForceSend(pose.Command{Pose: merged})
	}
}

// Run starts the tick loop and blocks until Stop is called. The stream
// is connected on entry.
func (s *Session) Run() {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return
	}
	s.active = true
	s.mu.Unlock()

	s.link.Connect()
	log.Info("control session started", "session", s.id, "mode", s.cfg.LinkMode)

	ticker := time.NewTicker(s.cfg.TickRate)
	defer ticker.Stop()

	last := s.now()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			now := s.now()
			s.tick(now.Sub(last))
			last = now
		}
	}
}

// tick advances the smoothed pose one step and feeds the scheduler.
// Emission continues after input stops until the pose has converged, so
// the final settled position always reaches the robot. Once converged
// and not dragging the loop stays alive but sends nothing.
func (s *Session) tick(dt time.Duration) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	cur := s.engine.Tick(dt)
	emit := s.dragging || !s.engine.HasConverged(s.cfg.Epsilon)

	send := false
	if emit && (!s.hasSent || cur != s.lastSent) {
		s.lastSent = cur
		s.hasSent = true
		send = true
	}
	s.mu.Unlock()

	if send {
		s.sched.Send(pose.Command{Pose: cur})
	}
}

// Stop cancels the tick loop, resets the scheduler and disconnects the
// stream. In-flight sends finish on their own; their completions no-op
// against the torn-down session.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.active = false
		s.mu.Unlock()
		close(s.stop)
		s.sched.Reset()
		s.link.Disconnect()
		log.Info("control session stopped", "session", s.id)
	})
}

// SmoothedPose returns the current interpolated pose, for visual
// feedback (the "ghost" cursor).
func (s *Session) SmoothedPose() pose.Pose {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Current()
}

// TargetPose returns the last-known full target.
func (s *Session) TargetPose() pose.Pose {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFull
}

// Diagnostics returns the observable connection and scheduler state.
func (s *Session) Diagnostics() Diagnostics {
	s.mu.Lock()
	dragging := s.dragging
	converged := s.engine.HasConverged(s.cfg.Epsilon)
	s.mu.Unlock()

	return Diagnostics{
		SessionID:   s.id,
		IsConnected: s.link.IsConnected(),
		InFlight:    s.sched.InFlight(),
		HasPending:  s.sched.HasPending(),
		Mode:        s.cfg.LinkMode,
		Stream:      s.link.State().String(),
		Dragging:    dragging,
		Converged:   converged,
	}
}
