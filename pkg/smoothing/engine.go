// Package smoothing converges a pose toward the most recently set target,
// one tick at a time, independent of how irregularly the target changes.
//
// Each axis approaches its target exponentially: every tick closes a
// fixed fraction of the remaining gap (scaled by dt), so convergence is
// monotone per axis and never overshoots. Rotational axes use a faster
// rate than translational ones; both settle without oscillation.
package smoothing

import (
	"math"
	"time"

	"github.com/robokit/go-teleop/pkg/pose"
)

// Config holds per-axis-group convergence rates in 1/seconds. A rate r
// means the remaining gap shrinks by a factor of e every 1/r seconds.
// These are tuned, not derived: adjust for feel, the tests only pin the
// qualitative behavior.
type Config struct {
	TranslationRate float64
	RotationRate    float64

	// SnapEpsilon is the per-axis gap below which the axis snaps to its
	// target exactly, so convergence terminates in finite ticks.
	SnapEpsilon float64
}

// DefaultConfig returns rates that settle a step input in roughly a
// quarter second at 60 ticks/second.
func DefaultConfig() Config {
	return Config{
		TranslationRate: 12.0,
		RotationRate:    16.0,
		SnapEpsilon:     1e-4,
	}
}

// Engine interpolates the current pose toward the latest target.
// It is not safe for concurrent use; the owning session serializes access.
type Engine struct {
	cfg     Config
	current [pose.AxisCount]float64
	target  [pose.AxisCount]float64
}

// New creates an engine with both current and target poses set to start.
func New(cfg Config, start pose.Pose) *Engine {
	if cfg.TranslationRate <= 0 || cfg.RotationRate <= 0 {
		cfg = DefaultConfig()
	}
	v := start.Vector()
	return &Engine{cfg: cfg, current: v, target: v}
}

// SetTarget replaces the target wholesale. No merging across calls.
func (e *Engine) SetTarget(p pose.Pose) {
	e.target = p.Vector()
}

// Reset snaps both the current pose and the target to p.
func (e *Engine) Reset(p pose.Pose) {
	v := p.Vector()
	e.current = v
	e.target = v
}

// Current returns the interpolated pose.
func (e *Engine) Current() pose.Pose {
	return pose.FromVector(e.current)
}

// Target returns the most recently set target.
func (e *Engine) Target() pose.Pose {
	return pose.FromVector(e.target)
}

// Tick advances the current pose one step toward the target and returns
// the updated pose.
func (e *Engine) Tick(dt time.Duration) pose.Pose {
	if dt <= 0 {
		return e.Current()
	}
	sec := dt.Seconds()
	// Fraction of the remaining gap to close this tick, per group.
	// 1-exp(-r*dt) stays in (0,1) for any dt, so a long tick can never
	// step past the target.
	tf := 1 - math.Exp(-e.cfg.TranslationRate*sec)
	rf := 1 - math.Exp(-e.cfg.RotationRate*sec)

	for i := range e.current {
		gap := e.target[i] - e.current[i]
		if math.Abs(gap) <= e.cfg.SnapEpsilon {
			e.current[i] = e.target[i]
			continue
		}
		f := rf
		if pose.Translational(i) {
			f = tf
		}
		e.current[i] += gap * f
	}
	return e.Current()
}

// HasConverged reports whether the sum of per-axis gaps is below epsilon.
// The session keeps emitting commands until this is true, so the final
// settled pose always reaches the robot even after input stops.
func (e *Engine) HasConverged(epsilon float64) bool {
	var sum float64
	for i := range e.current {
		sum += math.Abs(e.target[i] - e.current[i])
	}
	return sum < epsilon
}
