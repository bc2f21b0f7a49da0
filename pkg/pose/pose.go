// Package pose defines the robot pose value types shared by the control
// pipeline: full poses, partial updates from input surfaces, and outbound
// command snapshots.
package pose

import "time"

// Head is the head pose: position in meters, orientation in radians.
type Head struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Pose is a complete robot pose: head, two antennas, body rotation.
type Pose struct {
	Head     Head       `json:"head"`
	Antennas [2]float64 `json:"antennas"` // left, right (radians)
	BodyYaw  float64    `json:"body_yaw"` // radians
}

// Partial is a pose update that touches only some axis groups.
// Nil fields are carried forward from the last known full pose.
type Partial struct {
	Head     *Head       `json:"head,omitempty"`
	Antennas *[2]float64 `json:"antennas,omitempty"`
	BodyYaw  *float64    `json:"body_yaw,omitempty"`
}

// ApplyTo merges p into base, keeping base's values for any group p
// does not include.
func (p Partial) ApplyTo(base Pose) Pose {
	out := base
	if p.Head != nil {
		out.Head = *p.Head
	}
	if p.Antennas != nil {
		out.Antennas = *p.Antennas
	}
	if p.BodyYaw != nil {
		out.BodyYaw = *p.BodyYaw
	}
	return out
}

// Command is one outbound pose snapshot. Commands are always complete
// poses; they are consumed exactly once and never retained.
type Command struct {
	Pose  Pose
	Stamp time.Time
}

// Distance returns the sum of per-axis absolute differences between two
// poses. Used for convergence checks.
func Distance(a, b Pose) float64 {
	av, bv := a.Vector(), b.Vector()
	var sum float64
	for i := range av {
		sum += abs(av[i] - bv[i])
	}
	return sum
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
