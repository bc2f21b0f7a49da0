package pose

import "math"

// Mechanical limits. Head orientation limits are conservative safety
// bounds to prevent sending impossible commands to the daemon; body yaw
// follows the daemon's 0.9 * pi limit.
const (
	MaxHeadRoll  = 0.35 // ~20 degrees
	MaxHeadPitch = 0.52 // ~30 degrees
	MaxHeadYaw   = 0.70 // ~40 degrees

	MaxHeadXY = 0.03 // meters of lateral head travel
	MaxHeadZ  = 0.05 // meters of vertical head travel

	MaxAntenna = math.Pi

	MaxBodyYaw = 0.9 * math.Pi // ~162 degrees
)

// Clamp returns a copy of p with every axis clamped to mechanical limits.
func (p Pose) Clamp() Pose {
	return Pose{
		Head: Head{
			X:     clamp(p.Head.X, -MaxHeadXY, MaxHeadXY),
			Y:     clamp(p.Head.Y, -MaxHeadXY, MaxHeadXY),
			Z:     clamp(p.Head.Z, -MaxHeadZ, MaxHeadZ),
			Roll:  clamp(p.Head.Roll, -MaxHeadRoll, MaxHeadRoll),
			Pitch: clamp(p.Head.Pitch, -MaxHeadPitch, MaxHeadPitch),
			Yaw:   clamp(p.Head.Yaw, -MaxHeadYaw, MaxHeadYaw),
		},
		Antennas: [2]float64{
			clamp(p.Antennas[0], -MaxAntenna, MaxAntenna),
			clamp(p.Antennas[1], -MaxAntenna, MaxAntenna),
		},
		BodyYaw: clamp(p.BodyYaw, -MaxBodyYaw, MaxBodyYaw),
	}
}

// clamp restricts v to the range [min, max].
func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
