package pose

// Axis indices for the flattened pose vector. Translational axes come
// first, then rotational axes; the smoothing engine converges each group
// at its own rate.
const (
	AxisX = iota
	AxisY
	AxisZ
	AxisRoll
	AxisPitch
	AxisYaw
	AxisAntennaLeft
	AxisAntennaRight
	AxisBodyYaw

	AxisCount
)

// Translational reports whether axis i is a positional axis (meters)
// rather than a rotational one (radians).
func Translational(i int) bool {
	return i <= AxisZ
}

// Vector flattens the pose into a fixed axis order.
func (p Pose) Vector() [AxisCount]float64 {
	return [AxisCount]float64{
		p.Head.X, p.Head.Y, p.Head.Z,
		p.Head.Roll, p.Head.Pitch, p.Head.Yaw,
		p.Antennas[0], p.Antennas[1],
		p.BodyYaw,
	}
}

// FromVector rebuilds a pose from a flattened axis vector.
func FromVector(v [AxisCount]float64) Pose {
	return Pose{
		Head: Head{
			X: v[AxisX], Y: v[AxisY], Z: v[AxisZ],
			Roll: v[AxisRoll], Pitch: v[AxisPitch], Yaw: v[AxisYaw],
		},
		Antennas: [2]float64{v[AxisAntennaLeft], v[AxisAntennaRight]},
		BodyYaw:  v[AxisBodyYaw],
	}
}
