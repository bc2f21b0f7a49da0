package pose

import (
	"math"
	"testing"
)

const floatTolerance = 1e-9

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) < floatTolerance
}

func TestPartial_ApplyTo_CarriesForward(t *testing.T) {
	base := Pose{
		Head:     Head{X: 0.01, Pitch: 0.1},
		Antennas: [2]float64{0.3, -0.3},
		BodyYaw:  -0.5,
	}

	yaw := 0.2
	merged := Partial{BodyYaw: &yaw}.ApplyTo(base)

	if !floatEquals(merged.BodyYaw, 0.2) {
		t.Errorf("BodyYaw: got %v, want 0.2", merged.BodyYaw)
	}
	if !floatEquals(merged.Head.X, 0.01) {
		t.Errorf("Head.X: got %v, want 0.01 (carried forward)", merged.Head.X)
	}
	if !floatEquals(merged.Antennas[0], 0.3) {
		t.Errorf("Antennas[0]: got %v, want 0.3 (carried forward)", merged.Antennas[0])
	}
}

func TestPartial_ApplyTo_ReplacesWholeGroup(t *testing.T) {
	base := Pose{Head: Head{X: 0.01, Yaw: 0.4}}

	merged := Partial{Head: &Head{Pitch: 0.2}}.ApplyTo(base)

	// A head update replaces the whole head group, not individual fields.
	if merged.Head.X != 0 || merged.Head.Yaw != 0 {
		t.Errorf("head group not replaced wholesale: %+v", merged.Head)
	}
	if !floatEquals(merged.Head.Pitch, 0.2) {
		t.Errorf("Head.Pitch: got %v, want 0.2", merged.Head.Pitch)
	}
}

func TestPose_Clamp(t *testing.T) {
	p := Pose{
		Head:     Head{X: 1, Z: -1, Roll: 2, Pitch: -2, Yaw: 3},
		Antennas: [2]float64{10, -10},
		BodyYaw:  5,
	}

	c := p.Clamp()

	if !floatEquals(c.Head.X, MaxHeadXY) {
		t.Errorf("Head.X: got %v, want %v", c.Head.X, MaxHeadXY)
	}
	if !floatEquals(c.Head.Z, -MaxHeadZ) {
		t.Errorf("Head.Z: got %v, want %v", c.Head.Z, -MaxHeadZ)
	}
	if !floatEquals(c.Head.Roll, MaxHeadRoll) {
		t.Errorf("Head.Roll: got %v, want %v", c.Head.Roll, MaxHeadRoll)
	}
	if !floatEquals(c.Antennas[1], -MaxAntenna) {
		t.Errorf("Antennas[1]: got %v, want %v", c.Antennas[1], -MaxAntenna)
	}
	if !floatEquals(c.BodyYaw, MaxBodyYaw) {
		t.Errorf("BodyYaw: got %v, want %v", c.BodyYaw, MaxBodyYaw)
	}

	// In-range values pass through untouched.
	ok := Pose{Head: Head{Yaw: 0.1}, BodyYaw: -0.2}
	if ok.Clamp() != ok {
		t.Errorf("in-range pose modified by Clamp: %+v", ok.Clamp())
	}
}

func TestVector_RoundTrip(t *testing.T) {
	p := Pose{
		Head:     Head{X: 0.01, Y: -0.02, Z: 0.03, Roll: 0.1, Pitch: 0.2, Yaw: 0.3},
		Antennas: [2]float64{0.4, 0.5},
		BodyYaw:  0.6,
	}
	if got := FromVector(p.Vector()); got != p {
		t.Errorf("round trip mismatch: got %+v", got)
	}
}

func TestDistance(t *testing.T) {
	a := Pose{Head: Head{X: 0.1}}
	b := Pose{Head: Head{X: -0.1}, BodyYaw: 0.3}
	if d := Distance(a, b); !floatEquals(d, 0.5) {
		t.Errorf("Distance: got %v, want 0.5", d)
	}
	if d := Distance(a, a); d != 0 {
		t.Errorf("Distance to self: got %v, want 0", d)
	}
}
