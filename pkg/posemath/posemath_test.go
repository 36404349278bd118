package posemath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-9

func TestExtractYawPureYaw(t *testing.T) {
	for deg := -179.0; deg <= 180; deg += 7.5 {
		q := AxisAngle(AxisY, deg*math.Pi/180)
		got := ExtractYaw(q)
		assert.Truef(t, got.ApproxEqual(q, eps), "yaw %v: got %+v, want %+v", deg, got, q)
	}
}

func TestExtractYawPitchRoll(t *testing.T) {
	for pitch := -85.0; pitch <= 85; pitch += 17 {
		for roll := -180.0; roll <= 180; roll += 30 {
			q := AxisAngle(AxisX, pitch*math.Pi/180).Mul(AxisAngle(AxisZ, roll*math.Pi/180))
			got := ExtractYaw(q)
			assert.Truef(t, got.ApproxEqual(Identity(), eps), "pitch %v roll %v: got %+v", pitch, roll, got)
		}
	}
}

func TestExtractYawDegenerate(t *testing.T) {
	q := AxisAngle(AxisX, math.Pi/2)
	assert.True(t, ExtractYaw(q).ApproxEqual(Identity(), eps))
}

func TestExtractYawDropsPitch(t *testing.T) {
	yaw := AxisAngle(AxisY, 0.7)
	q := yaw.Mul(AxisAngle(AxisX, -0.4))
	assert.True(t, ExtractYaw(q).ApproxEqual(yaw, eps))
}

func TestComposeInverse(t *testing.T) {
	p := Pose{
		Position:    Vec3{X: 0.3, Y: -1.2, Z: 2},
		Orientation: AxisAngle(Vec3{X: 1, Y: 2, Z: 3}, 1.1),
	}
	assert.True(t, ComposePoses(InversePose(p), p).ApproxEqual(IdentityPose(), eps))
	assert.True(t, ComposePoses(p, InversePose(p)).ApproxEqual(IdentityPose(), eps))
}

func TestComposeOrder(t *testing.T) {
	a := Pose{Position: Vec3{Z: -1}, Orientation: Identity()}
	b := Pose{Position: Vec3{X: 5}, Orientation: AxisAngle(AxisY, math.Pi/2)}

	// a applied first, then b rotates a's offset onto -X before translating.
	got := ComposePoses(a, b)
	assert.InDelta(t, 4, got.Position.X, eps)
	assert.InDelta(t, 0, got.Position.Z, eps)

	v := Vec3{X: 1, Y: 2, Z: 3}
	assert.InDelta(t, 0, got.Apply(v).Sub(b.Apply(a.Apply(v))).Length(), eps)
}

func TestRotate(t *testing.T) {
	q := AxisAngle(AxisY, math.Pi/2)
	v := q.Rotate(Forward)
	assert.InDelta(t, 1, v.X, eps)
	assert.InDelta(t, 0, v.Z, eps)
}

func TestPoseFromMatrix34(t *testing.T) {
	type testCase struct {
		name   string
		orient Quat
	}
	testCases := []testCase{
		{name: "identity", orient: Identity()},
		{name: "yaw", orient: AxisAngle(AxisY, 2.5)},
		{name: "half turn x", orient: AxisAngle(AxisX, math.Pi)},
		{name: "half turn y", orient: AxisAngle(AxisY, math.Pi)},
		{name: "half turn z", orient: AxisAngle(AxisZ, math.Pi)},
		{name: "oblique", orient: AxisAngle(Vec3{X: -1, Y: 0.5, Z: 2}, 2.9)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			x := tc.orient.Rotate(AxisX)
			y := tc.orient.Rotate(AxisY)
			z := tc.orient.Rotate(AxisZ)
			m := [12]float64{
				x.X, y.X, z.X, 1,
				x.Y, y.Y, z.Y, 2,
				x.Z, y.Z, z.Z, 3,
			}
			p := PoseFromMatrix34(m)
			require.True(t, p.Orientation.ApproxEqual(tc.orient, 1e-7), "got %+v", p.Orientation)
			assert.Equal(t, Vec3{X: 1, Y: 2, Z: 3}, p.Position)
		})
	}
}

func TestNormalizedFallback(t *testing.T) {
	assert.Equal(t, Forward, Vec3{}.Normalized(Forward))
}
