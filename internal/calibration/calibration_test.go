package calibration

import (
	"math"
	"testing"
	"time"

	"github.com/neuroplastio/psmove-bridge/pkg/posemath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const eps = 1e-9

func TestSolveCanonicalIsIdentity(t *testing.T) {
	heads := []posemath.Pose{
		posemath.IdentityPose(),
		{Position: posemath.Vec3{X: 0.2, Y: 1.7, Z: -0.4}, Orientation: posemath.AxisAngle(posemath.AxisY, 0.8)},
		{Position: posemath.Vec3{Y: 1.6}, Orientation: posemath.AxisAngle(posemath.AxisY, -2.4).Mul(posemath.AxisAngle(posemath.AxisX, 0.3))},
	}
	profile := MotionProfile(0.06, true)
	for _, head := range heads {
		raw := profile.ExpectedPose(head)
		w := Solve(profile, head, raw)
		assert.Truef(t, w.ApproxEqual(posemath.IdentityPose(), eps), "head %+v: got %+v", head, w)
	}

	// Without orientation the controller is assumed to be held at the mount; a level head
	// facing forward still yields identity.
	fixed := MotionProfile(0.06, false)
	head := posemath.Pose{Position: posemath.Vec3{Y: 1.6}, Orientation: posemath.Identity()}
	w := Solve(fixed, head, fixed.ExpectedPose(head))
	assert.True(t, w.ApproxEqual(posemath.IdentityPose(), eps))
}

func TestSolveMapsRawOntoExpected(t *testing.T) {
	profile := MotionProfile(0.06, true)
	head := posemath.Pose{
		Position:    posemath.Vec3{X: 1, Y: 1.7, Z: 2},
		Orientation: posemath.AxisAngle(posemath.AxisY, 1.2).Mul(posemath.AxisAngle(posemath.AxisZ, 0.2)),
	}
	// The controller is held pointing up but the service frame is rotated and shifted.
	raw := posemath.Pose{
		Position:    posemath.Vec3{X: -0.5, Y: 0.3, Z: 0.9},
		Orientation: posemath.AxisAngle(posemath.AxisY, -0.4).Mul(MotionMount),
	}
	w := Solve(profile, head, raw)
	got := posemath.ComposePoses(raw, w)
	assert.True(t, got.ApproxEqual(profile.ExpectedPose(head), eps), "got %+v", got)
}

func TestExpectedPoseIgnoresHeadPitch(t *testing.T) {
	profile := MotionProfile(0.1, true)
	level := posemath.Pose{Position: posemath.Vec3{Y: 1.5}, Orientation: posemath.AxisAngle(posemath.AxisY, 0.5)}
	tilted := level
	tilted.Orientation = level.Orientation.Mul(posemath.AxisAngle(posemath.AxisX, -0.6))
	assert.True(t, profile.ExpectedPose(level).ApproxEqual(profile.ExpectedPose(tilted), eps))

	// 10 cm in front of the head along its forward (-Z) axis.
	p := profile.ExpectedPose(posemath.Pose{Orientation: posemath.Identity()}).Position
	assert.InDelta(t, -0.1, p.Z, eps)
}

func TestPositionOnlyIgnoresRawOrientation(t *testing.T) {
	profile := PositionOnlyProfile(0.16)
	head := posemath.Pose{Position: posemath.Vec3{Y: 1.6}, Orientation: posemath.Identity()}
	raw := posemath.Pose{
		Position:    posemath.Vec3{Y: 1.6, Z: -0.16},
		Orientation: posemath.AxisAngle(posemath.AxisX, 1),
	}
	assert.True(t, Solve(profile, head, raw).ApproxEqual(posemath.IdentityPose(), eps))
}

func TestReduceOrientationUsesMountWhenDisabled(t *testing.T) {
	profile := MotionProfile(0.06, false)
	q := profile.ReduceOrientation(posemath.AxisAngle(posemath.AxisY, math.Pi/3))
	assert.True(t, q.ApproxEqual(MotionMount, eps))
}

type fakeRequester struct {
	requests []string
}

func (r *fakeRequester) RequestHeadPose(device string) {
	r.requests = append(r.requests, device)
}

func TestWaiter(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	req := &fakeRequester{}
	w := NewWaiter(zap.NewNop(), req, clock)

	var first, second int
	w.RequestHeadPose("psmove_controller0", 0, func(posemath.Pose) { first++ })
	w.RequestHeadPose("psmove_controller0", 0, func(posemath.Pose) { second++ })
	assert.Equal(t, []string{"psmove_controller0", "psmove_controller0"}, req.requests)
	require.True(t, w.Pending("psmove_controller0"))

	head := posemath.Pose{Position: posemath.Vec3{Y: 1.7}, Orientation: posemath.Identity()}
	assert.True(t, w.DeliverHeadPose("psmove_controller0", head))
	assert.Equal(t, 0, first)
	assert.Equal(t, 1, second)
	assert.False(t, w.Pending("psmove_controller0"))

	// A late duplicate answer finds no continuation.
	assert.False(t, w.DeliverHeadPose("psmove_controller0", head))
	assert.Equal(t, 1, second)

	// A fresh cached sample is used without asking the companion again.
	now = now.Add(50 * time.Millisecond)
	var got posemath.Pose
	w.RequestHeadPose("psmove_controller0", time.Second, func(p posemath.Pose) { got = p })
	assert.Equal(t, head, got)
	assert.Len(t, req.requests, 2)

	now = now.Add(2 * time.Second)
	w.RequestHeadPose("psmove_controller0", time.Second, func(posemath.Pose) {})
	assert.Len(t, req.requests, 3)
}
