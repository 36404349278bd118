// Package calibration derives the transform from tracking-service space into host world
// space from one head pose and one controller pose.
package calibration

import (
	"math"

	"github.com/neuroplastio/psmove-bridge/pkg/posemath"
)

// Profile describes where a controller is expected to be held during calibration.
type Profile struct {
	// Offset is the controller pose relative to the yaw-only head pose.
	Offset posemath.Pose
	// Mount is the rotation between the controller's sensing axis and the hand's forward axis.
	Mount posemath.Quat
	// UseOrientation derives the controller yaw from its own orientation. When false the
	// controller is assumed to be held exactly at Mount.
	UseOrientation bool
	// PositionOnly marks controllers without usable orientation; their raw orientation is ignored.
	PositionOnly bool
}

// MotionMount points the controller's sensing axis up, the way a motion controller is held
// in front of the headset during calibration.
var MotionMount = posemath.AxisAngle(posemath.AxisX, math.Pi/2)

// MotionProfile is used for positional (motion) controllers.
func MotionProfile(metersInFront float64, useOrientation bool) Profile {
	return Profile{
		Offset: posemath.Pose{
			Position:    posemath.Vec3{Z: -metersInFront},
			Orientation: MotionMount,
		},
		Mount:          MotionMount,
		UseOrientation: useOrientation,
	}
}

// PositionOnlyProfile is used for controllers that calibrate on position alone.
func PositionOnlyProfile(metersInFront float64) Profile {
	return Profile{
		Offset: posemath.Pose{
			Position:    posemath.Vec3{Z: -metersInFront},
			Orientation: posemath.Identity(),
		},
		Mount:        posemath.Identity(),
		PositionOnly: true,
	}
}

// ExpectedPose is where the controller should be in world space for the given head pose.
func (p Profile) ExpectedPose(head posemath.Pose) posemath.Pose {
	yawHead := posemath.Pose{
		Position:    head.Position,
		Orientation: posemath.ExtractYaw(head.Orientation),
	}
	return posemath.ComposePoses(p.Offset, yawHead)
}

// ReduceOrientation strips pitch and roll from a raw controller orientation, keeping the mount.
func (p Profile) ReduceOrientation(q posemath.Quat) posemath.Quat {
	switch {
	case p.PositionOnly:
		return posemath.Identity()
	case p.UseOrientation:
		return posemath.ExtractYaw(q.Mul(p.Mount.Conj())).Mul(p.Mount).Normalized()
	default:
		return p.Mount
	}
}

// Solve returns the world transform W such that W applied to the reduced raw controller pose
// yields the expected pose. raw must already be in metres.
func Solve(p Profile, head, raw posemath.Pose) posemath.Pose {
	reduced := posemath.Pose{
		Position:    raw.Position,
		Orientation: p.ReduceOrientation(raw.Orientation),
	}
	return posemath.ComposePoses(posemath.InversePose(reduced), p.ExpectedPose(head))
}
