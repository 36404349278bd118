// Package driver turns the tracking service session into per-device poses and abstract
// input for the VR host. Everything except Provider.Start runs on the host frame thread.
package driver

import (
	"context"

	"github.com/neuroplastio/psmove-bridge/internal/mapping"
	"github.com/neuroplastio/psmove-bridge/internal/psmapi"
	"github.com/neuroplastio/psmove-bridge/pkg/posemath"
)

// Service is the asynchronous tracking service session. psmclient.Client implements it.
type Service interface {
	Connect(ctx context.Context) error
	Serve(ctx context.Context) error
	Close() error
	Send(req psmapi.Request, onResponse psmapi.ResponseHandler) (psmapi.RequestID, error)
	Poll() []psmapi.Message
	ControllerState(id int) (psmapi.ControllerState, bool)
}

// Host receives device updates. Devices are addressed by their host serial.
type Host interface {
	DeviceAdded(serial string, kind Kind)
	PoseUpdated(serial string, pose Pose)
	ButtonTouched(serial string, b mapping.VRButton)
	ButtonPressed(serial string, b mapping.VRButton)
	ButtonUnpressed(serial string, b mapping.VRButton)
	ButtonUntouched(serial string, b mapping.VRButton)
	AxisUpdated(serial string, axis int, v mapping.Axis)
	BatteryUpdated(serial string, fraction float64, charging bool)
	// RequestHeadPose asks the companion process to send the current head pose for serial
	// through the debug channel.
	RequestHeadPose(serial string)
	SystemButtonPressed()
}

// Companion is the calibration-assistant process launched with the first controller.
type Companion interface {
	Launch() error
}

type TrackingStatus uint8

const (
	StatusUninitialized TrackingStatus = iota
	StatusCalibratingInProgress
	StatusRunningOK
)

func (s TrackingStatus) String() string {
	switch s {
	case StatusCalibratingInProgress:
		return "calibrating_in_progress"
	case StatusRunningOK:
		return "running_ok"
	}
	return "uninitialized"
}

// Pose is the per-device pose record handed to the host, in world space and metres.
type Pose struct {
	Position            posemath.Vec3
	Orientation         posemath.Quat
	LinearVelocity      posemath.Vec3
	LinearAcceleration  posemath.Vec3
	AngularVelocity     posemath.Vec3
	AngularAcceleration posemath.Vec3
	Valid               bool
	Connected           bool
	Status              TrackingStatus
}
