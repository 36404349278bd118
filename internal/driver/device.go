package driver

import (
	"time"

	"github.com/neuroplastio/psmove-bridge/internal/calibration"
	"github.com/neuroplastio/psmove-bridge/pkg/posemath"
	"go.uber.org/zap"
)

type Kind uint8

const (
	KindController Kind = iota
	KindTracker
)

func (k Kind) String() string {
	if k == KindTracker {
		return "tracker"
	}
	return "controller"
}

// DeviceInfo is the identity of a device.
type DeviceInfo struct {
	Identifier   string
	ServiceID    int
	Serial       string
	Kind         Kind
	Class        string
	ParentSerial string
}

type DeviceEventType uint8

const (
	DeviceCreated DeviceEventType = iota
	DeviceAttached
	DeviceDeactivated
)

func (t DeviceEventType) String() string {
	switch t {
	case DeviceCreated:
		return "created"
	case DeviceAttached:
		return "attached"
	case DeviceDeactivated:
		return "deactivated"
	}
	return "unknown"
}

// DeviceEvent is published on the device bus on every adapter lifecycle change.
type DeviceEvent struct {
	Type   DeviceEventType
	Device DeviceInfo
}

// env is shared by the registry and every adapter it creates.
type env struct {
	log       *zap.Logger
	svc       Service
	host      Host
	waiter    *calibration.Waiter
	now       func() time.Time
	registry  *Registry
	companion Companion
}

// Device is one adapter. Exactly one of controller and tracker is set, as selected by
// info.Kind.
type Device struct {
	info   DeviceInfo
	active bool
	pose   Pose

	controller *Controller
	tracker    *Tracker
}

func (d *Device) Info() DeviceInfo {
	return d.info
}

func (d *Device) Identifier() string {
	return d.info.Identifier
}

// Serial is the host-facing serial: the controller serial, or the identifier when the
// service reports none.
func (d *Device) Serial() string {
	if d.info.Serial == "" {
		return d.info.Identifier
	}
	return d.info.Serial
}

func (d *Device) Kind() Kind {
	return d.info.Kind
}

func (d *Device) Active() bool {
	return d.active
}

// Pose is the last pose published to the host.
func (d *Device) Pose() Pose {
	return d.pose
}

func (d *Device) Controller() (*Controller, bool) {
	return d.controller, d.info.Kind == KindController && d.controller != nil
}

func (d *Device) Tracker() (*Tracker, bool) {
	return d.tracker, d.info.Kind == KindTracker && d.tracker != nil
}

func (d *Device) setPose(e *env, pose Pose) {
	d.pose = pose
	e.host.PoseUpdated(d.Serial(), pose)
}

func (d *Device) activate(e *env) {
	d.active = true
	if d.info.Kind == KindController {
		d.controller.activate(e)
	}
}

func (d *Device) deactivate(e *env) {
	if !d.active {
		return
	}
	d.active = false
	if d.info.Kind == KindController {
		d.controller.deactivate(e)
	}
	d.pose.Valid = false
	d.pose.Connected = false
}

func (d *Device) tick(e *env, world posemath.Pose) {
	switch d.info.Kind {
	case KindController:
		d.controller.tick(e, d, world)
	case KindTracker:
		d.tracker.tick(e, d, world)
	}
}

// refresh republishes the last pose under a newly committed world transform.
func (d *Device) refresh(e *env, world posemath.Pose) {
	switch d.info.Kind {
	case KindController:
		d.controller.refresh(e, d, world)
	case KindTracker:
		d.tracker.tick(e, d, world)
	}
}
