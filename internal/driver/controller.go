package driver

import (
	"errors"

	"github.com/neuroplastio/psmove-bridge/internal/calibration"
	"github.com/neuroplastio/psmove-bridge/internal/mapping"
	"github.com/neuroplastio/psmove-bridge/internal/psmapi"
	"github.com/neuroplastio/psmove-bridge/internal/psmclient"
	"github.com/neuroplastio/psmove-bridge/internal/rumble"
	"github.com/neuroplastio/psmove-bridge/pkg/posemath"
	"go.uber.org/zap"
)

// Controller is the payload of a controller adapter. Auxiliary controllers only feed the
// input of their parent and never publish anything themselves.
type Controller struct {
	log   *zap.Logger
	id    int
	ctype psmapi.ControllerType
	class mapping.Class
	opts  ControllerOptions

	engine  *mapping.Engine
	rumble  *rumble.Scheduler
	profile calibration.Profile

	parent *Device
	child  *Device

	hasState     bool
	last         psmapi.ControllerState
	lastChildSeq uint32
	batteryKnown bool
	battery      psmapi.BatteryLevel
	calibrating  bool
}

func newController(log *zap.Logger, info psmapi.ControllerInfo, class mapping.Class, settings Settings) *Controller {
	opts := LoadControllerOptions(settings, class)
	c := &Controller{
		log:     log,
		id:      info.ID,
		ctype:   info.Type,
		class:   class,
		opts:    opts,
		rumble:  rumble.New(opts.RumbleSuppressed),
		profile: opts.Profile(class),
	}
	if class != mapping.ClassAuxiliary {
		c.engine = mapping.NewEngine(class, mapping.LoadTable(log, settings, info.ID), opts.Mapping)
	}
	return c
}

func (c *Controller) ID() int {
	return c.id
}

func (c *Controller) Class() mapping.Class {
	return c.class
}

// Parent is the positional controller an auxiliary controller is attached to.
func (c *Controller) Parent() (*Device, bool) {
	return c.parent, c.parent != nil
}

func (c *Controller) Child() (*Device, bool) {
	return c.child, c.child != nil
}

// Input is the abstract input state produced on the last tick.
func (c *Controller) Input() (mapping.State, bool) {
	if c.engine == nil {
		return mapping.State{}, false
	}
	return c.engine.State(), true
}

func (c *Controller) Calibrating() bool {
	return c.calibrating
}

// RequestRumble records a haptic pulse. Auxiliary controllers have no actuator.
func (c *Controller) RequestRumble(micros uint16) bool {
	if c.class == mapping.ClassAuxiliary {
		return false
	}
	c.rumble.Request(micros)
	return true
}

func (c *Controller) send(e *env, req psmapi.Request, onResponse psmapi.ResponseHandler) {
	_, err := e.svc.Send(req, onResponse)
	switch {
	case errors.Is(err, psmclient.ErrNotConnected):
		c.log.Debug("Dropping request while disconnected", zap.String("type", string(req.Type)))
	case err != nil:
		c.log.Warn("Failed to send request", zap.String("type", string(req.Type)), zap.Error(err))
	}
}

func (c *Controller) activate(e *env) {
	c.send(e, psmapi.StartDataStream(c.id, psmapi.StreamIncludePosition|psmapi.StreamIncludePhysics), nil)
}

func (c *Controller) deactivate(e *env) {
	c.send(e, psmapi.StopDataStream(c.id), nil)
	c.detach()
	c.hasState = false
	c.calibrating = false
}

func (c *Controller) detach() {
	if c.parent != nil {
		if pc, ok := c.parent.Controller(); ok {
			pc.child = nil
		}
		c.parent = nil
	}
	if c.child != nil {
		if cc, ok := c.child.Controller(); ok {
			cc.parent = nil
		}
		c.child = nil
	}
}

func (c *Controller) childState(e *env) (*psmapi.ControllerState, bool) {
	if c.child == nil || !c.child.Active() {
		return nil, false
	}
	cc, _ := c.child.Controller()
	st, ok := e.svc.ControllerState(cc.id)
	if !ok || !st.Connected {
		return nil, false
	}
	return &st, true
}

func (c *Controller) tick(e *env, d *Device, world posemath.Pose) {
	if c.class == mapping.ClassAuxiliary {
		return
	}
	st, ok := e.svc.ControllerState(c.id)
	if ok && st.Connected {
		child, hasChild := c.childState(e)
		fresh := !c.hasState || st.Sequence != c.last.Sequence
		if hasChild && child.Sequence != c.lastChildSeq {
			fresh = true
			c.lastChildSeq = child.Sequence
		}
		if fresh {
			c.hasState = true
			c.last = st
			d.setPose(e, c.project(st, world))
			c.updateInput(e, d, st, child)
			c.updateBattery(e, d, st.Battery)
		}
	}
	if intensity, ok := c.rumble.Update(e.now()); ok {
		c.send(e, psmapi.SetRumble(c.id, psmapi.RumbleChannelAll, intensity), nil)
	}
}

func (c *Controller) refresh(e *env, d *Device, world posemath.Pose) {
	// Another controller's realignment must not end one still waiting for its head pose.
	if !e.waiter.Pending(d.Serial()) {
		c.calibrating = false
	}
	if c.class == mapping.ClassAuxiliary || !c.hasState {
		return
	}
	d.setPose(e, c.project(c.last, world))
}

func (c *Controller) status() TrackingStatus {
	if c.calibrating {
		return StatusCalibratingInProgress
	}
	return StatusRunningOK
}

// project maps a telemetry frame into world space.
func (c *Controller) project(st psmapi.ControllerState, world posemath.Pose) Pose {
	raw := st.PoseMeters()
	raw.Orientation = raw.Orientation.Normalized()
	if c.class == mapping.ClassPositional {
		down := raw.Orientation.Rotate(posemath.Vec3{Y: -1})
		back := raw.Orientation.Rotate(posemath.Vec3{Z: -1})
		raw.Position = raw.Position.Add(back.Scale(c.opts.ExtendZ)).Add(down.Scale(c.opts.ExtendY))
	}
	p := posemath.ComposePoses(raw, world)
	pose := Pose{
		Position:    p.Position,
		Orientation: p.Orientation,
		Valid:       true,
		Connected:   true,
		Status:      c.status(),
	}
	if c.class == mapping.ClassPositional {
		rot := world.Orientation
		pose.LinearVelocity = rot.Rotate(st.Physics.LinearVelocity.Scale(psmapi.CentimetersToMeters))
		pose.LinearAcceleration = rot.Rotate(st.Physics.LinearAcceleration.Scale(psmapi.CentimetersToMeters))
		pose.AngularVelocity = rot.Rotate(st.Physics.AngularVelocity)
		pose.AngularAcceleration = rot.Rotate(st.Physics.AngularAcceleration)
	}
	return pose
}

func (c *Controller) updateInput(e *env, d *Device, st psmapi.ControllerState, child *psmapi.ControllerState) {
	res := c.engine.Update(mapping.Input{Now: e.now(), State: st, Child: child})
	emitEdges(e.host, d.Serial(), res)
	switch {
	case res.Realign:
		c.startRealign(e, d)
	case res.Recenter:
		c.log.Info("Recentering orientation", zap.String("serial", d.Serial()))
		c.send(e, psmapi.ResetOrientation(c.id, posemath.Identity()), nil)
	}
}

func emitEdges(host Host, serial string, res mapping.Result) {
	for _, b := range mapping.Buttons(res.Edges.Touched) {
		host.ButtonTouched(serial, b)
	}
	for _, b := range mapping.Buttons(res.Edges.Pressed) {
		host.ButtonPressed(serial, b)
	}
	for _, b := range mapping.Buttons(res.Edges.Unpressed) {
		host.ButtonUnpressed(serial, b)
	}
	for _, b := range mapping.Buttons(res.Edges.Untouched) {
		host.ButtonUntouched(serial, b)
	}
	for i, changed := range res.Edges.Axes {
		if changed {
			host.AxisUpdated(serial, i, res.State.Axes[i])
		}
	}
}

func (c *Controller) updateBattery(e *env, d *Device, level psmapi.BatteryLevel) {
	if c.batteryKnown && level == c.battery {
		return
	}
	c.batteryKnown = true
	c.battery = level
	fraction, charging := level.Fraction()
	e.host.BatteryUpdated(d.Serial(), fraction, charging)
}

// startRealign resets the controller orientation to its mount and asks for a head pose.
// The world transform is solved once the head pose arrives.
func (c *Controller) startRealign(e *env, d *Device) {
	serial := d.Serial()
	c.log.Info("Starting realignment", zap.String("serial", serial))
	c.calibrating = true
	q := posemath.Identity()
	if c.class == mapping.ClassPositional {
		q = calibration.MotionMount
	}
	c.send(e, psmapi.ResetOrientation(c.id, q), nil)
	e.waiter.RequestHeadPose(serial, 0, func(head posemath.Pose) {
		c.finishRealign(e, d, head)
	})
}

func (c *Controller) finishRealign(e *env, d *Device, head posemath.Pose) {
	if !d.Active() {
		c.log.Warn("Dropping head pose for inactive controller", zap.String("serial", d.Serial()))
		return
	}
	st, ok := e.svc.ControllerState(c.id)
	if !ok || !st.Connected {
		c.log.Warn("Controller is not streaming, keeping current alignment", zap.String("serial", d.Serial()))
		c.calibrating = false
		return
	}
	world := calibration.Solve(c.profile, head, st.PoseMeters())
	c.log.Info("Realignment solved", zap.String("serial", d.Serial()),
		zap.Any("position", world.Position), zap.Any("orientation", world.Orientation))
	e.registry.PublishWorldTransform(world)
}
