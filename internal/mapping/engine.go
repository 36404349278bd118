package mapping

import (
	"math"
	"time"

	"github.com/neuroplastio/psmove-bridge/internal/psmapi"
	"github.com/neuroplastio/psmove-bridge/pkg/posemath"
)

const (
	RecenterHold          = 250 * time.Millisecond
	AuxiliaryRecenterHold = 1000 * time.Millisecond
	AuxiliaryRealignHold  = 1000 * time.Millisecond
	TouchpadRetouchWindow = 2000 * time.Millisecond

	TriggerTouchThreshold = 0.1
	TriggerPressThreshold = 0.8
)

type Options struct {
	// TriggerAxis is the axis slot (0..4) receiving the analog trigger.
	TriggerAxis int
	// ThumbstickDeadzone is the radius below which the auxiliary thumbstick reads as untouched.
	ThumbstickDeadzone float64
	// ThumbstickTouchAsPress also presses the touchpad when the thumbstick leaves the deadzone.
	ThumbstickTouchAsPress bool
	// SpatialTouchpad drives the touchpad axis from the controller's offset while the touchpad is held.
	SpatialTouchpad bool
	// MetersPerTouchpadUnit scales spatial offset onto the [-1, 1] axis range.
	MetersPerTouchpadUnit float64
	// DelayAfterTouchpadPress treats a re-touch within TouchpadRetouchWindow as a continuation.
	DelayAfterTouchpadPress bool
}

func DefaultOptions() Options {
	return Options{
		TriggerAxis:            1,
		ThumbstickDeadzone:     0.1,
		ThumbstickTouchAsPress: true,
		MetersPerTouchpadUnit:  0.075,
	}
}

type Input struct {
	Now   time.Time
	State psmapi.ControllerState
	// Child is the attached auxiliary controller, if any.
	Child *psmapi.ControllerState
}

type Result struct {
	State State
	Edges Edges
	// Realign asks for an orientation reset followed by a new calibration.
	Realign bool
	// Recenter asks for an orientation reset only.
	Recenter bool
}

// Engine turns raw controller frames into abstract input state for one controller.
// It is not safe for concurrent use.
type Engine struct {
	class Class
	table *Table
	opts  Options

	auxRealign  bool
	auxRecenter bool

	prev     State
	recenter holdGesture
	realign  holdGesture

	touchpadWasActive bool
	lastTouchpadAt    time.Time
	touchpadOrigin    posemath.Vec3
	touchpadRotation  posemath.Quat
}

func NewEngine(class Class, table *Table, opts Options) *Engine {
	if opts.TriggerAxis < 0 || opts.TriggerAxis >= AxisCount {
		opts.TriggerAxis = DefaultOptions().TriggerAxis
	}
	if opts.MetersPerTouchpadUnit <= 0 {
		opts.MetersPerTouchpadUnit = DefaultOptions().MetersPerTouchpadUnit
	}
	opts.ThumbstickDeadzone = posemath.Clamp(opts.ThumbstickDeadzone, 0, 0.99)
	return &Engine{
		class:       class,
		table:       table,
		opts:        opts,
		auxRealign:  !table.Present(ClassAuxiliary, psmapi.ButtonUp),
		auxRecenter: !table.Present(ClassAuxiliary, psmapi.ButtonDown),
	}
}

func (e *Engine) Class() Class {
	return e.class
}

// State returns the abstract state produced by the last Update.
func (e *Engine) State() State {
	return e.prev
}

func (e *Engine) Update(in Input) Result {
	var res Result
	next := State{}
	switch e.class {
	case ClassPositional:
		res = e.updatePositional(in, &next)
	case ClassGamepad:
		res = e.updateGamepad(in, &next)
	}
	if res.Realign || res.Recenter {
		next = e.prev
	}
	next.Touched |= next.Pressed
	res.State = next
	res.Edges = Diff(e.prev, next)
	e.prev = next
	return res
}

func (e *Engine) updatePositional(in Input, next *State) Result {
	own := &in.State
	child := in.Child
	if child != nil && child.Type != psmapi.ControllerAuxiliary {
		child = nil
	}

	realign := chord(own.Button(psmapi.ButtonStart), own.Button(psmapi.ButtonSelect))
	recenterButton := own.Button(psmapi.ButtonSelect)
	threshold := RecenterHold
	if child != nil {
		threshold = AuxiliaryRecenterHold
		if e.auxRealign && e.realign.update(child.Button(psmapi.ButtonUp), in.Now, AuxiliaryRealignHold) {
			realign = true
		}
		if e.auxRecenter {
			recenterButton = child.Button(psmapi.ButtonDown)
		}
	}
	recenter := e.recenter.update(recenterButton, in.Now, threshold)
	if res, fired := e.gesture(realign, recenter); fired {
		return res
	}

	directional := e.applyButtons(ClassPositional, own, next)
	if child != nil {
		directional = e.applyButtons(ClassAuxiliary, child, next) || directional
	}
	if !directional {
		switch {
		case child != nil:
			e.applyThumbstick(child.Stick, next)
		case e.opts.SpatialTouchpad:
			e.applySpatialTouchpad(in, next)
		}
	}

	trigger := float64(own.Trigger) / 255
	if child != nil {
		trigger = math.Max(trigger, float64(child.Trigger)/255)
	}
	slot := e.opts.TriggerAxis
	next.Axes[slot] = Axis{X: trigger}
	bit := (ButtonAxis0 + VRButton(slot)).Mask()
	if trigger > TriggerTouchThreshold {
		next.Touched |= bit
	}
	if trigger > TriggerPressThreshold {
		next.Pressed |= bit
	}
	return Result{}
}

func (e *Engine) updateGamepad(in Input, next *State) Result {
	own := &in.State
	realign := chord(own.Button(psmapi.ButtonShare), own.Button(psmapi.ButtonOptions))
	recenter := e.recenter.update(own.Button(psmapi.ButtonOptions), in.Now, RecenterHold)
	if res, fired := e.gesture(realign, recenter); fired {
		return res
	}

	if !e.applyButtons(ClassGamepad, own, next) {
		next.Axes[0] = Axis{X: own.LeftStick.X, Y: -own.LeftStick.Y}
	}
	next.Axes[1] = Axis{X: own.LeftTrigger}
	next.Axes[2] = Axis{X: own.RightStick.X, Y: -own.RightStick.Y}
	next.Axes[3] = Axis{X: own.RightTrigger}
	return Result{}
}

func (e *Engine) gesture(realign, recenter bool) (Result, bool) {
	switch {
	case realign:
		e.recenter.fired = true
		e.realign.fired = true
		return Result{Realign: true}, true
	case recenter:
		e.recenter.fired = true
		return Result{Recenter: true}, true
	}
	return Result{}, false
}

// applyButtons maps every asserted button of class c and reports whether any of them
// drove the touchpad axis.
func (e *Engine) applyButtons(c Class, st *psmapi.ControllerState, next *State) bool {
	directional := false
	for _, b := range ClassButtons(c) {
		if !st.Button(b).IsDown() {
			continue
		}
		entry := e.table.Lookup(c, b)
		if entry.Button == ButtonTouchpadTouched {
			next.Touched |= ButtonTouchpad.Mask()
			continue
		}
		next.Pressed |= entry.Button.Mask()
		if entry.Direction == DirectionNone {
			continue
		}
		next.Axes[0] = entry.Direction.Axis()
		next.Pressed |= ButtonTouchpad.Mask()
		next.Touched |= ButtonTouchpad.Mask()
		directional = true
	}
	return directional
}

func (e *Engine) applyThumbstick(stick psmapi.Stick, next *State) {
	axis, touched := RescaleThumbstick(stick.X, stick.Y, e.opts.ThumbstickDeadzone)
	if !touched {
		return
	}
	next.Axes[0] = axis
	next.Touched |= ButtonTouchpad.Mask()
	if e.opts.ThumbstickTouchAsPress {
		next.Pressed |= ButtonTouchpad.Mask()
	}
}

func (e *Engine) applySpatialTouchpad(in Input, next *State) {
	mask := ButtonTouchpad.Mask()
	active := next.Pressed&mask != 0 || next.Touched&mask != 0
	if active {
		fresh := true
		if e.opts.DelayAfterTouchpadPress {
			if !e.touchpadWasActive {
				fresh = in.Now.Sub(e.lastTouchpadAt) >= TouchpadRetouchWindow
			}
			e.lastTouchpadAt = in.Now
		}
		pose := in.State.PoseMeters()
		if !e.touchpadWasActive && fresh {
			e.touchpadRotation = pose.Orientation
			e.touchpadOrigin = pose.Orientation.Conj().Rotate(pose.Position)
		} else {
			local := e.touchpadRotation.Conj().Rotate(pose.Position)
			offset := local.Sub(e.touchpadOrigin)
			next.Axes[0] = Axis{
				X: posemath.Clamp(offset.X/e.opts.MetersPerTouchpadUnit, -1, 1),
				Y: posemath.Clamp(-offset.Z/e.opts.MetersPerTouchpadUnit, -1, 1),
			}
		}
	}
	e.touchpadWasActive = active
}

// RescaleThumbstick removes the deadzone from a stick reading. The result is continuous
// at the deadzone boundary and reaches unit length at full deflection.
func RescaleThumbstick(x, y, deadzone float64) (Axis, bool) {
	m := math.Hypot(x, y)
	if m == 0 || m < deadzone {
		return Axis{}, false
	}
	r := math.Min((m-deadzone)/(1-deadzone), 1)
	return Axis{X: x / m * r, Y: y / m * r}, true
}

// chord reports a two-button chord completing this frame, in either press order.
func chord(a, b psmapi.ButtonState) bool {
	return (a == psmapi.ButtonStatePressed && b.IsDown()) || (a.IsDown() && b == psmapi.ButtonStatePressed)
}

type holdGesture struct {
	since   time.Time
	holding bool
	fired   bool
}

// update tracks one continuous hold and reports whether it has lasted threshold without firing.
// Releasing the button clears the fired flag.
func (h *holdGesture) update(st psmapi.ButtonState, now time.Time, threshold time.Duration) bool {
	if !st.IsDown() {
		h.holding = false
		h.fired = false
		return false
	}
	if !h.holding || st == psmapi.ButtonStatePressed {
		h.holding = true
		h.since = now
	}
	return !h.fired && now.Sub(h.since) >= threshold
}
