package psmapi

import (
	"fmt"

	"github.com/neuroplastio/psmove-bridge/pkg/posemath"
)

// Button is a logical button id shared by every controller class.
// Each class reports a subset of them.
type Button uint8

const (
	ButtonPS Button = iota
	ButtonMove
	ButtonTrigger
	ButtonTriangle
	ButtonSquare
	ButtonCircle
	ButtonCross
	ButtonSelect
	ButtonStart
	ButtonLeft
	ButtonUp
	ButtonRight
	ButtonDown
	ButtonL1
	ButtonL2
	ButtonL3
	ButtonR1
	ButtonR2
	ButtonR3
	ButtonShare
	ButtonOptions
	ButtonTrackpad

	ButtonCount int = iota
)

var buttonNames = [ButtonCount]string{
	"ps", "move", "trigger", "triangle", "square", "circle", "cross", "select", "start",
	"left", "up", "right", "down", "l1", "l2", "l3", "r1", "r2", "r3", "share", "options", "trackpad",
}

func (b Button) String() string {
	if int(b) >= ButtonCount {
		return fmt.Sprintf("button(%d)", b)
	}
	return buttonNames[b]
}

// ButtonState is the per-frame state of a logical button. The service reports edges
// (Pressed, Released) for exactly one frame, then the steady state.
type ButtonState uint8

const (
	ButtonStateUp ButtonState = iota
	ButtonStatePressed
	ButtonStateDown
	ButtonStateReleased
)

var buttonStateNames = []string{"up", "pressed", "down", "released"}

// IsDown reports whether the button is asserted this frame.
func (s ButtonState) IsDown() bool {
	return s == ButtonStatePressed || s == ButtonStateDown
}

func (s ButtonState) MarshalText() ([]byte, error) {
	if int(s) >= len(buttonStateNames) {
		return nil, fmt.Errorf("invalid button state %d", s)
	}
	return []byte(buttonStateNames[s]), nil
}

func (s *ButtonState) UnmarshalText(b []byte) error {
	for i, name := range buttonStateNames {
		if name == string(b) {
			*s = ButtonState(i)
			return nil
		}
	}
	return fmt.Errorf("invalid button state %q", b)
}

type BatteryLevel uint8

const (
	Battery0 BatteryLevel = iota
	Battery20
	Battery40
	Battery60
	Battery80
	Battery100
	BatteryCharging
	BatteryCharged
)

// Fraction maps the reported level onto [0, 1] and a charging flag.
func (l BatteryLevel) Fraction() (float64, bool) {
	switch l {
	case Battery0:
		return 0, false
	case Battery20:
		return 0.2, false
	case Battery40:
		return 0.4, false
	case Battery60:
		return 0.6, false
	case Battery80:
		return 0.8, false
	case Battery100, BatteryCharged:
		return 1, false
	case BatteryCharging:
		return 0.99, true
	}
	return 0, false
}

type Stick struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Physics struct {
	LinearVelocity      posemath.Vec3 `json:"linearVelocity"`
	LinearAcceleration  posemath.Vec3 `json:"linearAcceleration"`
	AngularVelocity     posemath.Vec3 `json:"angularVelocity"`
	AngularAcceleration posemath.Vec3 `json:"angularAcceleration"`
}

// ControllerState is one telemetry frame. Positions are in centimetres.
type ControllerState struct {
	ID        int                      `json:"id"`
	Type      ControllerType           `json:"type"`
	Connected bool                     `json:"connected"`
	Sequence  uint32                   `json:"sequence"`
	Buttons   [ButtonCount]ButtonState `json:"buttons"`

	// Trigger is the analog trigger of positional and auxiliary controllers, 0..255.
	Trigger uint8 `json:"trigger,omitempty"`
	// Stick is the thumbstick of an auxiliary controller, each axis in [-1, 1].
	Stick Stick `json:"stick"`

	LeftStick    Stick   `json:"leftStick"`
	RightStick   Stick   `json:"rightStick"`
	LeftTrigger  float64 `json:"leftTrigger,omitempty"`
	RightTrigger float64 `json:"rightTrigger,omitempty"`

	Pose    posemath.Pose `json:"pose"`
	Physics Physics       `json:"physics"`
	Battery BatteryLevel  `json:"battery"`
}

// Button returns the state of b, or Up for ids the frame does not carry.
func (s *ControllerState) Button(b Button) ButtonState {
	if int(b) >= ButtonCount {
		return ButtonStateUp
	}
	return s.Buttons[b]
}

// PoseMeters returns the pose with its position converted to metres.
func (s *ControllerState) PoseMeters() posemath.Pose {
	return posemath.Pose{
		Position:    s.Pose.Position.Scale(CentimetersToMeters),
		Orientation: s.Pose.Orientation,
	}
}
