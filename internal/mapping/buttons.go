package mapping

import (
	"fmt"
	"math"
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/neuroplastio/psmove-bridge/internal/psmapi"
)

// VRButton is an abstract host button id. Bits 32..36 double as the touched/pressed
// bits of the five analog axes.
type VRButton uint8

const (
	ButtonSystem          VRButton = 0
	ButtonApplicationMenu VRButton = 1
	ButtonGrip            VRButton = 2
	ButtonDPadLeft        VRButton = 3
	ButtonDPadUp          VRButton = 4
	ButtonDPadRight       VRButton = 5
	ButtonDPadDown        VRButton = 6
	ButtonA               VRButton = 7

	// ButtonTouchpadTouched is a pseudo button: mapping to it sets the touchpad touched bit only.
	ButtonTouchpadTouched VRButton = 31

	ButtonAxis0 VRButton = 32
	ButtonAxis1 VRButton = 33
	ButtonAxis2 VRButton = 34
	ButtonAxis3 VRButton = 35
	ButtonAxis4 VRButton = 36

	ButtonTouchpad = ButtonAxis0
	ButtonTrigger  = ButtonAxis1

	// FallbackButton is assigned to every logical button that has no explicit mapping.
	FallbackButton = ButtonTrigger

	buttonMax VRButton = 64
)

func (b VRButton) Mask() uint64 {
	return 1 << b
}

func (b VRButton) String() string {
	if name, ok := vrButtonNames[b]; ok {
		return name
	}
	return fmt.Sprintf("button_%d", b)
}

var vrButtonNames = map[VRButton]string{
	ButtonSystem:          "system",
	ButtonApplicationMenu: "application_menu",
	ButtonGrip:            "grip",
	ButtonDPadLeft:        "dpad_left",
	ButtonDPadUp:          "dpad_up",
	ButtonDPadRight:       "dpad_right",
	ButtonDPadDown:        "dpad_down",
	ButtonA:               "a",
	ButtonTouchpadTouched: "touchpad_touched",
	ButtonAxis0:           "touchpad",
	ButtonAxis1:           "trigger",
	ButtonAxis2:           "axis_2",
	ButtonAxis3:           "axis_3",
	ButtonAxis4:           "axis_4",
}

var vrButtonsByName = func() map[string]VRButton {
	m := make(map[string]VRButton)
	for b := VRButton(0); b < buttonMax; b++ {
		m[normalizeName(b.String())] = b
	}
	m[normalizeName("axis_0")] = ButtonAxis0
	m[normalizeName("axis_1")] = ButtonAxis1
	return m
}()

func normalizeName(s string) string {
	return strcase.ToSnake(strings.TrimSpace(s))
}

// ParseVRButton resolves a configured abstract button name. Case and separators are not significant.
func ParseVRButton(name string) (VRButton, bool) {
	b, ok := vrButtonsByName[normalizeName(name)]
	return b, ok
}

// Direction is a touchpad direction emulated by a discrete button.
type Direction uint8

const (
	DirectionNone Direction = iota
	DirectionUp
	DirectionUpRight
	DirectionRight
	DirectionDownRight
	DirectionDown
	DirectionDownLeft
	DirectionLeft
	DirectionUpLeft
)

const diagonal = math.Sqrt2 / 2

var directionAxes = [...]Axis{
	DirectionNone:      {},
	DirectionUp:        {X: 0, Y: 1},
	DirectionUpRight:   {X: diagonal, Y: diagonal},
	DirectionRight:     {X: 1, Y: 0},
	DirectionDownRight: {X: diagonal, Y: -diagonal},
	DirectionDown:      {X: 0, Y: -1},
	DirectionDownLeft:  {X: -diagonal, Y: -diagonal},
	DirectionLeft:      {X: -1, Y: 0},
	DirectionUpLeft:    {X: -diagonal, Y: diagonal},
}

// Axis returns the unit-circle touchpad position for d.
func (d Direction) Axis() Axis {
	if int(d) >= len(directionAxes) {
		return Axis{}
	}
	return directionAxes[d]
}

var directionsByName = func() map[string]Direction {
	names := map[Direction][]string{
		DirectionNone:      {"none"},
		DirectionUp:        {"up", "north"},
		DirectionUpRight:   {"up_right", "north_east"},
		DirectionRight:     {"right", "east"},
		DirectionDownRight: {"down_right", "south_east"},
		DirectionDown:      {"down", "south"},
		DirectionDownLeft:  {"down_left", "south_west"},
		DirectionLeft:      {"left", "west"},
		DirectionUpLeft:    {"up_left", "north_west"},
	}
	m := make(map[string]Direction)
	for d, aliases := range names {
		for _, alias := range aliases {
			m[normalizeName(alias)] = d
			m[normalizeName("touchpad_"+alias)] = d
		}
	}
	return m
}()

// ParseDirection resolves a configured touchpad direction, e.g. "west", "touchpad_left" or "UpLeft".
func ParseDirection(name string) (Direction, bool) {
	d, ok := directionsByName[normalizeName(name)]
	return d, ok
}

// Class is a controller class with its own slice of the mapping table.
type Class uint8

const (
	ClassPositional Class = iota
	ClassAuxiliary
	ClassGamepad

	classCount int = iota
)

func (c Class) String() string {
	switch c {
	case ClassPositional:
		return "positional"
	case ClassAuxiliary:
		return "auxiliary"
	case ClassGamepad:
		return "gamepad"
	}
	return fmt.Sprintf("class(%d)", c)
}

func ClassOf(t psmapi.ControllerType) (Class, bool) {
	switch t {
	case psmapi.ControllerPositional:
		return ClassPositional, true
	case psmapi.ControllerAuxiliary:
		return ClassAuxiliary, true
	case psmapi.ControllerOther:
		return ClassGamepad, true
	}
	return 0, false
}

var classButtons = [classCount][]psmapi.Button{
	ClassPositional: {
		psmapi.ButtonCircle, psmapi.ButtonCross, psmapi.ButtonMove, psmapi.ButtonPS,
		psmapi.ButtonSelect, psmapi.ButtonSquare, psmapi.ButtonStart, psmapi.ButtonTriangle,
		psmapi.ButtonTrigger,
	},
	ClassAuxiliary: {
		psmapi.ButtonCircle, psmapi.ButtonCross, psmapi.ButtonPS,
		psmapi.ButtonUp, psmapi.ButtonRight, psmapi.ButtonDown, psmapi.ButtonLeft,
		psmapi.ButtonL1, psmapi.ButtonL2, psmapi.ButtonL3,
	},
	ClassGamepad: {
		psmapi.ButtonCircle, psmapi.ButtonCross, psmapi.ButtonSquare, psmapi.ButtonTriangle,
		psmapi.ButtonUp, psmapi.ButtonRight, psmapi.ButtonDown, psmapi.ButtonLeft,
		psmapi.ButtonOptions, psmapi.ButtonShare, psmapi.ButtonPS, psmapi.ButtonTrackpad,
		psmapi.ButtonL1, psmapi.ButtonL2, psmapi.ButtonL3,
		psmapi.ButtonR1, psmapi.ButtonR2, psmapi.ButtonR3,
	},
}

// ClassButtons lists the logical buttons a class reports.
func ClassButtons(c Class) []psmapi.Button {
	if int(c) >= classCount {
		return nil
	}
	return classButtons[c]
}

const AxisCount = 5

type Axis struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// State is the abstract input record handed to the host.
type State struct {
	Pressed uint64
	Touched uint64
	Axes    [AxisCount]Axis
}

func (s State) IsPressed(b VRButton) bool {
	return s.Pressed&b.Mask() != 0
}

func (s State) IsTouched(b VRButton) bool {
	return s.Touched&b.Mask() != 0
}

// Buttons lists the buttons set in mask in ascending order.
func Buttons(mask uint64) []VRButton {
	var out []VRButton
	for b := VRButton(0); b < buttonMax; b++ {
		if mask&b.Mask() != 0 {
			out = append(out, b)
		}
	}
	return out
}
