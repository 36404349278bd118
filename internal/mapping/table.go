package mapping

import (
	"fmt"

	"github.com/neuroplastio/psmove-bridge/internal/psmapi"
	"go.uber.org/zap"
)

// Settings is the read side of the settings store.
type Settings interface {
	String(section, key string) (string, bool)
}

type Entry struct {
	Button    VRButton
	Direction Direction
}

// Table maps (class, logical button) to an abstract button and optional touchpad direction.
// Every cell holds an entry; cells without defaults or configuration hold FallbackButton.
type Table struct {
	entries    [classCount][psmapi.ButtonCount]Entry
	configured [classCount][psmapi.ButtonCount]bool
	present    [classCount][psmapi.ButtonCount]bool
}

// NewTable returns a table with the built-in defaults.
func NewTable() *Table {
	t := &Table{}
	for c := range t.entries {
		for b := range t.entries[c] {
			t.entries[c][b] = Entry{Button: FallbackButton}
		}
	}
	for c, defaults := range defaultEntries {
		for b, e := range defaults {
			t.entries[c][b] = e
		}
	}
	return t
}

func mustIndex(c Class, b psmapi.Button) {
	if int(c) >= classCount || int(b) >= psmapi.ButtonCount {
		panic(fmt.Sprintf("mapping: index out of range: class %d, button %d", c, b))
	}
}

func (t *Table) Lookup(c Class, b psmapi.Button) Entry {
	mustIndex(c, b)
	return t.entries[c][b]
}

// Configured reports whether settings explicitly remapped the button or its direction.
func (t *Table) Configured(c Class, b psmapi.Button) bool {
	mustIndex(c, b)
	return t.configured[c][b]
}

// Present reports whether settings name the button in either of its sections, even with a
// value that failed to parse.
func (t *Table) Present(c Class, b psmapi.Button) bool {
	mustIndex(c, b)
	return t.present[c][b]
}

func (t *Table) set(c Class, b psmapi.Button, e Entry) {
	mustIndex(c, b)
	t.entries[c][b] = e
	t.configured[c][b] = true
}

var defaultEntries = [classCount]map[psmapi.Button]Entry{
	ClassPositional: {
		psmapi.ButtonPS:       {Button: ButtonSystem},
		psmapi.ButtonMove:     {Button: ButtonTouchpad},
		psmapi.ButtonTrigger:  {Button: ButtonTrigger},
		psmapi.ButtonTriangle: {Button: 8},
		psmapi.ButtonSquare:   {Button: 9},
		psmapi.ButtonCircle:   {Button: 10},
		psmapi.ButtonCross:    {Button: 11},
		psmapi.ButtonSelect:   {Button: ButtonGrip},
		psmapi.ButtonStart:    {Button: ButtonApplicationMenu},
	},
	ClassAuxiliary: {
		psmapi.ButtonPS:     {Button: ButtonSystem},
		psmapi.ButtonLeft:   {Button: ButtonDPadLeft, Direction: DirectionLeft},
		psmapi.ButtonUp:     {Button: 10},
		psmapi.ButtonRight:  {Button: ButtonDPadRight, Direction: DirectionRight},
		psmapi.ButtonDown:   {Button: 10},
		psmapi.ButtonCircle: {Button: 10},
		psmapi.ButtonCross:  {Button: 11},
		psmapi.ButtonL1:     {Button: ButtonTrigger},
		psmapi.ButtonL2:     {Button: ButtonTrigger},
		psmapi.ButtonL3:     {Button: ButtonGrip},
	},
	ClassGamepad: {
		psmapi.ButtonPS:       {Button: ButtonSystem},
		psmapi.ButtonLeft:     {Button: ButtonDPadLeft, Direction: DirectionLeft},
		psmapi.ButtonUp:       {Button: ButtonDPadUp, Direction: DirectionUp},
		psmapi.ButtonRight:    {Button: ButtonDPadRight, Direction: DirectionRight},
		psmapi.ButtonDown:     {Button: ButtonDPadDown, Direction: DirectionDown},
		psmapi.ButtonTrackpad: {Button: ButtonTouchpad},
		psmapi.ButtonTriangle: {Button: 8},
		psmapi.ButtonSquare:   {Button: 9},
		psmapi.ButtonCircle:   {Button: 10},
		psmapi.ButtonCross:    {Button: 11},
		psmapi.ButtonShare:    {Button: ButtonApplicationMenu},
		psmapi.ButtonOptions:  {Button: ButtonApplicationMenu},
		psmapi.ButtonL1:       {Button: ButtonTrigger},
		psmapi.ButtonL2:       {Button: ButtonTrigger},
		psmapi.ButtonL3:       {Button: ButtonGrip},
		psmapi.ButtonR1:       {Button: ButtonTrigger},
		psmapi.ButtonR2:       {Button: ButtonTrigger},
		psmapi.ButtonR3:       {Button: ButtonGrip},
	},
}

type sections struct {
	buttons    string
	directions string
}

var classSections = [classCount]sections{
	ClassPositional: {buttons: "psmove", directions: "psmove_touchpad_directions"},
	ClassAuxiliary:  {buttons: "psnavi_button", directions: "psnavi_touchpad"},
	ClassGamepad:    {buttons: "dualshock4_button", directions: "dualshock4_touchpad"},
}

// maxOverrideID bounds the controller ids that may carry a per-controller section.
const maxOverrideID = 9

// LoadTable builds the table for the controller with the given service id.
// A section suffixed with "_<id>" overrides the plain section key by key.
// Unknown names are logged and leave the default in place.
func LoadTable(log *zap.Logger, settings Settings, controllerID int) *Table {
	t := NewTable()
	if settings == nil {
		return t
	}
	lookup := func(section, key string) (string, bool) {
		if controllerID >= 0 && controllerID <= maxOverrideID {
			if v, ok := settings.String(fmt.Sprintf("%s_%d", section, controllerID), key); ok {
				return v, true
			}
		}
		return settings.String(section, key)
	}
	for ci := 0; ci < classCount; ci++ {
		c := Class(ci)
		sec := classSections[c]
		for _, b := range ClassButtons(c) {
			e := t.entries[c][b]
			changed := false
			if name, ok := lookup(sec.buttons, b.String()); ok {
				t.present[c][b] = true
				if vb, ok := ParseVRButton(name); ok {
					e.Button = vb
					changed = true
				} else {
					log.Warn("Unknown button mapping", zap.String("section", sec.buttons), zap.String("button", b.String()), zap.String("value", name))
				}
			}
			if name, ok := lookup(sec.directions, b.String()); ok {
				t.present[c][b] = true
				if d, ok := ParseDirection(name); ok {
					e.Direction = d
					changed = true
				} else {
					log.Warn("Unknown touchpad direction", zap.String("section", sec.directions), zap.String("button", b.String()), zap.String("value", name))
				}
			}
			if changed {
				t.set(c, b, e)
			}
		}
	}
	return t
}
