package driver

import (
	"net"
	"strconv"
	"strings"

	"github.com/neuroplastio/psmove-bridge/internal/calibration"
	"github.com/neuroplastio/psmove-bridge/internal/mapping"
)

// Settings is the read side of the settings store. configsvc.Settings implements it.
// A nil Settings yields every default.
type Settings interface {
	String(section, key string) (string, bool)
	Bool(section, key string) (bool, bool)
	Int(section, key string) (int, bool)
	Float(section, key string) (float64, bool)
}

const (
	DefaultServerAddress = "localhost"
	DefaultServerPort    = 9512
)

func stringSetting(s Settings, section, key, def string) string {
	if s == nil {
		return def
	}
	if v, ok := s.String(section, key); ok {
		return v
	}
	return def
}

func boolSetting(s Settings, section, key string, def bool) bool {
	if s == nil {
		return def
	}
	if v, ok := s.Bool(section, key); ok {
		return v
	}
	return def
}

func intSetting(s Settings, section, key string, def int) int {
	if s == nil {
		return def
	}
	if v, ok := s.Int(section, key); ok {
		return v
	}
	return def
}

func floatSetting(s Settings, section, key string, def float64) float64 {
	if s == nil {
		return def
	}
	if v, ok := s.Float(section, key); ok {
		return v
	}
	return def
}

// ServiceAddress is the host:port of the tracking service.
func ServiceAddress(s Settings) string {
	host := stringSetting(s, "psmoveservice", "server_address", DefaultServerAddress)
	port := intSetting(s, "psmoveservice", "server_port", DefaultServerPort)
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// HMDSerialFilter is the serial of a positional controller that is part of the headset and
// must not be exposed as a controller.
func HMDSerialFilter(s Settings) string {
	return strings.ToUpper(stringSetting(s, "psmove_settings", "psmove_filter_hmd_serial", ""))
}

// ControllerOptions are read once when a controller adapter is created.
type ControllerOptions struct {
	Mapping          mapping.Options
	RumbleSuppressed bool
	// ExtendY and ExtendZ move the reported position along the controller's -Y and -Z axes, in metres.
	ExtendY float64
	ExtendZ float64
	// UseOrientationInAlignment derives the calibration yaw from the controller orientation.
	UseOrientationInAlignment bool
	// MetersInFront is the calibration distance between the head and the controller.
	MetersInFront float64
}

func LoadControllerOptions(s Settings, class mapping.Class) ControllerOptions {
	def := mapping.DefaultOptions()
	opts := ControllerOptions{
		Mapping: mapping.Options{
			TriggerAxis:             intSetting(s, "psmove", "trigger_axis_index", def.TriggerAxis),
			ThumbstickDeadzone:      floatSetting(s, "psnavi_settings", "thumbstick_deadzone_radius", def.ThumbstickDeadzone),
			ThumbstickTouchAsPress:  boolSetting(s, "psnavi_settings", "thumbstick_touch_as_press", def.ThumbstickTouchAsPress),
			SpatialTouchpad:         boolSetting(s, "psmove", "use_spatial_offset_after_touchpad_press_as_touchpad_axis", false),
			MetersPerTouchpadUnit:   floatSetting(s, "psmove", "meters_per_touchpad_units", def.MetersPerTouchpadUnit),
			DelayAfterTouchpadPress: boolSetting(s, "psmove_touchpad", "delay_after_touchpad_press", false),
		},
	}
	switch class {
	case mapping.ClassGamepad:
		opts.RumbleSuppressed = boolSetting(s, "dualshock4_settings", "rumble_suppressed", false)
		opts.MetersInFront = floatSetting(s, "dualshock4_settings", "cm_in_front_of_hmd_at_calibration", 16) / 100
	default:
		opts.RumbleSuppressed = boolSetting(s, "psmove_settings", "rumble_suppressed", false)
		opts.ExtendY = floatSetting(s, "psmove_settings", "psmove_extend_y", 0)
		opts.ExtendZ = floatSetting(s, "psmove_settings", "psmove_extend_z", 0)
		opts.UseOrientationInAlignment = boolSetting(s, "psmove_settings", "use_orientation_in_alignment", true)
		opts.MetersInFront = floatSetting(s, "psmove", "meters_in_front_of_hmd_at_calibration", 0.06)
	}
	return opts
}

// Profile is the calibration profile for a controller of class c.
func (o ControllerOptions) Profile(c mapping.Class) calibration.Profile {
	if c == mapping.ClassGamepad {
		return calibration.PositionOnlyProfile(o.MetersInFront)
	}
	return calibration.MotionProfile(o.MetersInFront, o.UseOrientationInAlignment)
}
