package agent

import (
	"github.com/neuroplastio/psmove-bridge/internal/driver"
	"github.com/neuroplastio/psmove-bridge/internal/mapping"
	"go.uber.org/zap"
)

// logHost stands in for the VR runtime and logs what the driver reports.
type logHost struct {
	log *zap.Logger
}

func (h logHost) DeviceAdded(serial string, kind driver.Kind) {
	h.log.Info("Device added", zap.String("serial", serial), zap.Stringer("kind", kind))
}

func (h logHost) PoseUpdated(serial string, pose driver.Pose) {
	if ce := h.log.Check(zap.DebugLevel, "Pose updated"); ce != nil {
		ce.Write(zap.String("serial", serial), zap.Any("position", pose.Position), zap.Stringer("status", pose.Status))
	}
}

func (h logHost) ButtonTouched(serial string, b mapping.VRButton) {
	h.log.Debug("Button touched", zap.String("serial", serial), zap.Stringer("button", b))
}

func (h logHost) ButtonPressed(serial string, b mapping.VRButton) {
	h.log.Info("Button pressed", zap.String("serial", serial), zap.Stringer("button", b))
}

func (h logHost) ButtonUnpressed(serial string, b mapping.VRButton) {
	h.log.Info("Button unpressed", zap.String("serial", serial), zap.Stringer("button", b))
}

func (h logHost) ButtonUntouched(serial string, b mapping.VRButton) {
	h.log.Debug("Button untouched", zap.String("serial", serial), zap.Stringer("button", b))
}

func (h logHost) AxisUpdated(serial string, axis int, v mapping.Axis) {
	h.log.Debug("Axis updated", zap.String("serial", serial), zap.Int("axis", axis), zap.Float64("x", v.X), zap.Float64("y", v.Y))
}

func (h logHost) BatteryUpdated(serial string, fraction float64, charging bool) {
	h.log.Info("Battery updated", zap.String("serial", serial), zap.Float64("fraction", fraction), zap.Bool("charging", charging))
}

func (h logHost) RequestHeadPose(serial string) {
	h.log.Info("Head pose requested", zap.String("serial", serial))
}

func (h logHost) SystemButtonPressed() {
	h.log.Info("System button pressed")
}
