package driver

import (
	"strings"
	"time"

	"github.com/neuroplastio/psmove-bridge/internal/calibration"
	"github.com/neuroplastio/psmove-bridge/internal/mapping"
	"github.com/neuroplastio/psmove-bridge/internal/psmapi"
	"github.com/neuroplastio/psmove-bridge/pkg/bus"
	"github.com/neuroplastio/psmove-bridge/pkg/posemath"
	"go.uber.org/zap"
)

type DeviceBus = bus.Bus[DeviceEventType, DeviceEvent]

// Registry owns every adapter and the world transform shared by all of them.
// It is not safe for concurrent use.
type Registry struct {
	log      *zap.Logger
	env      *env
	settings func() Settings
	events   *DeviceBus

	devices map[string]*Device
	order   []*Device

	world   posemath.Pose
	pending *posemath.Pose

	companionLaunched bool
}

func newRegistry(log *zap.Logger, svc Service, host Host, settings func() Settings, now func() time.Time, companion Companion, events *DeviceBus) *Registry {
	r := &Registry{
		log:      log,
		settings: settings,
		events:   events,
		devices:  make(map[string]*Device),
		world:    posemath.IdentityPose(),
	}
	r.env = &env{
		log:       log,
		svc:       svc,
		host:      host,
		waiter:    calibration.NewWaiter(log.Named("calibration"), host, now),
		now:       now,
		registry:  r,
		companion: companion,
	}
	return r
}

// Device looks an adapter up by identifier or host serial.
func (r *Registry) Device(name string) (*Device, bool) {
	if d, ok := r.devices[name]; ok {
		return d, true
	}
	for _, d := range r.order {
		if strings.EqualFold(d.Serial(), name) {
			return d, true
		}
	}
	return nil, false
}

// Devices lists adapters in creation order, including deactivated ones.
func (r *Registry) Devices() []*Device {
	out := make([]*Device, len(r.order))
	copy(out, r.order)
	return out
}

// WorldTransform is the committed transform from service space into world space.
func (r *Registry) WorldTransform() posemath.Pose {
	return r.world
}

// PublishWorldTransform stages w. It is committed at the next tick boundary, after the
// current tick's input edges.
func (r *Registry) PublishWorldTransform(w posemath.Pose) {
	r.pending = &w
}

func (r *Registry) Waiter() *calibration.Waiter {
	return r.env.waiter
}

func (r *Registry) publish(t DeviceEventType, d *Device) {
	if r.events == nil {
		return
	}
	r.events.TryPublish(t, DeviceEvent{Type: t, Device: d.info})
}

func (r *Registry) put(d *Device) {
	if _, ok := r.devices[d.info.Identifier]; ok {
		for i, old := range r.order {
			if old.info.Identifier == d.info.Identifier {
				r.order[i] = d
			}
		}
	} else {
		r.order = append(r.order, d)
	}
	r.devices[d.info.Identifier] = d
}

func (r *Registry) live(identifier string) bool {
	d, ok := r.devices[identifier]
	return ok && d.active
}

func (r *Registry) add(d *Device) {
	r.put(d)
	d.activate(r.env)
	if c, ok := d.Controller(); !ok || c.class != mapping.ClassAuxiliary {
		r.env.host.DeviceAdded(d.Serial(), d.info.Kind)
	}
	r.log.Info("Device added", zap.String("device", d.info.Identifier), zap.String("serial", d.Serial()), zap.String("class", d.info.Class))
	r.publish(DeviceCreated, d)
	if d.info.Kind == KindController && !r.companionLaunched && r.env.companion != nil {
		r.companionLaunched = true
		if err := r.env.companion.Launch(); err != nil {
			r.log.Error("Failed to launch companion", zap.Error(err))
		}
	}
}

func (r *Registry) remove(d *Device) {
	if !d.active {
		return
	}
	d.deactivate(r.env)
	r.log.Info("Device deactivated", zap.String("device", d.info.Identifier))
	r.publish(DeviceDeactivated, d)
}

// ReconcileControllers creates adapters for listed controllers that have no live adapter,
// deactivates controllers that are no longer listed and attaches auxiliary controllers to
// their parents.
func (r *Registry) ReconcileControllers(list psmapi.ControllerList) {
	settings := r.settings()
	filter := HMDSerialFilter(settings)
	listed := make(map[string]struct{}, len(list.Controllers))
	for _, info := range list.Controllers {
		class, ok := mapping.ClassOf(info.Type)
		if !ok {
			r.log.Warn("Unsupported controller type", zap.Int("id", info.ID), zap.String("type", string(info.Type)))
			continue
		}
		serial := strings.ToUpper(info.Serial)
		if class == mapping.ClassPositional && filter != "" && serial == filter {
			r.log.Debug("Skipping headset controller", zap.String("serial", serial))
			continue
		}
		identifier := psmapi.ControllerIdentifier(info.ID)
		listed[identifier] = struct{}{}
		if r.live(identifier) {
			continue
		}
		r.add(&Device{
			info: DeviceInfo{
				Identifier:   identifier,
				ServiceID:    info.ID,
				Serial:       serial,
				Kind:         KindController,
				Class:        class.String(),
				ParentSerial: strings.ToUpper(info.ParentSerial),
			},
			controller: newController(r.log.With(zap.String("device", identifier)), info, class, settings),
		})
	}
	for _, d := range r.order {
		if _, ok := listed[d.info.Identifier]; !ok && d.info.Kind == KindController {
			r.remove(d)
		}
	}
	r.attachChildren()
}

func (r *Registry) attachChildren() {
	for _, d := range r.order {
		c, ok := d.Controller()
		if !ok || !d.active || c.class != mapping.ClassAuxiliary || c.parent != nil || d.info.ParentSerial == "" {
			continue
		}
		parent := r.controllerBySerial(d.info.ParentSerial)
		if parent == nil {
			r.log.Warn("Parent controller not found", zap.String("serial", d.Serial()), zap.String("parent", d.info.ParentSerial))
			continue
		}
		pc, _ := parent.Controller()
		if pc.class != mapping.ClassPositional {
			r.log.Warn("Parent controller is not positional", zap.String("serial", d.Serial()), zap.String("parent", d.info.ParentSerial))
			continue
		}
		if pc.child != nil && pc.child != d {
			r.log.Warn("Parent controller already has a child", zap.String("serial", d.Serial()), zap.String("parent", d.info.ParentSerial))
			continue
		}
		pc.child = d
		c.parent = parent
		r.log.Info("Attached controller", zap.String("serial", d.Serial()), zap.String("parent", parent.Serial()))
		r.publish(DeviceAttached, d)
	}
}

func (r *Registry) controllerBySerial(serial string) *Device {
	for _, d := range r.order {
		if d.active && d.info.Kind == KindController && strings.EqualFold(d.info.Serial, serial) {
			return d
		}
	}
	return nil
}

// ReconcileTrackers creates adapters for new trackers and refreshes the pose of known ones.
func (r *Registry) ReconcileTrackers(list psmapi.TrackerList) {
	listed := make(map[string]struct{}, len(list.Trackers))
	for _, info := range list.Trackers {
		identifier := psmapi.TrackerIdentifier(info.ID)
		listed[identifier] = struct{}{}
		if r.live(identifier) {
			r.devices[identifier].tracker.update(info)
			continue
		}
		r.add(&Device{
			info: DeviceInfo{
				Identifier: identifier,
				ServiceID:  info.ID,
				Kind:       KindTracker,
			},
			tracker: newTracker(info),
		})
	}
	for _, d := range r.order {
		if _, ok := listed[d.info.Identifier]; !ok && d.info.Kind == KindTracker {
			r.remove(d)
		}
	}
}

// DeactivateAll marks every adapter deactivated. Adapters are re-created by the next
// reconciliation.
func (r *Registry) DeactivateAll() {
	for _, d := range r.order {
		r.remove(d)
	}
}

// Tick updates every active adapter. A staged world transform is committed before and
// after the adapters run.
func (r *Registry) Tick() {
	r.commitWorld()
	for _, d := range r.order {
		if d.active {
			d.tick(r.env, r.world)
		}
	}
	r.commitWorld()
}

func (r *Registry) commitWorld() {
	if r.pending == nil {
		return
	}
	r.world = *r.pending
	r.pending = nil
	r.log.Info("World transform updated", zap.Any("position", r.world.Position), zap.Any("orientation", r.world.Orientation))
	for _, d := range r.order {
		if d.active {
			d.refresh(r.env, r.world)
		}
	}
}
