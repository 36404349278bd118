package driver

import (
	"context"
	"time"

	"github.com/neuroplastio/psmove-bridge/internal/debugcmd"
	"github.com/neuroplastio/psmove-bridge/internal/mapping"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var defaultOptions = providerOptions{
	now:           time.Now,
	retryInterval: time.Second,
}

type providerOptions struct {
	now           func() time.Time
	retryInterval time.Duration
	companion     Companion
	events        *DeviceBus
}

type Option func(*providerOptions)

func WithClock(now func() time.Time) Option {
	return func(o *providerOptions) {
		o.now = now
	}
}

// WithRetryInterval sets the delay between connection attempts.
func WithRetryInterval(d time.Duration) Option {
	return func(o *providerOptions) {
		o.retryInterval = d
	}
}

func WithCompanion(c Companion) Option {
	return func(o *providerOptions) {
		o.companion = c
	}
}

// WithDeviceBus publishes device lifecycle events to b.
func WithDeviceBus(b *DeviceBus) Option {
	return func(o *providerOptions) {
		o.events = b
	}
}

type settingsSnapshot struct {
	settings Settings
}

// Provider is the driver instance handed to the host. Start runs on its own goroutine; every
// other method must be called from the host frame thread.
type Provider struct {
	log        *zap.Logger
	svc        Service
	settings   *atomic.Pointer[settingsSnapshot]
	registry   *Registry
	supervisor *Supervisor
}

func NewProvider(log *zap.Logger, svc Service, host Host, settings Settings, opts ...Option) *Provider {
	options := defaultOptions
	for _, opt := range opts {
		opt(&options)
	}
	p := &Provider{
		log:      log,
		svc:      svc,
		settings: atomic.NewPointer(&settingsSnapshot{settings: settings}),
	}
	p.registry = newRegistry(log.Named("registry"), svc, host, p.currentSettings, options.now, options.companion, options.events)
	p.supervisor = newSupervisor(log.Named("supervisor"), svc, p.registry, host, options.retryInterval)
	return p
}

func (p *Provider) currentSettings() Settings {
	return p.settings.Load().settings
}

// UpdateSettings replaces the settings used for adapters created from now on.
func (p *Provider) UpdateSettings(s Settings) {
	p.settings.Store(&settingsSnapshot{settings: s})
}

// Start keeps the tracking service session alive until ctx is cancelled.
func (p *Provider) Start(ctx context.Context) error {
	p.log.Info("Provider started")
	return p.supervisor.Run(ctx)
}

func (p *Provider) State() State {
	return p.supervisor.State()
}

func (p *Provider) Registry() *Registry {
	return p.registry
}

// RunFrame drains the session and ticks every adapter.
func (p *Provider) RunFrame() {
	for _, msg := range p.svc.Poll() {
		p.supervisor.Handle(msg)
	}
	p.registry.Tick()
}

// DebugRequest handles a debug channel command addressed to the device serial.
// Malformed or unknown commands are logged and ignored.
func (p *Provider) DebugRequest(serial, text string) string {
	cmd, err := debugcmd.Parse(text)
	if err != nil {
		p.log.Warn("Ignoring malformed debug command", zap.String("serial", serial), zap.Error(err))
		return ""
	}
	head, err := cmd.HeadPose()
	if err != nil {
		p.log.Warn("Ignoring debug command", zap.String("serial", serial), zap.String("verb", cmd.Verb), zap.Error(err))
		return ""
	}
	d, ok := p.registry.Device(serial)
	if !ok {
		p.log.Warn("Debug command for unknown device", zap.String("serial", serial))
		return ""
	}
	if !p.registry.Waiter().DeliverHeadPose(d.Serial(), head) {
		p.log.Debug("Head pose cached without a pending calibration", zap.String("serial", d.Serial()))
	}
	return debugcmd.VerbHMDPose
}

// TriggerHapticPulse schedules a pulse of micros microseconds. Only axis 0 drives the actuator.
func (p *Provider) TriggerHapticPulse(serial string, axis int, micros uint16) bool {
	if axis != 0 {
		return false
	}
	d, ok := p.registry.Device(serial)
	if !ok || !d.Active() {
		return false
	}
	c, ok := d.Controller()
	if !ok {
		return false
	}
	return c.RequestRumble(micros)
}

// ControllerState is the abstract input of a controller after the last frame.
func (p *Provider) ControllerState(serial string) (mapping.State, bool) {
	d, ok := p.registry.Device(serial)
	if !ok {
		return mapping.State{}, false
	}
	c, ok := d.Controller()
	if !ok {
		return mapping.State{}, false
	}
	return c.Input()
}

// Pose is the last pose published for the device.
func (p *Provider) Pose(serial string) (Pose, bool) {
	d, ok := p.registry.Device(serial)
	if !ok {
		return Pose{}, false
	}
	return d.Pose(), true
}
