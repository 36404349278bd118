package driver

import (
	"context"
	"time"

	"github.com/neuroplastio/psmove-bridge/internal/psmapi"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateVersionChecking
	StateSyncing
	StateActive
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateVersionChecking:
		return "version_checking"
	case StateSyncing:
		return "syncing"
	case StateActive:
		return "active"
	}
	return "unknown"
}

// Supervisor owns the session lifecycle. Run keeps the session connected from its own
// goroutine; Handle consumes the session's responses and events on the host thread.
type Supervisor struct {
	log      *zap.Logger
	svc      Service
	registry *Registry
	host     Host
	retry    time.Duration

	state *atomic.Int32
	fatal *atomic.Bool

	controllersSynced bool
	trackersSynced    bool
}

func newSupervisor(log *zap.Logger, svc Service, registry *Registry, host Host, retry time.Duration) *Supervisor {
	return &Supervisor{
		log:      log,
		svc:      svc,
		registry: registry,
		host:     host,
		retry:    retry,
		state:    atomic.NewInt32(int32(StateDisconnected)),
		fatal:    atomic.NewBool(false),
	}
}

func (s *Supervisor) State() State {
	return State(s.state.Load())
}

func (s *Supervisor) setState(st State) {
	old := State(s.state.Swap(int32(st)))
	if old != st {
		s.log.Debug("Session state changed", zap.Stringer("from", old), zap.Stringer("to", st))
	}
}

// Run connects and serves sessions until ctx is cancelled, retrying at a fixed interval.
// A protocol version mismatch ends it without retrying.
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		if s.fatal.Load() {
			s.setState(StateDisconnected)
			s.log.Error("Not reconnecting after protocol version mismatch")
			return nil
		}
		s.setState(StateConnecting)
		err := s.svc.Connect(ctx)
		if err == nil {
			err = s.svc.Serve(ctx)
		}
		if ctx.Err() != nil {
			s.setState(StateDisconnected)
			return nil
		}
		if err != nil {
			s.log.Debug("Session ended", zap.Error(err))
		}
		if s.fatal.Load() {
			continue
		}
		select {
		case <-ctx.Done():
			s.setState(StateDisconnected)
			return nil
		case <-time.After(s.retry):
		}
	}
}

// Handle applies one message drained from the session.
func (s *Supervisor) Handle(msg psmapi.Message) {
	switch {
	case msg.Event != nil:
		s.handleEvent(*msg.Event)
	case msg.Response != nil:
		s.handleResponse(*msg.Response)
	}
}

func (s *Supervisor) handleEvent(ev psmapi.Event) {
	switch ev.Kind {
	case psmapi.EventConnected:
		s.setState(StateVersionChecking)
		s.controllersSynced = false
		s.trackersSynced = false
		s.send(psmapi.GetServiceVersion(), s.handleVersion)
	case psmapi.EventFailedToConnect:
		s.log.Debug("Failed to connect to tracking service")
	case psmapi.EventDisconnected:
		s.log.Info("Tracking service disconnected")
		s.registry.DeactivateAll()
		if s.fatal.Load() {
			s.setState(StateDisconnected)
		} else {
			s.setState(StateConnecting)
		}
	case psmapi.EventControllerListChanged:
		if s.synced() {
			s.send(psmapi.GetControllerList(), nil)
		}
	case psmapi.EventTrackerListChanged:
		if s.synced() {
			s.send(psmapi.GetTrackerList(), nil)
		}
	case psmapi.EventSystemButtonPressed:
		s.host.SystemButtonPressed()
	default:
		s.log.Debug("Ignoring event", zap.String("kind", string(ev.Kind)))
	}
}

func (s *Supervisor) synced() bool {
	st := s.State()
	return st == StateSyncing || st == StateActive
}

func (s *Supervisor) handleVersion(resp psmapi.Response) {
	switch resp.Result {
	case psmapi.ResultCanceled:
		return
	case psmapi.ResultError:
		s.log.Warn("Service version request failed, reconnecting")
		s.svc.Close()
		return
	}
	if resp.ServiceVersion != psmapi.ProtocolVersion {
		s.log.Error("Protocol version mismatch",
			zap.String("expected", psmapi.ProtocolVersion), zap.String("actual", resp.ServiceVersion))
		s.fatal.Store(true)
		s.setState(StateDisconnected)
		s.svc.Close()
		return
	}
	s.log.Info("Service version matched", zap.String("version", resp.ServiceVersion))
	s.setState(StateSyncing)
	s.send(psmapi.GetControllerList(), nil)
	s.send(psmapi.GetTrackerList(), nil)
}

func (s *Supervisor) handleResponse(resp psmapi.Response) {
	if resp.Result != psmapi.ResultSuccess {
		if resp.Result == psmapi.ResultError {
			s.log.Warn("Request failed", zap.Uint32("requestId", uint32(resp.RequestID)))
		}
		return
	}
	switch {
	case resp.Controllers != nil:
		s.registry.ReconcileControllers(*resp.Controllers)
		s.controllersSynced = true
	case resp.Trackers != nil:
		s.registry.ReconcileTrackers(*resp.Trackers)
		s.trackersSynced = true
	default:
		return
	}
	if s.State() == StateSyncing && s.controllersSynced && s.trackersSynced {
		s.setState(StateActive)
		s.log.Info("Session active")
	}
}

func (s *Supervisor) send(req psmapi.Request, onResponse psmapi.ResponseHandler) {
	if _, err := s.svc.Send(req, onResponse); err != nil {
		s.log.Warn("Failed to send request", zap.String("type", string(req.Type)), zap.Error(err))
	}
}
