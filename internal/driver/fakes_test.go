package driver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/neuroplastio/psmove-bridge/internal/mapping"
	"github.com/neuroplastio/psmove-bridge/internal/psmapi"
	"github.com/neuroplastio/psmove-bridge/internal/psmclient"
	"github.com/neuroplastio/psmove-bridge/pkg/posemath"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type fakeService struct {
	mu        sync.Mutex
	connected bool
	nextID    psmapi.RequestID
	sent      []psmapi.Request
	handlers  map[psmapi.RequestID]psmapi.ResponseHandler
	inbox     []psmapi.Message
	states    map[int]psmapi.ControllerState
	closeCh   chan struct{}
	closes    int
}

func newFakeService() *fakeService {
	return &fakeService{
		connected: true,
		handlers:  make(map[psmapi.RequestID]psmapi.ResponseHandler),
		states:    make(map[int]psmapi.ControllerState),
	}
}

func (s *fakeService) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	s.closeCh = make(chan struct{})
	s.inbox = append(s.inbox, psmapi.Message{Event: &psmapi.Event{Kind: psmapi.EventConnected}})
	return nil
}

func (s *fakeService) Serve(ctx context.Context) error {
	s.mu.Lock()
	ch := s.closeCh
	s.mu.Unlock()
	select {
	case <-ctx.Done():
	case <-ch:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	s.inbox = append(s.inbox, psmapi.Message{Event: &psmapi.Event{Kind: psmapi.EventDisconnected}})
	return nil
}

func (s *fakeService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	if s.closeCh != nil {
		close(s.closeCh)
		s.closeCh = nil
	}
	return nil
}

func (s *fakeService) Send(req psmapi.Request, onResponse psmapi.ResponseHandler) (psmapi.RequestID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return 0, psmclient.ErrNotConnected
	}
	s.nextID++
	req.ID = s.nextID
	s.sent = append(s.sent, req)
	if onResponse != nil {
		s.handlers[req.ID] = onResponse
	}
	return req.ID, nil
}

func (s *fakeService) Poll() []psmapi.Message {
	s.mu.Lock()
	msgs := s.inbox
	s.inbox = nil
	s.mu.Unlock()
	var out []psmapi.Message
	for _, msg := range msgs {
		if msg.Response != nil {
			s.mu.Lock()
			h, ok := s.handlers[msg.Response.RequestID]
			delete(s.handlers, msg.Response.RequestID)
			s.mu.Unlock()
			if ok {
				h(*msg.Response)
				continue
			}
		}
		out = append(out, msg)
	}
	return out
}

func (s *fakeService) ControllerState(id int) (psmapi.ControllerState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[id]
	return st, ok
}

func (s *fakeService) setState(st psmapi.ControllerState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[st.ID] = st
}

func (s *fakeService) push(msg psmapi.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inbox = append(s.inbox, msg)
}

func (s *fakeService) pushEvent(kind psmapi.EventKind) {
	s.push(psmapi.Message{Event: &psmapi.Event{Kind: kind}})
}

// respond answers the last request of type t.
func (s *fakeService) respond(t psmapi.RequestType, resp psmapi.Response) bool {
	req, ok := s.last(t)
	if !ok {
		return false
	}
	resp.RequestID = req.ID
	s.push(psmapi.Message{Response: &resp})
	return true
}

func (s *fakeService) last(t psmapi.RequestType) (psmapi.Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.sent) - 1; i >= 0; i-- {
		if s.sent[i].Type == t {
			return s.sent[i], true
		}
	}
	return psmapi.Request{}, false
}

func (s *fakeService) count(t psmapi.RequestType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, req := range s.sent {
		if req.Type == t {
			n++
		}
	}
	return n
}

type fakeHost struct {
	added        []string
	poses        map[string]Pose
	edges        []string
	axes         map[string][mapping.AxisCount]mapping.Axis
	battery      map[string]float64
	headRequests []string
	systemButton int
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		poses:   make(map[string]Pose),
		axes:    make(map[string][mapping.AxisCount]mapping.Axis),
		battery: make(map[string]float64),
	}
}

func (h *fakeHost) DeviceAdded(serial string, kind Kind) {
	h.added = append(h.added, serial)
}

func (h *fakeHost) PoseUpdated(serial string, pose Pose) {
	h.poses[serial] = pose
}

func (h *fakeHost) edge(kind, serial string, b mapping.VRButton) {
	h.edges = append(h.edges, fmt.Sprintf("%s %s %s", serial, kind, b))
}

func (h *fakeHost) ButtonTouched(serial string, b mapping.VRButton) {
	h.edge("touched", serial, b)
}

func (h *fakeHost) ButtonPressed(serial string, b mapping.VRButton) {
	h.edge("pressed", serial, b)
}

func (h *fakeHost) ButtonUnpressed(serial string, b mapping.VRButton) {
	h.edge("unpressed", serial, b)
}

func (h *fakeHost) ButtonUntouched(serial string, b mapping.VRButton) {
	h.edge("untouched", serial, b)
}

func (h *fakeHost) AxisUpdated(serial string, axis int, v mapping.Axis) {
	axes := h.axes[serial]
	axes[axis] = v
	h.axes[serial] = axes
}

func (h *fakeHost) BatteryUpdated(serial string, fraction float64, charging bool) {
	h.battery[serial] = fraction
}

func (h *fakeHost) RequestHeadPose(serial string) {
	h.headRequests = append(h.headRequests, serial)
}

func (h *fakeHost) SystemButtonPressed() {
	h.systemButton++
}

func (h *fakeHost) countEdges(edge string) int {
	n := 0
	for _, e := range h.edges {
		if e == edge {
			n++
		}
	}
	return n
}

type fakeCompanion struct {
	launches int
}

func (c *fakeCompanion) Launch() error {
	c.launches++
	return nil
}

func controllerFrame(id int, t psmapi.ControllerType, seq uint32, buttons map[psmapi.Button]psmapi.ButtonState) psmapi.ControllerState {
	st := psmapi.ControllerState{ID: id, Type: t, Connected: true, Sequence: seq}
	st.Pose.Orientation = posemath.Identity()
	for b, s := range buttons {
		st.Buttons[b] = s
	}
	return st
}

var navigationList = psmapi.ControllerList{Controllers: []psmapi.ControllerInfo{
	{ID: 0, Type: psmapi.ControllerPositional, Serial: "aa:bb"},
	{ID: 1, Type: psmapi.ControllerAuxiliary, Serial: "cc:dd", ParentSerial: "AA:BB"},
}}
