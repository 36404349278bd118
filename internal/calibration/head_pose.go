package calibration

import (
	"time"

	"github.com/neuroplastio/psmove-bridge/pkg/posemath"
	"go.uber.org/zap"
)

// HeadPoseRequester asks the companion process for a fresh head pose. The answer arrives
// later through DeliverHeadPose.
type HeadPoseRequester interface {
	RequestHeadPose(device string)
}

type headSample struct {
	pose posemath.Pose
	at   time.Time
}

// Waiter holds at most one pending head-pose continuation per device, plus the last sample
// delivered for each device. It must only be used from the host thread.
type Waiter struct {
	log       *zap.Logger
	requester HeadPoseRequester
	now       func() time.Time

	pending map[string]func(head posemath.Pose)
	cache   map[string]headSample
}

func NewWaiter(log *zap.Logger, requester HeadPoseRequester, now func() time.Time) *Waiter {
	return &Waiter{
		log:       log,
		requester: requester,
		now:       now,
		pending:   make(map[string]func(posemath.Pose)),
		cache:     make(map[string]headSample),
	}
}

// RequestHeadPose calls fn with a head pose younger than maxAge. A cached sample is used
// immediately; otherwise fn replaces any pending continuation for device and a new sample
// is requested. There is no timeout.
func (w *Waiter) RequestHeadPose(device string, maxAge time.Duration, fn func(head posemath.Pose)) {
	if s, ok := w.cache[device]; ok && w.now().Sub(s.at) < maxAge {
		fn(s.pose)
		return
	}
	if _, ok := w.pending[device]; ok {
		w.log.Debug("Replacing pending head pose request", zap.String("device", device))
	}
	w.pending[device] = fn
	w.requester.RequestHeadPose(device)
}

// DeliverHeadPose records a head pose sample for device and resolves the pending
// continuation, if any. It reports whether a continuation ran.
func (w *Waiter) DeliverHeadPose(device string, head posemath.Pose) bool {
	w.cache[device] = headSample{pose: head, at: w.now()}
	fn, ok := w.pending[device]
	if !ok {
		return false
	}
	delete(w.pending, device)
	fn(head)
	return true
}

func (w *Waiter) Pending(device string) bool {
	_, ok := w.pending[device]
	return ok
}
