package driver

import (
	"github.com/neuroplastio/psmove-bridge/internal/psmapi"
	"github.com/neuroplastio/psmove-bridge/pkg/posemath"
)

// Tracker is a static optical tracker. Its pose comes from the tracker list.
type Tracker struct {
	id   int
	pose posemath.Pose
}

func newTracker(info psmapi.TrackerInfo) *Tracker {
	t := &Tracker{id: info.ID}
	t.update(info)
	return t
}

func (t *Tracker) update(info psmapi.TrackerInfo) {
	t.pose = posemath.Pose{
		Position:    info.Pose.Position.Scale(psmapi.CentimetersToMeters),
		Orientation: info.Pose.Orientation.Normalized(),
	}
}

// RawPose is the tracker pose in service space, in metres.
func (t *Tracker) RawPose() posemath.Pose {
	return t.pose
}

func (t *Tracker) tick(e *env, d *Device, world posemath.Pose) {
	p := posemath.ComposePoses(t.pose, world)
	d.setPose(e, Pose{
		Position:    p.Position,
		Orientation: p.Orientation,
		Valid:       true,
		Connected:   true,
		Status:      StatusRunningOK,
	})
}
