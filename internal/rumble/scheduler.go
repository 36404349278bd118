// Package rumble throttles haptic pulse requests into at most one intensity command per window.
package rumble

import "time"

const (
	// Window is the minimum spacing between dispatched commands.
	Window = 33 * time.Millisecond
	// MaxPulse is the pulse duration, in microseconds, that maps to full intensity.
	MaxPulse = 1000
	// MinIntensity is the floor applied to any nonzero request.
	MinIntensity = 0.35
)

// Scheduler holds the rumble state of one controller. It is driven from the host thread.
type Scheduler struct {
	pending    uint16
	lastSent   time.Time
	suppressed bool
}

func New(suppressed bool) *Scheduler {
	return &Scheduler{suppressed: suppressed}
}

func (s *Scheduler) Suppressed() bool {
	return s.suppressed
}

// Request records a pulse of micros microseconds. A later request in the same window replaces it.
func (s *Scheduler) Request(micros uint16) {
	s.pending = micros
}

// Update returns the intensity to send when a new window has started. The pending pulse is
// consumed, so the following window sends zero unless another request arrives.
func (s *Scheduler) Update(now time.Time) (float64, bool) {
	if !s.lastSent.IsZero() && now.Sub(s.lastSent) < Window {
		return 0, false
	}
	intensity := Intensity(s.pending)
	if s.suppressed {
		intensity = 0
	}
	s.pending = 0
	s.lastSent = now
	return intensity, true
}

// Intensity maps a pulse duration onto [MinIntensity, 1], passing zero through as an explicit stop.
func Intensity(micros uint16) float64 {
	if micros == 0 {
		return 0
	}
	f := float64(micros) / MaxPulse
	if f < MinIntensity {
		return MinIntensity
	}
	if f > 1 {
		return 1
	}
	return f
}
