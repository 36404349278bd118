// Package posemath implements the small amount of rigid-body math the bridge needs:
// vectors, unit quaternions and poses, plus yaw extraction used by calibration.
//
// Poses are transforms T(x) = R·x + p. Quaternions rotate vectors as q·v·q*.
package posemath

import "math"

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

var (
	AxisX   = Vec3{X: 1}
	AxisY   = Vec3{Y: 1}
	AxisZ   = Vec3{Z: 1}
	Forward = AxisZ
)

func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

func (v Vec3) Dot(o Vec3) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		X: v.Y*o.Z - v.Z*o.Y,
		Y: v.Z*o.X - v.X*o.Z,
		Z: v.X*o.Y - v.Y*o.X,
	}
}

func (v Vec3) Length() float64 {
	return math.Sqrt(v.Dot(v))
}

// Normalized returns v scaled to unit length, or def when v is too short to normalize.
func (v Vec3) Normalized(def Vec3) Vec3 {
	l := v.Length()
	if l < epsilon {
		return def
	}
	return v.Scale(1 / l)
}

type Quat struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func Identity() Quat {
	return Quat{W: 1}
}

// AxisAngle returns the rotation of angle radians about axis.
func AxisAngle(axis Vec3, angle float64) Quat {
	axis = axis.Normalized(AxisY)
	s, c := math.Sincos(angle / 2)
	return Quat{W: c, X: axis.X * s, Y: axis.Y * s, Z: axis.Z * s}
}

// Mul returns q·o, the rotation that applies o first and then q.
func (q Quat) Mul(o Quat) Quat {
	return Quat{
		W: q.W*o.W - q.X*o.X - q.Y*o.Y - q.Z*o.Z,
		X: q.W*o.X + q.X*o.W + q.Y*o.Z - q.Z*o.Y,
		Y: q.W*o.Y - q.X*o.Z + q.Y*o.W + q.Z*o.X,
		Z: q.W*o.Z + q.X*o.Y - q.Y*o.X + q.Z*o.W,
	}
}

func (q Quat) Conj() Quat {
	return Quat{W: q.W, X: -q.X, Y: -q.Y, Z: -q.Z}
}

func (q Quat) Norm() float64 {
	return math.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
}

func (q Quat) Normalized() Quat {
	n := q.Norm()
	if n < epsilon {
		return Identity()
	}
	return Quat{W: q.W / n, X: q.X / n, Y: q.Y / n, Z: q.Z / n}
}

// Rotate applies the rotation q to v. q must be a unit quaternion.
func (q Quat) Rotate(v Vec3) Vec3 {
	u := Vec3{q.X, q.Y, q.Z}
	t := u.Cross(v).Scale(2)
	return v.Add(t.Scale(q.W)).Add(u.Cross(t))
}

// ApproxEqual reports whether q and o describe the same rotation within eps.
// q and -q are considered equal.
func (q Quat) ApproxEqual(o Quat, eps float64) bool {
	d := q.W*o.W + q.X*o.X + q.Y*o.Y + q.Z*o.Z
	return 1-math.Abs(d) <= eps
}

// ExtractYaw reduces q to its rotation about the vertical (Y) axis.
//
// The forward axis rotated by q is projected onto the horizontal plane; a degenerate
// projection (device pointing straight up or down) falls back to Forward, yielding identity.
func ExtractYaw(q Quat) Quat {
	f := q.Rotate(Forward)
	f2 := Vec3{X: f.X, Z: f.Z}.Normalized(Forward)
	half := math.Acos(Clamp(f2.Dot(Forward), -1, 1)) / 2
	if Forward.Cross(f2).Y < 0 {
		half = -half
	}
	s, c := math.Sincos(half)
	return Quat{W: c, Y: s}
}

type Pose struct {
	Position    Vec3 `json:"position"`
	Orientation Quat `json:"orientation"`
}

func IdentityPose() Pose {
	return Pose{Orientation: Identity()}
}

// Apply transforms the point v by p.
func (p Pose) Apply(v Vec3) Vec3 {
	return p.Orientation.Rotate(v).Add(p.Position)
}

// ComposePoses returns the transform that applies a first and then b, i.e. a expressed
// in b's frame: R = Rb·Ra, t = Rb·ta + tb.
func ComposePoses(a, b Pose) Pose {
	return Pose{
		Position:    b.Orientation.Rotate(a.Position).Add(b.Position),
		Orientation: b.Orientation.Mul(a.Orientation).Normalized(),
	}
}

func InversePose(p Pose) Pose {
	inv := p.Orientation.Conj()
	return Pose{
		Position:    inv.Rotate(p.Position).Scale(-1),
		Orientation: inv,
	}
}

// ApproxEqual reports whether both components of p and o are within eps.
func (p Pose) ApproxEqual(o Pose, eps float64) bool {
	return p.Position.Sub(o.Position).Length() <= eps && p.Orientation.ApproxEqual(o.Orientation, eps)
}

// PoseFromMatrix34 converts a row-major 3x4 rigid transform [R|t] into a Pose.
func PoseFromMatrix34(m [12]float64) Pose {
	r00, r01, r02 := m[0], m[1], m[2]
	r10, r11, r12 := m[4], m[5], m[6]
	r20, r21, r22 := m[8], m[9], m[10]

	var q Quat
	trace := r00 + r11 + r22
	switch {
	case trace > 0:
		s := 0.5 / math.Sqrt(trace+1)
		q = Quat{W: 0.25 / s, X: (r21 - r12) * s, Y: (r02 - r20) * s, Z: (r10 - r01) * s}
	case r00 > r11 && r00 > r22:
		s := 2 * math.Sqrt(1+r00-r11-r22)
		q = Quat{W: (r21 - r12) / s, X: 0.25 * s, Y: (r01 + r10) / s, Z: (r02 + r20) / s}
	case r11 > r22:
		s := 2 * math.Sqrt(1+r11-r00-r22)
		q = Quat{W: (r02 - r20) / s, X: (r01 + r10) / s, Y: 0.25 * s, Z: (r12 + r21) / s}
	default:
		s := 2 * math.Sqrt(1+r22-r00-r11)
		q = Quat{W: (r10 - r01) / s, X: (r02 + r20) / s, Y: (r12 + r21) / s, Z: 0.25 * s}
	}
	return Pose{
		Position:    Vec3{X: m[3], Y: m[7], Z: m[11]},
		Orientation: q.Normalized(),
	}
}

const epsilon = 1e-9

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
