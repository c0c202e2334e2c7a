// Package geometry computes joint angles and distances from 2D keypoints.
package geometry

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/okian/formcheck/internal/domain/pose"
)

func vec(p pose.JointPosition) mgl64.Vec2 { return mgl64.Vec2{p.X, p.Y} }

// Angle returns the included angle at vertex, in degrees within [0,180].
// A zero-length arm (coincident points) yields 0.
func Angle(a, vertex, c pose.JointPosition) float64 {
	v1 := vec(a).Sub(vec(vertex))
	v2 := vec(c).Sub(vec(vertex))

	l1, l2 := v1.Len(), v2.Len()
	if l1 == 0 || l2 == 0 {
		return 0
	}

	cos := mgl64.Clamp(v1.Dot(v2)/(l1*l2), -1, 1)
	return mgl64.RadToDeg(math.Acos(cos))
}

// JointAngle is Angle over a joint triple of kp.
func JointAngle(kp *pose.Keypoints, triple [3]pose.Joint) float64 {
	return Angle(kp.Get(triple[0]), kp.Get(triple[1]), kp.Get(triple[2]))
}

// Midpoint returns the point halfway between a and b. Its confidence is the
// lower of the two.
func Midpoint(a, b pose.JointPosition) pose.JointPosition {
	m := vec(a).Add(vec(b)).Mul(0.5)
	return pose.JointPosition{X: m.X(), Y: m.Y(), Confidence: math.Min(a.Confidence, b.Confidence)}
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b pose.JointPosition) float64 {
	return vec(a).Sub(vec(b)).Len()
}

// PointLineDistance returns the signed perpendicular distance of p from the
// line through a and b. The sign is positive when p lies below the line in
// image space (larger Y). A degenerate line yields the distance to a.
func PointLineDistance(p, a, b pose.JointPosition) float64 {
	line := vec(b).Sub(vec(a))
	length := line.Len()
	if length == 0 {
		return Distance(p, a)
	}
	rel := vec(p).Sub(vec(a))
	// 2D cross product; normalize the sign so "below" is positive regardless
	// of the line direction.
	cross := (line.X()*rel.Y() - line.Y()*rel.X()) / length
	if line.X() < 0 {
		cross = -cross
	}
	return cross
}

// VerticalTilt returns the angle in degrees between segment a->b and the
// vertical axis, within [0,90]. A zero-length segment yields 0.
func VerticalTilt(a, b pose.JointPosition) float64 {
	d := vec(b).Sub(vec(a))
	if d.Len() == 0 {
		return 0
	}
	return mgl64.RadToDeg(math.Atan2(math.Abs(d.X()), math.Abs(d.Y())))
}
