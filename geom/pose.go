package geom

import "math"

// Pose is a rigid transform in the plane with an extra linear z offset:
// a 3D translation plus a rotation about the z axis.
type Pose struct {
	X float64 `json:"x"` // meters
	Y float64 `json:"y"` // meters
	Z float64 `json:"z"` // meters
	A float64 `json:"a"` // heading in radians
}

// NormalizeAngle wraps a heading into the canonical (-pi, pi] interval.
// -pi itself maps to pi, so the two representations of a half turn never
// compare unequal.
func NormalizeAngle(a float64) float64 {
	if a > -math.Pi && a <= math.Pi {
		return a
	}
	a = math.Atan2(math.Sin(a), math.Cos(a))
	if a <= -math.Pi {
		a = math.Pi
	}
	return a
}

// Compose applies b in a's frame (a then b).
func Compose(a, b Pose) Pose {
	cosa := math.Cos(a.A)
	sina := math.Sin(a.A)

	return Pose{
		X: a.X + b.X*cosa - b.Y*sina,
		Y: a.Y + b.X*sina + b.Y*cosa,
		Z: a.Z + b.Z,
		A: NormalizeAngle(a.A + b.A),
	}
}

// Compose applies q in p's frame.
func (p Pose) Compose(q Pose) Pose {
	return Compose(p, q)
}

// Inverse returns the pose q such that Compose(p, q) is the identity.
func (p Pose) Inverse() Pose {
	cosa := math.Cos(p.A)
	sina := math.Sin(p.A)

	return Pose{
		X: -(p.X*cosa + p.Y*sina),
		Y: p.X*sina - p.Y*cosa,
		Z: -p.Z,
		A: NormalizeAngle(-p.A),
	}
}

// ToLocal expresses the global pose p in the given frame. It is the exact
// left inverse of Compose(frame, p).
func ToLocal(p, frame Pose) Pose {
	return Compose(frame.Inverse(), p)
}

// Equal reports exact component-wise equality. Pose mutations are skipped
// when the new value is Equal to the current one.
func (p Pose) Equal(q Pose) bool {
	return p == q
}

// Velocity is a rate of change of pose, in meters and radians per second.
type Velocity struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	A float64 `json:"a"`
}

// IsZero reports whether every component is exactly zero. Models with a
// zero velocity leave the world's active velocity set.
func (v Velocity) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0 && v.A == 0
}

// Point is a 2D position in a model's local frame.
type Point struct {
	X float64
	Y float64
}

// Point3 is a 3D position.
type Point3 struct {
	X float64
	Y float64
	Z float64
}

// Size is an axis-aligned extent.
type Size struct {
	X float64
	Y float64
	Z float64
}

// Rect is an axis-aligned region of the plane, used to bound random
// placement searches.
type Rect struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}
