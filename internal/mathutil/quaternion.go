package mathutil

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Quat is a unit rotation quaternion.
type Quat = mgl64.Quat

// EulerToQuat converts Euler XYZ (radians) to a quaternion.
// Matches the BMD bone angle convention.
func EulerToQuat(rx, ry, rz float64) Quat {
	cx, sx := math.Cos(rx*0.5), math.Sin(rx*0.5)
	cy, sy := math.Cos(ry*0.5), math.Sin(ry*0.5)
	cz, sz := math.Cos(rz*0.5), math.Sin(rz*0.5)

	return Quat{
		W: cx*cy*cz + sx*sy*sz,
		V: Vec3{
			sx*cy*cz - cx*sy*sz,
			cx*sy*cz + sx*cy*sz,
			cx*cy*sz - sx*sy*cz,
		},
	}
}

// Slerp interpolates along the shortest arc between a and b.
func Slerp(a, b Quat, t float64) Quat {
	if a.Dot(b) < 0 {
		b = b.Scale(-1)
	}
	return mgl64.QuatSlerp(a, b, t).Normalize()
}

// NLerp is the normalized linear blend used where the arc is short.
func NLerp(a, b Quat, t float64) Quat {
	if a.Dot(b) < 0 {
		b = b.Scale(-1)
	}
	return a.Scale(1 - t).Add(b.Scale(t)).Normalize()
}

// RotationArc returns the shortest rotation taking unit vector from onto to.
func RotationArc(from, to Vec3) Quat {
	f := SafeNormalize(from, Vec3{})
	t := SafeNormalize(to, Vec3{})
	if f == (Vec3{}) || t == (Vec3{}) {
		return mgl64.QuatIdent()
	}
	d := f.Dot(t)
	if d > 1-1e-12 {
		return mgl64.QuatIdent()
	}
	if d < -1+1e-12 {
		return mgl64.QuatRotate(math.Pi, AnyPerpendicular(f))
	}
	return mgl64.QuatBetweenVectors(f, t).Normalize()
}

// QuatIsFinite reports whether every component of q is finite.
func QuatIsFinite(q Quat) bool {
	if math.IsNaN(q.W) || math.IsInf(q.W, 0) {
		return false
	}
	return IsFinite(q.V)
}

// QuatColumn0 returns the rotated X axis of q.
func QuatColumn0(q Quat) Vec3 {
	return q.Rotate(Vec3{1, 0, 0})
}
