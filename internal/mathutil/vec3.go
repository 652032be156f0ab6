package mathutil

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Vec3 is a 3-component vector (value type, stack-allocated).
type Vec3 = mgl64.Vec3

// Vec2 holds paired scalars such as capsule (length, radius).
type Vec2 = mgl64.Vec2

// Vec4 holds a lozenge: half-extents x, y, z and rounding radius w.
type Vec4 = mgl64.Vec4

// Epsilon is the length below which a vector is treated as zero.
const Epsilon = 1e-9

// SafeNormalize returns v scaled to unit length, or fallback when v is too
// short (or not finite) to normalize.
func SafeNormalize(v, fallback Vec3) Vec3 {
	l := v.Len()
	if l < Epsilon || math.IsNaN(l) || math.IsInf(l, 0) {
		return fallback
	}
	return v.Mul(1 / l)
}

// IsFinite reports whether all components are finite numbers.
func IsFinite(v Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// AnyPerpendicular returns a unit vector orthogonal to v.
func AnyPerpendicular(v Vec3) Vec3 {
	a := Vec3{1, 0, 0}
	if math.Abs(v[0]) > 0.7 {
		a = Vec3{0, 1, 0}
	}
	return SafeNormalize(v.Cross(a), Vec3{0, 0, 1})
}

// AngleBetween returns the unsigned angle in radians between a and b.
func AngleBetween(a, b Vec3) float64 {
	la, lb := a.Len(), b.Len()
	if la < Epsilon || lb < Epsilon {
		return 0
	}
	return math.Acos(ClampUnit(a.Dot(b) / (la * lb)))
}

// ClampUnit clamps x into [-1, 1] so it is safe to pass to Acos/Asin.
func ClampUnit(x float64) float64 {
	if x < -1 {
		return -1
	}
	if x > 1 {
		return 1
	}
	return x
}

// Clamp01 clamps x into [0, 1].
func Clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// Abs returns the component-wise absolute value.
func Abs(v Vec3) Vec3 {
	return Vec3{math.Abs(v[0]), math.Abs(v[1]), math.Abs(v[2])}
}

// Lerp interpolates linearly between a and b.
func Lerp(a, b Vec3, t float64) Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}
