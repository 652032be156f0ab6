package simulation

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"charattach/internal/mathutil"
)

// ClampCone limits dir to within maxRad of rest. A direction outside the cone
// is rotated back onto its surface in the plane spanned by rest and dir.
func ClampCone(rest, dir mathutil.Vec3, maxRad float64) mathutil.Vec3 {
	r := mathutil.SafeNormalize(rest, mathutil.Vec3{})
	d := mathutil.SafeNormalize(dir, r)
	if r == (mathutil.Vec3{}) {
		return d
	}
	if mathutil.AngleBetween(r, d) <= maxRad {
		return d
	}
	axis := mathutil.SafeNormalize(r.Cross(d), mathutil.AnyPerpendicular(r))
	return mgl64.QuatRotate(maxRad, axis).Rotate(r)
}

// ClampHingePlane removes the component of dir along the plane normal.
func ClampHingePlane(normal, dir, fallback mathutil.Vec3) mathutil.Vec3 {
	n := mathutil.SafeNormalize(normal, mathutil.Vec3{})
	if n == (mathutil.Vec3{}) {
		return mathutil.SafeNormalize(dir, fallback)
	}
	return mathutil.SafeNormalize(dir.Sub(n.Mul(dir.Dot(n))), fallback)
}

// ClampHalfSpace removes the component along normal only when it is positive.
func ClampHalfSpace(normal, dir, fallback mathutil.Vec3) mathutil.Vec3 {
	n := mathutil.SafeNormalize(normal, mathutil.Vec3{})
	if n == (mathutil.Vec3{}) || dir.Dot(n) <= 0 {
		return mathutil.SafeNormalize(dir, fallback)
	}
	return ClampHingePlane(n, dir, fallback)
}

// ClampEllipsoid scales off back onto the ellipsoid with radii rx, ry and
// rzPos/rzNeg (chosen by the sign of z) when it lies outside. A zero radius
// flattens that axis.
func ClampEllipsoid(off mathutil.Vec3, rx, ry, rzPos, rzNeg float64) mathutil.Vec3 {
	rz := rzPos
	if off[2] < 0 {
		rz = rzNeg
	}
	radii := mathutil.Vec3{rx, ry, rz}
	s := 0.0
	for i := 0; i < 3; i++ {
		if radii[i] <= 0 {
			off[i] = 0
			continue
		}
		q := off[i] / radii[i]
		s += q * q
	}
	if s <= 1 {
		return off
	}
	return off.Mul(1 / math.Sqrt(s))
}
