package mathutil

import "github.com/go-gl/mathgl/mgl64"

// QuatT is a rigid transform: rotation Q followed by translation T.
type QuatT struct {
	Q Quat
	T Vec3
}

// QuatTS is a rigid transform with uniform scale, used for world placement.
type QuatTS struct {
	Q Quat
	T Vec3
	S float64
}

// Identity returns the identity transform.
func Identity() QuatT {
	return QuatT{Q: mgl64.QuatIdent()}
}

// IdentityTS returns the identity placement with unit scale.
func IdentityTS() QuatTS {
	return QuatTS{Q: mgl64.QuatIdent(), S: 1}
}

// NewQuatT builds a transform from rotation and translation.
func NewQuatT(q Quat, t Vec3) QuatT {
	return QuatT{Q: q, T: t}
}

// Mul returns a × b (b is applied first).
func (a QuatT) Mul(b QuatT) QuatT {
	return QuatT{
		Q: a.Q.Mul(b.Q),
		T: a.Q.Rotate(b.T).Add(a.T),
	}
}

// Inverted returns the inverse transform.
func (a QuatT) Inverted() QuatT {
	qi := a.Q.Inverse()
	return QuatT{Q: qi, T: qi.Rotate(a.T).Mul(-1)}
}

// TransformPoint applies rotation and translation to p.
func (a QuatT) TransformPoint(p Vec3) Vec3 {
	return a.Q.Rotate(p).Add(a.T)
}

// TransformVector applies only the rotation to v.
func (a QuatT) TransformVector(v Vec3) Vec3 {
	return a.Q.Rotate(v)
}

// Normalized returns a with its rotation renormalized.
func (a QuatT) Normalized() QuatT {
	return QuatT{Q: a.Q.Normalize(), T: a.T}
}

// IsEquivalent compares rotations (sign-insensitive) and translations within eps.
func (a QuatT) IsEquivalent(b QuatT, eps float64) bool {
	if !a.T.ApproxEqualThreshold(b.T, eps) {
		return false
	}
	if a.Q.ApproxEqualThreshold(b.Q, eps) {
		return true
	}
	return a.Q.ApproxEqualThreshold(b.Q.Scale(-1), eps)
}

// IsFinite reports whether every component is finite.
func (a QuatT) IsFinite() bool {
	return QuatIsFinite(a.Q) && IsFinite(a.T)
}

// NLerpQuatT interpolates translation linearly and rotation by normalized lerp.
func NLerpQuatT(a, b QuatT, t float64) QuatT {
	return QuatT{Q: NLerp(a.Q, b.Q, t), T: Lerp(a.T, b.T, t)}
}

// SlerpQuatT interpolates translation linearly and rotation along the arc.
func SlerpQuatT(a, b QuatT, t float64) QuatT {
	return QuatT{Q: Slerp(a.Q, b.Q, t), T: Lerp(a.T, b.T, t)}
}

// MulQuatT places a model-space transform into world space.
func (l QuatTS) MulQuatT(b QuatT) QuatT {
	return QuatT{
		Q: l.Q.Mul(b.Q),
		T: l.Q.Rotate(b.T).Mul(l.S).Add(l.T),
	}
}

// TransformPoint places a model-space point into world space.
func (l QuatTS) TransformPoint(p Vec3) Vec3 {
	return l.Q.Rotate(p).Mul(l.S).Add(l.T)
}

// QuatT drops the scale.
func (l QuatTS) QuatT() QuatT {
	return QuatT{Q: l.Q, T: l.T}
}
