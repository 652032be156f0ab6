package mathutil

import "github.com/go-gl/mathgl/mgl64"

// DualQuat is a unit dual quaternion for skinning blends.
type DualQuat struct {
	Nq Quat // real part (rotation)
	Dq Quat // dual part (translation)
}

// DualFromQuatT converts a rigid transform into dual-quaternion form.
func DualFromQuatT(a QuatT) DualQuat {
	t := Quat{W: 0, V: a.T}
	return DualQuat{Nq: a.Q, Dq: t.Mul(a.Q).Scale(0.5)}
}

// AddWeighted accumulates w×b onto d, flipping b to d's hemisphere.
func (d DualQuat) AddWeighted(b DualQuat, w float64) DualQuat {
	if d.Nq.Dot(b.Nq) < 0 {
		w = -w
	}
	return DualQuat{
		Nq: d.Nq.Add(b.Nq.Scale(w)),
		Dq: d.Dq.Add(b.Dq.Scale(w)),
	}
}

// ToQuatT normalizes the blend and converts it back to a rigid transform.
func (d DualQuat) ToQuatT() QuatT {
	l := d.Nq.Len()
	if l < Epsilon {
		return Identity()
	}
	inv := 1 / l
	nq := d.Nq.Scale(inv)
	dq := d.Dq.Scale(inv)
	t := dq.Mul(nq.Conjugate()).Scale(2)
	return QuatT{Q: nq, T: t.V}
}

// ZeroDual is the additive identity used to start a blend.
func ZeroDual() DualQuat {
	return DualQuat{Nq: mgl64.Quat{}, Dq: mgl64.Quat{}}
}
