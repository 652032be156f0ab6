package mathutil

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func almostEqual(a, b, eps float64) bool { return math.Abs(a-b) <= eps }

func TestQuatTMulInverse(t *testing.T) {
	a := NewQuatT(mgl64.QuatRotate(0.7, Vec3{0, 0, 1}), Vec3{1, 2, 3})
	b := NewQuatT(mgl64.QuatRotate(-1.1, Vec3{1, 0, 0}), Vec3{-4, 0, 0.5})

	id := a.Mul(a.Inverted())
	if !id.IsEquivalent(Identity(), 1e-12) {
		t.Errorf("a*inv(a) = %+v", id)
	}

	p := Vec3{0.3, -0.2, 5}
	got := a.Mul(b).TransformPoint(p)
	want := a.TransformPoint(b.TransformPoint(p))
	if !got.ApproxEqualThreshold(want, 1e-12) {
		t.Errorf("composition = %v, want %v", got, want)
	}
}

func TestIsEquivalentSignInsensitive(t *testing.T) {
	q := mgl64.QuatRotate(0.4, Vec3{0, 1, 0})
	a := NewQuatT(q, Vec3{1, 1, 1})
	b := NewQuatT(q.Scale(-1), Vec3{1, 1, 1})
	if !a.IsEquivalent(b, 1e-12) {
		t.Error("q and -q should be equivalent")
	}
}

func TestSlerpShortestPath(t *testing.T) {
	a := mgl64.QuatIdent()
	b := mgl64.QuatRotate(0.5, Vec3{0, 0, 1}).Scale(-1)
	mid := Slerp(a, b, 0.5)
	angle := 2 * math.Acos(ClampUnit(math.Abs(mid.W)))
	if !almostEqual(angle, 0.25, 1e-9) {
		t.Errorf("mid angle = %v, want 0.25", angle)
	}
}

func TestRotationArc(t *testing.T) {
	tests := []struct {
		name     string
		from, to Vec3
	}{
		{"orthogonal", Vec3{1, 0, 0}, Vec3{0, 1, 0}},
		{"same", Vec3{0, 0, 1}, Vec3{0, 0, 2}},
		{"opposite", Vec3{0, 0, 1}, Vec3{0, 0, -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := RotationArc(tt.from, tt.to)
			got := q.Rotate(tt.from.Normalize())
			if !got.ApproxEqualThreshold(tt.to.Normalize(), 1e-9) {
				t.Errorf("rotated = %v, want %v", got, tt.to.Normalize())
			}
		})
	}
	if q := RotationArc(Vec3{}, Vec3{1, 0, 0}); q != mgl64.QuatIdent() {
		t.Errorf("degenerate arc = %v", q)
	}
}

func TestDualQuatRoundTrip(t *testing.T) {
	a := NewQuatT(mgl64.QuatRotate(1.2, Vec3{0, 1, 0}), Vec3{3, -1, 2})
	got := DualFromQuatT(a).ToQuatT()
	if !got.IsEquivalent(a, 1e-9) {
		t.Errorf("round trip = %+v, want %+v", got, a)
	}
}

func TestDualQuatBlend(t *testing.T) {
	a := NewQuatT(mgl64.QuatIdent(), Vec3{0, 0, 0})
	b := NewQuatT(mgl64.QuatIdent(), Vec3{2, 0, 0})
	blend := ZeroDual().AddWeighted(DualFromQuatT(a), 0.5).AddWeighted(DualFromQuatT(b), 0.5)
	got := blend.ToQuatT()
	if !got.T.ApproxEqualThreshold(Vec3{1, 0, 0}, 1e-9) {
		t.Errorf("blend translation = %v", got.T)
	}
}

func TestSafeNormalize(t *testing.T) {
	fb := Vec3{0, 0, 1}
	if got := SafeNormalize(Vec3{}, fb); got != fb {
		t.Errorf("zero vector = %v", got)
	}
	if got := SafeNormalize(Vec3{math.NaN(), 0, 0}, fb); got != fb {
		t.Errorf("NaN vector = %v", got)
	}
	if got := SafeNormalize(Vec3{3, 0, 4}, fb); !got.ApproxEqualThreshold(Vec3{0.6, 0, 0.8}, 1e-12) {
		t.Errorf("normalize = %v", got)
	}
}

func TestQuatTSPlacement(t *testing.T) {
	loc := QuatTS{Q: mgl64.QuatRotate(math.Pi/2, Vec3{0, 0, 1}), T: Vec3{10, 0, 0}, S: 2}
	got := loc.TransformPoint(Vec3{1, 0, 0})
	if !got.ApproxEqualThreshold(Vec3{10, 2, 0}, 1e-9) {
		t.Errorf("placed point = %v", got)
	}
	w := loc.MulQuatT(NewQuatT(mgl64.QuatIdent(), Vec3{1, 0, 0}))
	if !w.T.ApproxEqualThreshold(got, 1e-9) {
		t.Errorf("MulQuatT translation = %v", w.T)
	}
}
