package simulation

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"charattach/internal/mathutil"
	"charattach/internal/proxy"
)

func almostEqual(a, b, eps float64) bool { return math.Abs(a-b) <= eps }

func vec3AlmostEqual(a, b mathutil.Vec3, eps float64) bool {
	return almostEqual(a[0], b[0], eps) && almostEqual(a[1], b[1], eps) && almostEqual(a[2], b[2], eps)
}

func baseInput(dt float64) Input {
	return Input{
		Base:     mathutil.Identity(),
		Location: mathutil.IdentityTS(),
		Dt:       dt,
		JointID:  0,
	}
}

func TestSubSteps(t *testing.T) {
	tests := []struct {
		dt, fps float64
		want    int
	}{
		{1.0 / 30, 30, 1},
		{1.0 / 30, 60, 2},
		{0.1, 30, 3},
		{0.1, 1, 1},  // fps floored at 10
		{0.5, 1, 5},  // 0.5 * 10
		{2, 120, 15}, // capped
		{0, 30, 1},
		{-1, 30, 1},
	}
	for _, tt := range tests {
		if got := SubSteps(tt.dt, tt.fps); got != tt.want {
			t.Errorf("SubSteps(%v, %v) = %d, want %d", tt.dt, tt.fps, got, tt.want)
		}
	}
}

func TestClampConeAngleAndPlane(t *testing.T) {
	rest := mathutil.Vec3{0, 0, -1}
	dirs := []mathutil.Vec3{
		{1, 0, 0},
		{0.3, 0.8, 0.2},
		{-0.1, 0.2, 1},
	}
	maxRad := mathutil.Deg2Rad(30)
	for _, d := range dirs {
		got := ClampCone(rest, d, maxRad)
		if a := mathutil.AngleBetween(rest, got); !almostEqual(a, maxRad, 1e-9) {
			t.Errorf("ClampCone(%v) angle = %v, want %v", d, a, maxRad)
		}
		// Coplanar with rest and the input direction.
		n := rest.Cross(d.Normalize())
		if !almostEqual(got.Dot(n), 0, 1e-9) {
			t.Errorf("ClampCone(%v) left the rest/dir plane: %v", d, got)
		}
		// On the same side as the input.
		if got.Sub(rest.Mul(got.Dot(rest))).Dot(d) <= 0 {
			t.Errorf("ClampCone(%v) swung to the wrong side: %v", d, got)
		}
	}
	inside := mathutil.Vec3{0.1, 0, -1}.Normalize()
	if got := ClampCone(rest, inside, maxRad); !vec3AlmostEqual(got, inside, 1e-12) {
		t.Errorf("direction inside the cone changed: %v", got)
	}
}

func TestClampHalfSpace(t *testing.T) {
	n := mathutil.Vec3{0, 1, 0}
	fb := mathutil.Vec3{0, 0, -1}
	neg := mathutil.Vec3{0, -1, -1}.Normalize()
	if got := ClampHalfSpace(n, neg, fb); !vec3AlmostEqual(got, neg, 1e-12) {
		t.Errorf("negative side changed: %v", got)
	}
	if got := ClampHalfSpace(n, mathutil.Vec3{0, 1, -1}, fb); !vec3AlmostEqual(got, fb, 1e-12) {
		t.Errorf("positive side not removed: %v", got)
	}
	if got := ClampHingePlane(n, mathutil.Vec3{1, 5, 0}, fb); !vec3AlmostEqual(got, mathutil.Vec3{1, 0, 0}, 1e-12) {
		t.Errorf("hinge projection = %v", got)
	}
}

func TestClampEllipsoid(t *testing.T) {
	got := ClampEllipsoid(mathutil.Vec3{0, 0, -1}, 1, 1, 1, 0.5)
	if !vec3AlmostEqual(got, mathutil.Vec3{0, 0, -0.5}, 1e-12) {
		t.Errorf("negative z clamp = %v", got)
	}
	got = ClampEllipsoid(mathutil.Vec3{0, 0, 2}, 1, 1, 1, 0.5)
	if !vec3AlmostEqual(got, mathutil.Vec3{0, 0, 1}, 1e-12) {
		t.Errorf("positive z clamp = %v", got)
	}
	got = ClampEllipsoid(mathutil.Vec3{0.2, 0.2, 3}, 1, 1, 0, 0)
	if got[2] != 0 {
		t.Errorf("zero radius axis not flattened: %v", got)
	}
}

func TestPendulumNoDrift(t *testing.T) {
	p := DefaultParams()
	p.ClampType = ClampPendulumCone
	p.Gravity, p.Damping, p.Stiffness = 0, 0, 0
	p.SimulationAxis = mathutil.Vec3{0, 0, -1}
	sim := New(p)

	in := baseInput(0.1)
	var out Output
	for i := 0; i < 20; i++ {
		out = sim.Update(in)
	}
	if got := sim.BobWorld(); !vec3AlmostEqual(got, mathutil.Vec3{0, 0, -1}, 1e-12) {
		t.Errorf("bob drifted to %v", got)
	}
	if !out.Add.IsEquivalent(mathutil.Identity(), 1e-12) {
		t.Errorf("correction = %+v, want identity", out.Add)
	}
	if st := sim.State(); st.SubSteps != 3 {
		t.Errorf("sub-steps = %d, want 3", st.SubSteps)
	}
}

func TestPendulumSettlesOnCone(t *testing.T) {
	p := DefaultParams()
	p.ClampType = ClampPendulumCone
	p.SimulationAxis = mathutil.Vec3{1, 0, 0}
	p.MaxAngle = 30
	p.Damping = 4
	sim := New(p)

	in := baseInput(1.0 / 30)
	var out Output
	for i := 0; i < 300; i++ {
		out = sim.Update(in)
	}
	dir := sim.BobWorld()
	if a := mathutil.AngleBetween(mathutil.Vec3{1, 0, 0}, dir); !almostEqual(a, mathutil.Deg2Rad(30), 1e-6) {
		t.Errorf("rest angle = %v deg, want 30", mathutil.Rad2Deg(a))
	}
	if dir[2] >= 0 {
		t.Errorf("bob should hang below the axis: %v", dir)
	}
	// The correction rotates the rest axis onto the bob direction.
	if got := out.Add.TransformVector(mathutil.Vec3{1, 0, 0}); !vec3AlmostEqual(got, dir.Normalize(), 1e-9) {
		t.Errorf("correction maps axis to %v, want %v", got, dir)
	}
}

func TestHingePlaneKeepsRodInPlane(t *testing.T) {
	p := DefaultParams()
	p.ClampType = ClampPendulumHingePlane
	p.SimulationAxis = mathutil.Vec3{0, 1, 0}
	p.MaxAngle = 90
	sim := New(p)
	in := baseInput(1.0 / 30)
	// Tilt the character so gravity has a component along the hinge normal.
	in.Location.Q = mgl64.QuatRotate(0.4, mathutil.Vec3{0, 1, 0})
	for i := 0; i < 60; i++ {
		sim.Update(in)
	}
	normal := sim.Params.cache().hinge
	bob := in.Location.QuatT().Inverted().TransformPoint(sim.BobWorld())
	if !almostEqual(bob.Dot(normal), 0, 1e-9) {
		t.Errorf("bob %v left the hinge plane (normal %v)", bob, normal)
	}
}

func TestSnapWhenDisabledOrMassless(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*Params, *Input)
	}{
		{"disabled", func(_ *Params, in *Input) { in.Disabled = true }},
		{"massless", func(p *Params, _ *Input) { p.Mass = 0 }},
		{"no joint", func(_ *Params, in *Input) { in.JointID = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			p.ClampType = ClampPendulumCone
			p.SimulationAxis = mathutil.Vec3{1, 0, 0}
			in := baseInput(1.0 / 30)
			tt.mut(&p, &in)
			sim := New(p)
			for i := 0; i < 10; i++ {
				out := sim.Update(in)
				if !out.Add.IsEquivalent(mathutil.Identity(), 0) {
					t.Fatalf("correction = %+v, want identity", out.Add)
				}
			}
			if got := sim.BobWorld(); got != (mathutil.Vec3{1, 0, 0}) {
				t.Errorf("bob = %v, want rest", got)
			}
		})
	}
}

func TestPivotInsideProxyIsSkipped(t *testing.T) {
	p := DefaultParams()
	p.ClampType = ClampPendulumCone
	p.Gravity, p.Damping = 0, 0
	p.SimulationAxis = mathutil.Vec3{0, 0, -1}
	p.ProjectionType = ProjectionShortarcRotation
	sim := New(p)

	px := proxy.New("body", "spine", mathutil.Vec4{0, 0, 0, 1}, proxy.PurposeSimulation, mathutil.Identity())
	in := baseInput(1.0 / 30)
	in.Proxies = []ProxyRef{{Proxy: px, Prev: mathutil.Identity(), Cur: mathutil.Identity()}}
	out := sim.Update(in)
	if out.SetupError == "" {
		t.Error("expected a setup error for a pivot inside the proxy")
	}
	if got := sim.BobWorld(); !vec3AlmostEqual(got, mathutil.Vec3{0, 0, -1}, 1e-12) {
		t.Errorf("bob moved to %v", got)
	}
	if !out.Add.IsFinite() {
		t.Errorf("non-finite correction %+v", out.Add)
	}
}

func TestPendulumRotatesOutOfProxy(t *testing.T) {
	p := DefaultParams()
	p.ClampType = ClampPendulumCone
	p.Gravity, p.Damping = 0, 0
	p.MaxAngle = 90
	p.SimulationAxis = mathutil.Vec3{0, 0, -1}
	p.ProjectionType = ProjectionShortarcRotation
	sim := New(p)

	at := mathutil.NewQuatT(mgl64.QuatIdent(), mathutil.Vec3{0, 0, -0.8})
	px := proxy.New("knee", "leg", mathutil.Vec4{0, 0, 0, 0.3}, proxy.PurposeSimulation, at)
	in := baseInput(1.0 / 30)
	in.Proxies = []ProxyRef{{Proxy: px, Prev: at, Cur: at}}
	out := sim.Update(in)
	if out.SetupError != "" {
		t.Fatalf("unexpected setup error %q", out.SetupError)
	}
	bob := sim.BobWorld()
	lp := at.Inverted().TransformPoint(mathutil.Vec3{})
	if got := px.TestOverlapping(lp, bob, 1, 0); got < -1e-9 {
		t.Errorf("rod still overlaps the proxy: %v (bob %v)", got, bob)
	}
}

func TestSpringHangsOnEllipsoid(t *testing.T) {
	p := DefaultParams()
	p.ClampType = ClampSpringEllipsoid
	p.Radius = 0.1
	p.ScaleZN = 0.5
	p.Damping = 2
	sim := New(p)
	in := baseInput(1.0 / 30)
	var out Output
	for i := 0; i < 200; i++ {
		out = sim.Update(in)
	}
	if !vec3AlmostEqual(out.Add.T, mathutil.Vec3{0, 0, -0.05}, 1e-9) {
		t.Errorf("spring offset = %v, want (0,0,-0.05)", out.Add.T)
	}
	if out.Add.Q != mgl64.QuatIdent() {
		t.Errorf("spring rotates: %v", out.Add.Q)
	}
}

func TestTranslationalProjection(t *testing.T) {
	at := mathutil.NewQuatT(mgl64.QuatIdent(), mathutil.Vec3{0, 0, 0.3})
	px := proxy.New("hip", "pelvis", mathutil.Vec4{0, 0, 0, 0.5}, proxy.PurposeSimulation, at)
	refs := []ProxyRef{{Proxy: px, Prev: at, Cur: at}}

	tests := []struct {
		name string
		typ  ProjectionType
		want mathutil.Vec3
	}{
		{"shortvec", ProjectionShortvecTranslation, mathutil.Vec3{0, 0, -0.3}},
		{"directed", ProjectionDirectedTranslation, mathutil.Vec3{0, 0, 0.9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			p.ClampType = ClampTranslationalProjection
			p.ProjectionType = tt.typ
			p.CapsuleY = 0.1
			sim := New(p)
			in := baseInput(1.0 / 30)
			in.Proxies = refs
			out := sim.Update(in)
			if !vec3AlmostEqual(out.Add.T, tt.want, 1e-6) {
				t.Errorf("push = %v, want %v", out.Add.T, tt.want)
			}
		})
	}

	centred := proxy.New("c", "pelvis", mathutil.Vec4{0, 0, 0, 0.5}, proxy.PurposeSimulation, mathutil.Identity())
	p := DefaultParams()
	p.ClampType = ClampTranslationalProjection
	p.ProjectionType = ProjectionShortvecTranslation
	sim := New(p)
	in := baseInput(1.0 / 30)
	in.Proxies = []ProxyRef{{Proxy: centred, Prev: mathutil.Identity(), Cur: mathutil.Identity()}}
	out := sim.Update(in)
	if out.SetupError == "" || out.Add.T != (mathutil.Vec3{}) {
		t.Errorf("joint at proxy core: err %q push %v", out.SetupError, out.Add.T)
	}
}

func TestParamsCloneAndTouch(t *testing.T) {
	p := DefaultParams()
	p.ProxyNames = []string{"a", "b"}
	c := p.Clone()
	c.ProxyNames[0] = "z"
	if p.ProxyNames[0] != "a" {
		t.Error("Clone shares the proxy name slice")
	}

	p.MaxAngle = 10
	if d := p.cache(); !almostEqual(d.maxRad, mathutil.Deg2Rad(10), 1e-12) {
		t.Fatalf("maxRad = %v", d.maxRad)
	}
	p.MaxAngle = 20
	if d := p.cache(); !almostEqual(d.maxRad, mathutil.Deg2Rad(10), 1e-12) {
		t.Error("cache rebuilt without Touch")
	}
	p.Touch()
	if d := p.cache(); !almostEqual(d.maxRad, mathutil.Deg2Rad(20), 1e-12) {
		t.Error("cache not rebuilt after Touch")
	}
}
